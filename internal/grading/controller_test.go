package grading_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/exam-grader-api/internal/grading"
	"github.com/noah-isme/exam-grader-api/internal/models"
	"github.com/noah-isme/exam-grader-api/internal/repository"
	"github.com/noah-isme/exam-grader-api/pkg/ai"
)

type stubGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int32
	requests []ai.GenerateRequest
	started  chan struct{}
	release  chan struct{}
}

func (s *stubGenerator) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	return s.response, s.err
}

type failingRecorder struct{}

func (failingRecorder) RecordGradeResult(context.Context, string, grading.Result, time.Time) error {
	return errors.New("database is read-only")
}

// blockingRecorder holds RecordGradeResult open until release is closed and
// tracks how many writes overlap.
type blockingRecorder struct {
	next    grading.ExamRecorder
	entered chan struct{}
	release chan struct{}
	active  int32
	peak    int32
}

func (r *blockingRecorder) RecordGradeResult(ctx context.Context, examID string, result grading.Result, gradedAt time.Time) error {
	active := atomic.AddInt32(&r.active, 1)
	defer atomic.AddInt32(&r.active, -1)
	for {
		peak := atomic.LoadInt32(&r.peak)
		if active <= peak || atomic.CompareAndSwapInt32(&r.peak, peak, active) {
			break
		}
	}

	r.entered <- struct{}{}
	<-r.release
	return r.next.RecordGradeResult(ctx, examID, result, gradedAt)
}

func setupExamDB(t *testing.T, modelAnswer string) (*gorm.DB, repository.ExamRepository, models.Exam) {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Course{}, &models.Exam{}))

	course := models.Course{ID: uuid.NewString(), Title: "Physics", Code: "PH101", InstructorID: 1}
	require.NoError(t, db.Create(&course).Error)

	repo := repository.NewExamRepository(db)
	exam := models.Exam{
		ID:             uuid.NewString(),
		CourseID:       course.ID,
		Title:          "Midterm",
		Date:           "2026-03-01",
		TotalMarks:     10,
		Status:         models.ExamStatusPublished,
		ModelAnswerPDF: modelAnswer,
	}
	require.NoError(t, repo.Create(context.Background(), &exam))

	stored, err := repo.GetByID(context.Background(), course.ID, exam.ID)
	require.NoError(t, err)
	return db, repo, stored
}

func newController(t *testing.T, exam models.Exam, generator ai.Generator, recorder grading.ExamRecorder) *grading.Controller {
	t.Helper()
	controller, err := grading.NewController(grading.ControllerConfig{
		Exam:      exam,
		Generator: generator,
		Recorder:  recorder,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return controller
}

func TestControllerGradesAndPersists(t *testing.T) {
	_, repo, exam := setupExamDB(t, "JVBERi0xLjQK")
	generator := &stubGenerator{response: "Here you go:\n```json\n" + sampleResult + "\n```"}
	controller := newController(t, exam, generator, repo)

	updates, unsubscribe := controller.Subscribe(8)
	defer unsubscribe()

	require.Equal(t, grading.StateIdle, controller.Snapshot().State)
	require.NoError(t, controller.SelectImage("sheet.png", pngHeader))
	require.Equal(t, grading.StateImageSelected, controller.Snapshot().State)

	result, err := controller.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 8.0, result.Score)

	snapshot := controller.Snapshot()
	require.Equal(t, grading.StateSucceeded, snapshot.State)
	require.NotNil(t, snapshot.Result)
	require.Equal(t, []string{"Missed point 2"}, snapshot.Result.Mistakes)

	var states []grading.State
	for len(updates) > 0 {
		states = append(states, (<-updates).State)
	}
	require.Equal(t, []grading.State{grading.StateIdle, grading.StateImageSelected, grading.StateSubmitting, grading.StateSucceeded}, states)

	stored, err := repo.GetByID(context.Background(), exam.CourseID, exam.ID)
	require.NoError(t, err)
	require.Equal(t, models.ExamStatusGraded, stored.Status)
	require.NotNil(t, stored.GradeResult())
	require.Equal(t, 8.0, stored.GradeResult().Score)
	require.NotNil(t, stored.LastGraded)

	parts := generator.requests[0].Parts()
	require.Len(t, parts, 3)
	require.Equal(t, grading.DefaultInstruction, parts[0].Text)
	require.Equal(t, ai.MimeTypePDF, parts[1].InlineData.MimeType)
	require.Equal(t, "JVBERi0xLjQK", parts[1].InlineData.Data)
	require.Equal(t, "image/png", parts[2].InlineData.MimeType)

	require.Equal(t, models.ExamStatusGraded, controller.Exam().Status)
}

func TestControllerTransportFailureLeavesExamUntouched(t *testing.T) {
	_, repo, exam := setupExamDB(t, "JVBERi0xLjQK")
	before, err := repo.GetByID(context.Background(), exam.CourseID, exam.ID)
	require.NoError(t, err)

	generator := &stubGenerator{err: &ai.TransportError{Provider: "gemini", Err: errors.New("connection refused")}}
	controller := newController(t, exam, generator, repo)

	require.NoError(t, controller.SelectImage("sheet.png", pngHeader))
	_, err = controller.Submit(context.Background())

	var transport *ai.TransportError
	require.ErrorAs(t, err, &transport)
	require.Equal(t, grading.MessageTransport, grading.UserMessage(err))

	snapshot := controller.Snapshot()
	require.Equal(t, grading.StateFailed, snapshot.State)
	require.Equal(t, err, snapshot.Err)
	require.Equal(t, "sheet.png", snapshot.ImageName, "image is kept for a retry")

	after, err := repo.GetByID(context.Background(), exam.CourseID, exam.ID)
	require.NoError(t, err)
	require.Equal(t, before, after)

	require.NoError(t, controller.Retry())
	require.Equal(t, grading.StateImageSelected, controller.Snapshot().State)
}

func TestControllerMalformedResultIsNotPersisted(t *testing.T) {
	_, repo, exam := setupExamDB(t, "JVBERi0xLjQK")
	generator := &stubGenerator{response: `{"score": 95, "max_score": 90, "feedback": "", "mistakes": []}`}
	controller := newController(t, exam, generator, repo)

	require.NoError(t, controller.SelectImage("sheet.png", pngHeader))
	_, err := controller.Submit(context.Background())

	var malformed *grading.MalformedResultError
	require.ErrorAs(t, err, &malformed)
	require.Equal(t, grading.MessageMalformed, grading.UserMessage(err))

	stored, err := repo.GetByID(context.Background(), exam.CourseID, exam.ID)
	require.NoError(t, err)
	require.Equal(t, models.ExamStatusPublished, stored.Status)
	require.Nil(t, stored.GradeResult())
}

func TestControllerPreconditions(t *testing.T) {
	_, repo, exam := setupExamDB(t, "")
	generator := &stubGenerator{response: sampleResult}
	controller := newController(t, exam, generator, repo)

	_, err := controller.Submit(context.Background())
	var precondition *grading.PreconditionError
	require.ErrorAs(t, err, &precondition)
	require.Equal(t, "student image", precondition.Missing)
	require.Equal(t, grading.StateIdle, controller.Snapshot().State)

	require.NoError(t, controller.SelectImage("sheet.png", pngHeader))
	_, err = controller.Submit(context.Background())
	require.ErrorAs(t, err, &precondition)
	require.Equal(t, "model answer", precondition.Missing)
	require.Equal(t, grading.MessagePrecondition, grading.UserMessage(err))
	require.Equal(t, grading.StateImageSelected, controller.Snapshot().State)
	require.Zero(t, atomic.LoadInt32(&generator.calls))
}

func TestControllerRejectsNonImage(t *testing.T) {
	_, repo, exam := setupExamDB(t, "JVBERi0xLjQK")
	controller := newController(t, exam, &stubGenerator{}, repo)

	err := controller.SelectImage("answer.pdf", []byte("%PDF-1.4\n"))
	require.ErrorIs(t, err, grading.ErrUnsupportedMedia)
	require.Equal(t, grading.MessageEncoding, grading.UserMessage(err))
	require.Equal(t, grading.StateIdle, controller.Snapshot().State)
}

func TestControllerPersistenceFailure(t *testing.T) {
	_, _, exam := setupExamDB(t, "JVBERi0xLjQK")
	controller := newController(t, exam, &stubGenerator{response: sampleResult}, failingRecorder{})

	require.NoError(t, controller.SelectImage("sheet.png", pngHeader))
	_, err := controller.Submit(context.Background())

	var persistence *grading.PersistenceError
	require.ErrorAs(t, err, &persistence)
	require.Equal(t, grading.StateFailed, controller.Snapshot().State)
	require.Equal(t, models.ExamStatusPublished, controller.Exam().Status)
}

func TestControllerSingleAttemptInFlight(t *testing.T) {
	_, repo, exam := setupExamDB(t, "JVBERi0xLjQK")
	generator := &stubGenerator{
		response: sampleResult,
		started:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	controller := newController(t, exam, generator, repo)
	require.NoError(t, controller.SelectImage("sheet.png", pngHeader))

	done := make(chan error, 1)
	go func() {
		_, err := controller.Submit(context.Background())
		done <- err
	}()

	<-generator.started
	require.Equal(t, grading.StateSubmitting, controller.Snapshot().State)

	_, err := controller.Submit(context.Background())
	require.ErrorIs(t, err, grading.ErrAttemptInFlight)
	require.Equal(t, grading.MessageInFlight, grading.UserMessage(err))
	require.ErrorIs(t, controller.SelectImage("other.png", pngHeader), grading.ErrAttemptInFlight)

	close(generator.release)
	require.NoError(t, <-done)
	require.Equal(t, int32(1), atomic.LoadInt32(&generator.calls))
	require.Equal(t, grading.StateSucceeded, controller.Snapshot().State)
}

func TestControllerDropsLateResponseAfterAbandon(t *testing.T) {
	_, repo, exam := setupExamDB(t, "JVBERi0xLjQK")
	generator := &stubGenerator{
		response: sampleResult,
		started:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
	controller := newController(t, exam, generator, repo)
	require.NoError(t, controller.SelectImage("sheet.png", pngHeader))

	done := make(chan error, 1)
	go func() {
		_, err := controller.Submit(context.Background())
		done <- err
	}()

	<-generator.started
	controller.Abandon()
	require.Equal(t, grading.StateIdle, controller.Snapshot().State)

	close(generator.release)
	require.ErrorIs(t, <-done, grading.ErrAttemptDiscarded)
	require.Equal(t, grading.StateIdle, controller.Snapshot().State)

	stored, err := repo.GetByID(context.Background(), exam.CourseID, exam.ID)
	require.NoError(t, err)
	require.Equal(t, models.ExamStatusPublished, stored.Status)
	require.Nil(t, stored.GradeResult())
}

func TestControllerCloseEndsSubscriptions(t *testing.T) {
	_, repo, exam := setupExamDB(t, "JVBERi0xLjQK")
	controller := newController(t, exam, &stubGenerator{}, repo)

	updates, unsubscribe := controller.Subscribe(4)
	controller.Close()
	unsubscribe()

	for range updates {
	}
	_, open := <-updates
	require.False(t, open)
}

func TestControllerAbandonDuringWriteBlocksNextAttempt(t *testing.T) {
	_, repo, exam := setupExamDB(t, "JVBERi0xLjQK")
	recorder := &blockingRecorder{
		next:    repo,
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	controller := newController(t, exam, &stubGenerator{response: sampleResult}, recorder)
	require.NoError(t, controller.SelectImage("sheet.png", pngHeader))

	done := make(chan error, 1)
	go func() {
		_, err := controller.Submit(context.Background())
		done <- err
	}()

	<-recorder.entered
	controller.Abandon()
	require.Equal(t, grading.StateIdle, controller.Snapshot().State)

	require.NoError(t, controller.SelectImage("second.png", pngHeader))
	_, err := controller.Submit(context.Background())
	require.ErrorIs(t, err, grading.ErrAttemptInFlight)

	close(recorder.release)
	require.ErrorIs(t, <-done, grading.ErrAttemptDiscarded)

	snapshot := controller.Snapshot()
	require.Equal(t, grading.StateImageSelected, snapshot.State)
	require.Nil(t, snapshot.Result)

	stored, err := repo.GetByID(context.Background(), exam.CourseID, exam.ID)
	require.NoError(t, err)
	require.Equal(t, models.ExamStatusGraded, stored.Status, "a result written before abandon is kept")

	result, err := controller.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, 8.0, result.Score)
	require.Equal(t, grading.StateSucceeded, controller.Snapshot().State)
	require.Equal(t, int32(1), atomic.LoadInt32(&recorder.peak))
}
