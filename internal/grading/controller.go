package grading

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-grader-api/internal/models"
	"github.com/noah-isme/exam-grader-api/pkg/ai"
)

// ExamRecorder stores an accepted result on the owning exam.
type ExamRecorder interface {
	RecordGradeResult(ctx context.Context, examID string, result Result, gradedAt time.Time) error
}

// ControllerConfig wires a controller to one exam.
type ControllerConfig struct {
	Exam        models.Exam
	Generator   ai.Generator
	Recorder    ExamRecorder
	Instruction string
	Logger      zerolog.Logger
	Now         func() time.Time
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ExamID        string
	CourseID      string
	ExamTitle     string
	State         State
	Attempt       uint64
	ImageName     string
	ImageMimeType string
	ImageSize     int
	Result        *Result
	Err           error
	UpdatedAt     time.Time
}

// Controller runs grading attempts for a single exam. At most one attempt is
// in flight; its result is applied only while that attempt is still current.
type Controller struct {
	mu sync.Mutex

	exam        models.Exam
	generator   ai.Generator
	recorder    ExamRecorder
	instruction string
	logger      zerolog.Logger
	now         func() time.Time

	state     State
	attempt   uint64
	image     []byte
	imageName string
	imageMime string
	result    *Result
	lastErr   error
	updatedAt time.Time
	closed    bool

	// persisting is set while an accepted result is being written, even
	// after the session was abandoned.
	persisting bool

	nextSubscriber int
	subscribers    map[int]chan Snapshot
}

// NewController constructs a controller in the Idle state.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Generator == nil {
		return nil, errors.New("grading controller requires a generator")
	}
	if cfg.Recorder == nil {
		return nil, errors.New("grading controller requires an exam recorder")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Instruction == "" {
		cfg.Instruction = DefaultInstruction
	}

	return &Controller{
		exam:        cfg.Exam,
		generator:   cfg.Generator,
		recorder:    cfg.Recorder,
		instruction: cfg.Instruction,
		logger: cfg.Logger.With().
			Str("component", "grading_controller").
			Str("exam_id", cfg.Exam.ID).
			Logger(),
		now:         cfg.Now,
		state:       StateIdle,
		updatedAt:   cfg.Now(),
		subscribers: make(map[int]chan Snapshot),
	}, nil
}

// SelectImage stores the student's answer image. The payload must sniff as
// an image.
func (c *Controller) SelectImage(name string, data []byte) error {
	if len(data) == 0 {
		return &EncodingError{Name: name, Err: ErrEmptyFile}
	}
	mimeType := DetectMediaType(data)
	if !isImage(mimeType) {
		return &EncodingError{Name: name, Err: ErrUnsupportedMedia}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next, _, err := Transition(c.state, EventSelectImage)
	if err != nil {
		return err
	}

	c.image = append([]byte(nil), data...)
	c.imageName = name
	c.imageMime = mimeType
	c.result = nil
	c.lastErr = nil
	c.commitLocked(next)
	return nil
}

// ClearImage drops the selected image and returns to Idle.
func (c *Controller) ClearImage() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, _, err := Transition(c.state, EventClearImage)
	if err != nil {
		return err
	}

	c.dropImageLocked()
	c.result = nil
	c.lastErr = nil
	c.commitLocked(next)
	return nil
}

// Retry returns a finished session to ImageSelected with the same image.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, _, err := Transition(c.state, EventRetry)
	if err != nil {
		return err
	}

	c.result = nil
	c.lastErr = nil
	c.commitLocked(next)
	return nil
}

// Abandon discards any in-flight attempt. A response that arrives later is
// ignored and never persisted.
func (c *Controller) Abandon() {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, effect, _ := Transition(c.state, EventAbandon)
	if effect == EffectDiscardAttempt {
		c.attempt++
	}
	c.dropImageLocked()
	c.result = nil
	c.lastErr = nil
	c.commitLocked(next)
}

// Submit runs one grading attempt: encode, build, generate, parse and
// persist. It blocks until the attempt finishes. A new attempt cannot start
// until the previous attempt's write has returned.
func (c *Controller) Submit(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if c.persisting {
		c.mu.Unlock()
		return Result{}, ErrAttemptInFlight
	}
	if c.state != StateSubmitting && len(c.image) == 0 {
		c.mu.Unlock()
		return Result{}, &PreconditionError{Missing: "student image"}
	}
	if c.state != StateSubmitting && !c.exam.HasModelAnswer() {
		c.mu.Unlock()
		return Result{}, &PreconditionError{Missing: "model answer"}
	}

	next, effect, err := Transition(c.state, EventSubmit)
	if err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	if effect != EffectStartAttempt {
		c.mu.Unlock()
		return Result{}, ErrInvalidTransition
	}

	c.attempt++
	attempt := c.attempt
	name := c.imageName
	image := c.image
	mimeType := c.imageMime
	reference := EncodedPart{MimeType: ai.MimeTypePDF, Data: c.exam.ModelAnswerPDF}
	c.result = nil
	c.lastErr = nil
	c.commitLocked(next)
	c.mu.Unlock()

	c.logger.Info().Uint64("attempt", attempt).Str("image_mime", mimeType).Msg("grading attempt started")

	result, err := c.evaluate(ctx, name, image, reference)
	return c.finish(ctx, attempt, result, err)
}

// Snapshot returns the current session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Exam returns the controller's copy of the exam, including any result
// recorded by this controller.
func (c *Controller) Exam() models.Exam {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exam
}

// Subscribe registers for snapshots published on every transition. Slow
// subscribers miss intermediate snapshots rather than blocking the session.
func (c *Controller) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSubscriber
	c.nextSubscriber++
	c.subscribers[id] = ch
	ch <- c.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close abandons the session and ends every subscription.
func (c *Controller) Close() {
	c.Abandon()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
}

// UpdatedAt reports when the session last changed state.
func (c *Controller) UpdatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updatedAt
}

func (c *Controller) evaluate(ctx context.Context, name string, image []byte, reference EncodedPart) (Result, error) {
	encoded, err := EncodeImage(ctx, name, bytes.NewReader(image))
	if err != nil {
		return Result{}, err
	}

	request, err := BuildRequest(c.instruction, reference, encoded.Part())
	if err != nil {
		return Result{}, err
	}

	raw, err := c.generator.Generate(ctx, request)
	if err != nil {
		return Result{}, err
	}

	return ParseResult(raw)
}

func (c *Controller) finish(ctx context.Context, attempt uint64, result Result, attemptErr error) (Result, error) {
	c.mu.Lock()
	if !c.currentLocked(attempt) {
		c.mu.Unlock()
		c.logger.Debug().Uint64("attempt", attempt).Msg("discarding late grading response")
		return Result{}, ErrAttemptDiscarded
	}

	if attemptErr != nil {
		c.failLocked(attemptErr)
		c.mu.Unlock()
		c.logAttemptFailure(attempt, attemptErr)
		return Result{}, attemptErr
	}

	next, effect, err := Transition(c.state, EventSucceed)
	if err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	c.persisting = true
	c.mu.Unlock()

	gradedAt := c.now().UTC()
	var persistErr error
	if effect == EffectPersistResult {
		if err := c.recorder.RecordGradeResult(ctx, c.exam.ID, result, gradedAt); err != nil {
			persistErr = &PersistenceError{Err: err}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.persisting = false

	if persistErr != nil {
		if c.currentLocked(attempt) {
			c.failLocked(persistErr)
		}
		c.logAttemptFailure(attempt, persistErr)
		return Result{}, persistErr
	}

	c.exam.Status = models.ExamStatusGraded
	c.exam.LastGraded = &gradedAt
	_ = c.exam.SetGradeResult(result)

	if !c.currentLocked(attempt) {
		c.logger.Debug().Uint64("attempt", attempt).Msg("session abandoned after result was stored")
		return Result{}, ErrAttemptDiscarded
	}

	stored := result
	c.result = &stored
	c.commitLocked(next)
	c.logger.Info().
		Uint64("attempt", attempt).
		Float64("score", result.Score).
		Float64("max_score", result.MaxScore).
		Msg("grading attempt succeeded")
	return result, nil
}

func (c *Controller) currentLocked(attempt uint64) bool {
	return c.state == StateSubmitting && c.attempt == attempt
}

func (c *Controller) failLocked(err error) {
	next, _, transitionErr := Transition(c.state, EventFail)
	if transitionErr != nil {
		return
	}
	c.lastErr = err
	c.commitLocked(next)
}

func (c *Controller) logAttemptFailure(attempt uint64, err error) {
	event := c.logger.Warn()
	var precondition *PreconditionError
	if errors.As(err, &precondition) {
		event = c.logger.Debug()
	}
	event.Err(err).Uint64("attempt", attempt).Msg("grading attempt failed")
}

func (c *Controller) dropImageLocked() {
	c.image = nil
	c.imageName = ""
	c.imageMime = ""
}

func (c *Controller) commitLocked(next State) {
	c.state = next
	c.updatedAt = c.now()

	snapshot := c.snapshotLocked()
	for _, ch := range c.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		ExamID:        c.exam.ID,
		CourseID:      c.exam.CourseID,
		ExamTitle:     c.exam.Title,
		State:         c.state,
		Attempt:       c.attempt,
		ImageName:     c.imageName,
		ImageMimeType: c.imageMime,
		ImageSize:     len(c.image),
		Err:           c.lastErr,
		UpdatedAt:     c.updatedAt,
	}
	if c.result != nil {
		result := *c.result
		result.Mistakes = make([]string, len(c.result.Mistakes))
		copy(result.Mistakes, c.result.Mistakes)
		snapshot.Result = &result
	}
	return snapshot
}

func isImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
