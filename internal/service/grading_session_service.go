package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/exam-grader-api/internal/dto"
	"github.com/noah-isme/exam-grader-api/internal/grading"
	"github.com/noah-isme/exam-grader-api/internal/observability"
	"github.com/noah-isme/exam-grader-api/pkg/ai"
)

// ErrGradingSessionNotFound indicates the session expired, was closed or
// belongs to another user.
var ErrGradingSessionNotFound = errors.New("grading session not found")

// GradingSessionService owns the in-memory grading sessions.
type GradingSessionService interface {
	Create(ctx context.Context, actor Actor, payload dto.GradingSessionCreateRequest) (dto.GradingSessionResponse, error)
	Get(ctx context.Context, actor Actor, id string) (dto.GradingSessionResponse, error)
	SelectImage(ctx context.Context, actor Actor, id, name string, data []byte) (dto.GradingSessionResponse, error)
	ClearImage(ctx context.Context, actor Actor, id string) (dto.GradingSessionResponse, error)
	Retry(ctx context.Context, actor Actor, id string) (dto.GradingSessionResponse, error)
	Submit(ctx context.Context, actor Actor, id string) (dto.GradingSessionResponse, error)
	Close(ctx context.Context, actor Actor, id string) error
	Subscribe(ctx context.Context, actor Actor, id string) (<-chan grading.Snapshot, func(), error)
	Run(ctx context.Context)
}

// GradingSessionConfig configures the session registry.
type GradingSessionConfig struct {
	Instruction string
	TTL         time.Duration
}

type gradingSession struct {
	id         string
	ownerID    uint
	controller *grading.Controller

	mu     sync.Mutex
	cancel context.CancelFunc
}

type gradingSessionService struct {
	exams     ExamService
	generator ai.Generator
	recorder  grading.ExamRecorder
	events    GradingEventPublisher
	dashboard DashboardService
	validator *validator.Validate
	cfg       GradingSessionConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*gradingSession
}

// NewGradingSessionService constructs the grading session registry. events
// and dashboard may be nil.
func NewGradingSessionService(exams ExamService, generator ai.Generator, recorder grading.ExamRecorder, events GradingEventPublisher, dashboard DashboardService, validate *validator.Validate, cfg GradingSessionConfig, logger zerolog.Logger) GradingSessionService {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	return &gradingSessionService{
		exams:     exams,
		generator: generator,
		recorder:  recorder,
		events:    events,
		dashboard: dashboard,
		validator: validate,
		cfg:       cfg,
		logger:    logger.With().Str("component", "grading_session_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/exam-grader-api/internal/service/grading"),
		now:       time.Now,
		sessions:  make(map[string]*gradingSession),
	}
}

func (s *gradingSessionService) Create(ctx context.Context, actor Actor, payload dto.GradingSessionCreateRequest) (dto.GradingSessionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GradingSessionResponse{}, err
	}

	exam, err := s.exams.Load(ctx, actor.ID, payload.CourseID, payload.ExamID)
	if err != nil {
		return dto.GradingSessionResponse{}, err
	}

	controller, err := grading.NewController(grading.ControllerConfig{
		Exam:        exam,
		Generator:   s.generator,
		Recorder:    s.recorder,
		Instruction: s.cfg.Instruction,
		Logger:      s.logger,
		Now:         s.now,
	})
	if err != nil {
		return dto.GradingSessionResponse{}, err
	}

	session := &gradingSession{
		id:         uuid.NewString(),
		ownerID:    actor.ID,
		controller: controller,
	}

	s.mu.Lock()
	s.sessions[session.id] = session
	s.mu.Unlock()
	observability.GradingSessionsActive().Inc()

	s.logger.Info().
		Str("session_id", session.id).
		Str("exam_id", exam.ID).
		Uint("owner_id", actor.ID).
		Msg("grading session opened")
	return dto.NewGradingSessionResponse(session.id, controller.Snapshot()), nil
}

func (s *gradingSessionService) Get(_ context.Context, actor Actor, id string) (dto.GradingSessionResponse, error) {
	session, err := s.lookup(actor, id)
	if err != nil {
		return dto.GradingSessionResponse{}, err
	}
	return dto.NewGradingSessionResponse(session.id, session.controller.Snapshot()), nil
}

func (s *gradingSessionService) SelectImage(_ context.Context, actor Actor, id, name string, data []byte) (dto.GradingSessionResponse, error) {
	session, err := s.lookup(actor, id)
	if err != nil {
		return dto.GradingSessionResponse{}, err
	}
	if err := session.controller.SelectImage(name, data); err != nil {
		return dto.NewGradingSessionResponse(session.id, session.controller.Snapshot()), err
	}
	return dto.NewGradingSessionResponse(session.id, session.controller.Snapshot()), nil
}

func (s *gradingSessionService) ClearImage(_ context.Context, actor Actor, id string) (dto.GradingSessionResponse, error) {
	session, err := s.lookup(actor, id)
	if err != nil {
		return dto.GradingSessionResponse{}, err
	}
	if err := session.controller.ClearImage(); err != nil {
		return dto.NewGradingSessionResponse(session.id, session.controller.Snapshot()), err
	}
	return dto.NewGradingSessionResponse(session.id, session.controller.Snapshot()), nil
}

func (s *gradingSessionService) Retry(_ context.Context, actor Actor, id string) (dto.GradingSessionResponse, error) {
	session, err := s.lookup(actor, id)
	if err != nil {
		return dto.GradingSessionResponse{}, err
	}
	if err := session.controller.Retry(); err != nil {
		return dto.NewGradingSessionResponse(session.id, session.controller.Snapshot()), err
	}
	return dto.NewGradingSessionResponse(session.id, session.controller.Snapshot()), nil
}

// Submit runs one attempt and blocks until it finishes. Closing the session
// cancels the in-flight call.
func (s *gradingSessionService) Submit(parent context.Context, actor Actor, id string) (dto.GradingSessionResponse, error) {
	session, err := s.lookup(actor, id)
	if err != nil {
		return dto.GradingSessionResponse{}, err
	}

	ctx, span := s.tracer.Start(parent, "grading.submit", trace.WithAttributes(
		attribute.String("session_id", session.id),
	))
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	session.setCancel(cancel)
	defer session.setCancel(nil)

	start := s.now()
	result, err := session.controller.Submit(ctx)
	outcome := attemptOutcome(err)
	observability.GradingAttempts().WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("outcome", outcome))

	snapshot := session.controller.Snapshot()
	if err != nil {
		if attemptStarted(outcome) {
			observability.GradingDuration().Observe(s.now().Sub(start).Seconds())
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		// A discarded attempt may still have written its result.
		if errors.Is(err, grading.ErrAttemptDiscarded) && s.dashboard != nil {
			s.dashboard.Invalidate(context.WithoutCancel(parent), actor.ID)
		}
		return dto.NewGradingSessionResponse(session.id, snapshot), err
	}
	observability.GradingDuration().Observe(s.now().Sub(start).Seconds())

	gradedAt := s.now().UTC()
	if exam := session.controller.Exam(); exam.LastGraded != nil {
		gradedAt = *exam.LastGraded
	}

	if s.events != nil {
		s.events.PublishExamGraded(context.WithoutCancel(parent), ExamGradedEvent{
			ExamID:   snapshot.ExamID,
			CourseID: snapshot.CourseID,
			Score:    result.Score,
			MaxScore: result.MaxScore,
			GradedAt: gradedAt,
			ActorID:  actor.ID,
		})
	}
	if s.dashboard != nil {
		s.dashboard.Invalidate(context.WithoutCancel(parent), actor.ID)
	}

	return dto.NewGradingSessionResponse(session.id, snapshot), nil
}

func (s *gradingSessionService) Close(_ context.Context, actor Actor, id string) error {
	session, err := s.lookup(actor, id)
	if err != nil {
		return err
	}
	s.remove(session, "closed")
	return nil
}

func (s *gradingSessionService) Subscribe(_ context.Context, actor Actor, id string) (<-chan grading.Snapshot, func(), error) {
	session, err := s.lookup(actor, id)
	if err != nil {
		return nil, nil, err
	}
	updates, unsubscribe := session.controller.Subscribe(8)
	return updates, unsubscribe, nil
}

// Run expires idle sessions until ctx is done, then closes every session.
func (s *gradingSessionService) Run(ctx context.Context) {
	interval := s.cfg.TTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case <-ticker.C:
			s.expire()
		}
	}
}

func (s *gradingSessionService) expire() {
	cutoff := s.now().Add(-s.cfg.TTL)

	s.mu.RLock()
	stale := make([]*gradingSession, 0)
	for _, session := range s.sessions {
		snapshot := session.controller.Snapshot()
		if snapshot.State == grading.StateSubmitting {
			continue
		}
		if snapshot.UpdatedAt.Before(cutoff) {
			stale = append(stale, session)
		}
	}
	s.mu.RUnlock()

	for _, session := range stale {
		s.remove(session, "expired")
	}
}

func (s *gradingSessionService) closeAll() {
	s.mu.RLock()
	sessions := make([]*gradingSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.RUnlock()

	for _, session := range sessions {
		s.remove(session, "shutdown")
	}
}

func (s *gradingSessionService) remove(session *gradingSession, reason string) {
	s.mu.Lock()
	_, ok := s.sessions[session.id]
	delete(s.sessions, session.id)
	s.mu.Unlock()
	if !ok {
		return
	}

	session.abort()
	session.controller.Close()
	observability.GradingSessionsActive().Dec()
	s.logger.Info().Str("session_id", session.id).Str("reason", reason).Msg("grading session closed")
}

func (s *gradingSessionService) lookup(actor Actor, id string) (*gradingSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || session.ownerID != actor.ID {
		return nil, ErrGradingSessionNotFound
	}
	return session, nil
}

func (g *gradingSession) setCancel(cancel context.CancelFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancel = cancel
}

func (g *gradingSession) abort() {
	g.mu.Lock()
	cancel := g.cancel
	g.cancel = nil
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func attemptStarted(outcome string) bool {
	switch outcome {
	case "in_flight", "rejected", "precondition":
		return false
	}
	return true
}

func attemptOutcome(err error) string {
	if err == nil {
		return "succeeded"
	}

	var (
		encoding     *grading.EncodingError
		precondition *grading.PreconditionError
		malformed    *grading.MalformedResultError
		persistence  *grading.PersistenceError
		empty        *ai.EmptyResponseError
		transport    *ai.TransportError
	)
	switch {
	case errors.Is(err, grading.ErrAttemptInFlight):
		return "in_flight"
	case errors.Is(err, grading.ErrAttemptDiscarded):
		return "discarded"
	case errors.As(err, &precondition):
		return "precondition"
	case errors.As(err, &encoding):
		return "encoding"
	case errors.As(err, &empty):
		return "empty"
	case errors.As(err, &transport):
		return "transport"
	case errors.As(err, &malformed):
		return "malformed"
	case errors.As(err, &persistence):
		return "persistence"
	case errors.Is(err, grading.ErrInvalidTransition):
		return "rejected"
	default:
		return "failed"
	}
}
