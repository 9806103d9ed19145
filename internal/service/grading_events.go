package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-grader-api/internal/observability"
)

// EventExamGraded is published after a grading result is stored.
const EventExamGraded = "exam.graded"

// ExamGradedEvent is the payload of an exam.graded event.
type ExamGradedEvent struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	ExamID   string    `json:"exam_id"`
	CourseID string    `json:"course_id"`
	Score    float64   `json:"score"`
	MaxScore float64   `json:"max_score"`
	GradedAt time.Time `json:"graded_at"`
	ActorID  uint      `json:"actor_id"`
}

// GradingEventPublisher fans grading events out to the configured brokers.
type GradingEventPublisher interface {
	PublishExamGraded(ctx context.Context, event ExamGradedEvent)
}

type gradingEventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
}

// NewGradingEventPublisher builds a publisher. Either client may be nil.
func NewGradingEventPublisher(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) GradingEventPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":grading"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".grading"
	}

	return &gradingEventPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "grading_events").Logger(),
	}
}

// PublishExamGraded never returns an error; failures are logged and counted.
func (p *gradingEventPublisher) PublishExamGraded(ctx context.Context, event ExamGradedEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.Type = EventExamGraded

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("exam_id", event.ExamID).Msg("failed to encode grading event")
		return
	}

	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			observability.GradingEventFailures().WithLabelValues("redis").Inc()
			p.logger.Warn().Err(err).Str("exam_id", event.ExamID).Msg("failed to publish grading event to redis")
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			observability.GradingEventFailures().WithLabelValues("nats").Inc()
			p.logger.Warn().Err(err).Str("exam_id", event.ExamID).Msg("failed to publish grading event to nats")
		}
	}
}
