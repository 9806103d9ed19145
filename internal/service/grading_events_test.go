package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestGradingEventPublisherRedis(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	ctx := context.Background()

	pubsub := redisClient.Subscribe(ctx, "exam-grader:grading")
	defer func() { _ = pubsub.Close() }()
	_, err = pubsub.Receive(ctx)
	require.NoError(t, err)

	publisher := NewGradingEventPublisher(redisClient, "exam-grader", nil, zerolog.Nop())
	gradedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	publisher.PublishExamGraded(ctx, ExamGradedEvent{
		ExamID:   "exam-1",
		CourseID: "course-1",
		Score:    8,
		MaxScore: 10,
		GradedAt: gradedAt,
		ActorID:  4,
	})

	select {
	case msg := <-pubsub.Channel():
		var event ExamGradedEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		require.Equal(t, EventExamGraded, event.Type)
		require.NotEmpty(t, event.ID)
		require.Equal(t, "exam-1", event.ExamID)
		require.Equal(t, 8.0, event.Score)
		require.Equal(t, uint(4), event.ActorID)
		require.True(t, gradedAt.Equal(event.GradedAt))
	case <-time.After(2 * time.Second):
		t.Fatal("expected grading event")
	}
}

func TestGradingEventPublisherToleratesBrokerFailure(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr(), MaxRetries: -1})
	mini.Close()

	publisher := NewGradingEventPublisher(redisClient, "exam-grader", nil, zerolog.Nop())
	require.NotPanics(t, func() {
		publisher.PublishExamGraded(context.Background(), ExamGradedEvent{ExamID: "exam-1"})
	})
}
