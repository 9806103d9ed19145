package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-grader-api/internal/models"
	"github.com/noah-isme/exam-grader-api/internal/repository"
)

func TestDashboardServiceAggregationAndCaching(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: mini.Addr()})

	db := setupServiceDB(t)
	algorithms := seedCourseFor(t, db, 1, "CS301", 30)
	physics := seedCourseFor(t, db, 1, "PH101", 12)
	seedCourseFor(t, db, 2, "XX999", 99)

	exams := repository.NewExamRepository(db)
	ctx := context.Background()

	graded := models.Exam{ID: uuid.NewString(), CourseID: algorithms.ID, Title: "Midterm", TotalMarks: 10, Status: models.ExamStatusPublished}
	pending := models.Exam{ID: uuid.NewString(), CourseID: physics.ID, Title: "Quiz", TotalMarks: 5, Status: models.ExamStatusDraft}
	require.NoError(t, exams.Create(ctx, &graded))
	require.NoError(t, exams.Create(ctx, &pending))

	gradedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, exams.RecordGradeResult(ctx, graded.ID, models.GradeResult{Score: 8, MaxScore: 10, Feedback: "Good"}, gradedAt))

	svc := NewDashboardService(repository.NewCourseRepository(db), exams, redisClient, time.Minute, zerolog.Nop())

	first, err := svc.GetDashboard(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, first.Summary.Courses)
	require.EqualValues(t, 2, first.Summary.Exams)
	require.EqualValues(t, 1, first.Summary.GradedExams)
	require.EqualValues(t, 42, first.Summary.TotalStudents)
	require.InDelta(t, 50.0, first.Summary.GradedRate, 0.001)
	require.Len(t, first.RecentGraded, 1)
	require.Equal(t, "CS301", first.RecentGraded[0].CourseCode)
	require.Equal(t, 8.0, first.RecentGraded[0].Score)
	require.True(t, mini.Exists(dashboardCacheKey(1)))

	require.NoError(t, exams.RecordGradeResult(ctx, pending.ID, models.GradeResult{Score: 5, MaxScore: 5, Feedback: "Perfect"}, gradedAt.Add(time.Hour)))

	cached, err := svc.GetDashboard(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, cached.Summary.GradedExams)

	svc.Invalidate(ctx, 1)
	require.False(t, mini.Exists(dashboardCacheKey(1)))

	fresh, err := svc.GetDashboard(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, fresh.Summary.GradedExams)
	require.Len(t, fresh.RecentGraded, 2)
	require.Equal(t, "PH101", fresh.RecentGraded[0].CourseCode)
}

func TestDashboardServiceWithoutCourses(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewDashboardService(repository.NewCourseRepository(db), repository.NewExamRepository(db), nil, time.Minute, zerolog.Nop())

	response, err := svc.GetDashboard(context.Background(), 5)
	require.NoError(t, err)
	require.Zero(t, response.Summary.Courses)
	require.Zero(t, response.Summary.GradedRate)
	require.Empty(t, response.RecentGraded)
}
