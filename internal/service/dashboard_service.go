package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-grader-api/internal/dto"
	"github.com/noah-isme/exam-grader-api/internal/models"
	"github.com/noah-isme/exam-grader-api/internal/repository"
)

const recentGradedLimit = 5

// DashboardService aggregates an instructor's course and grading statistics.
type DashboardService interface {
	GetDashboard(ctx context.Context, instructorID uint) (dto.DashboardResponse, error)
	Invalidate(ctx context.Context, instructorID uint)
}

type dashboardService struct {
	courses  repository.CourseRepository
	exams    repository.ExamRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDashboardService builds the dashboard aggregator. cache may be nil.
func NewDashboardService(courses repository.CourseRepository, exams repository.ExamRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) DashboardService {
	return &dashboardService{
		courses:  courses,
		exams:    exams,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "dashboard_service").Logger(),
		now:      time.Now,
	}
}

func dashboardCacheKey(instructorID uint) string {
	return fmt.Sprintf("dashboard:faculty:%d", instructorID)
}

func (s *dashboardService) GetDashboard(ctx context.Context, instructorID uint) (dto.DashboardResponse, error) {
	cacheKey := dashboardCacheKey(instructorID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.DashboardResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("instructor_id", instructorID).Msg("dashboard cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read dashboard cache")
		}
	}

	courses, err := s.courses.ListByInstructor(ctx, instructorID)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	courseIDs := make([]string, 0, len(courses))
	codes := make(map[string]string, len(courses))
	var students int64
	for _, course := range courses {
		courseIDs = append(courseIDs, course.ID)
		codes[course.ID] = course.Code
		students += int64(course.StudentCount)
	}

	stats, err := s.exams.StatsForCourses(ctx, courseIDs)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	recent, err := s.exams.RecentlyGraded(ctx, courseIDs, recentGradedLimit)
	if err != nil {
		return dto.DashboardResponse{}, err
	}

	response := dto.DashboardResponse{
		Summary: dto.DashboardSummary{
			Courses:       int64(len(courses)),
			Exams:         stats.Total,
			GradedExams:   stats.Graded,
			TotalStudents: students,
		},
		RecentGraded: recentEntries(recent, codes),
		GeneratedAt:  s.now().UTC(),
	}
	if stats.Total > 0 {
		response.Summary.GradedRate = float64(stats.Graded) / float64(stats.Total) * 100
	}

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store dashboard cache")
			}
		}
	}

	return response, nil
}

// Invalidate drops the cached dashboard so the next read reflects new data.
func (s *dashboardService) Invalidate(ctx context.Context, instructorID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, dashboardCacheKey(instructorID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("instructor_id", instructorID).Msg("failed to invalidate dashboard cache")
	}
}

func recentEntries(exams []models.Exam, codes map[string]string) []dto.GradedExamEntry {
	entries := make([]dto.GradedExamEntry, 0, len(exams))
	for _, exam := range exams {
		entry := dto.GradedExamEntry{
			ExamID:     exam.ID,
			CourseID:   exam.CourseID,
			CourseCode: codes[exam.CourseID],
			Title:      exam.Title,
		}
		if exam.LastGraded != nil {
			entry.GradedAt = *exam.LastGraded
		}
		if result := exam.GradeResult(); result != nil {
			entry.Score = result.Score
			entry.MaxScore = result.MaxScore
		}
		entries = append(entries, entry)
	}
	return entries
}
