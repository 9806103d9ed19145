package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/exam-grader-api/internal/dto"
	"github.com/noah-isme/exam-grader-api/internal/models"
	"github.com/noah-isme/exam-grader-api/internal/repository"
)

// CourseService manages an instructor's courses.
type CourseService interface {
	List(ctx context.Context, instructorID uint) ([]dto.CourseResponse, error)
	Get(ctx context.Context, instructorID uint, courseID string) (dto.CourseResponse, error)
	Create(ctx context.Context, instructor Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error)
}

// ErrCourseNotFound indicates the course does not exist or belongs to
// another instructor.
var ErrCourseNotFound = errors.New("course not found")

// Actor identifies the authenticated caller.
type Actor struct {
	ID   uint
	Name string
	Role string
}

// CourseThemes are the gradients assigned to new courses.
var CourseThemes = []string{
	"from-blue-600 to-cyan-500",
	"from-emerald-500 to-teal-400",
	"from-violet-600 to-purple-500",
	"from-orange-500 to-amber-400",
	"from-pink-600 to-rose-400",
	"from-indigo-600 to-blue-500",
}

type courseService struct {
	repo      repository.CourseRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	pickTheme func() string
}

// NewCourseService constructs the course service.
func NewCourseService(repo repository.CourseRepository, validate *validator.Validate, logger zerolog.Logger) CourseService {
	return &courseService{
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "course_service").Logger(),
		pickTheme: func() string {
			return CourseThemes[rand.Intn(len(CourseThemes))]
		},
	}
}

func (s *courseService) List(ctx context.Context, instructorID uint) ([]dto.CourseResponse, error) {
	courses, err := s.repo.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	return dto.NewCourseResponseSlice(courses), nil
}

func (s *courseService) Get(ctx context.Context, instructorID uint, courseID string) (dto.CourseResponse, error) {
	course, err := s.owned(ctx, instructorID, courseID)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Create(ctx context.Context, instructor Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error) {
	payload.Title = strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	payload.Code = strings.ToUpper(strings.TrimSpace(s.sanitizer.Sanitize(payload.Code)))
	payload.Semester = strings.TrimSpace(s.sanitizer.Sanitize(payload.Semester))
	payload.Description = strings.TrimSpace(s.sanitizer.Sanitize(payload.Description))

	if err := s.validator.Struct(payload); err != nil {
		return dto.CourseResponse{}, err
	}

	course := models.Course{
		ID:             uuid.NewString(),
		Title:          payload.Title,
		Code:           payload.Code,
		Semester:       payload.Semester,
		Description:    payload.Description,
		InstructorID:   instructor.ID,
		InstructorName: instructor.Name,
		StudentCount:   0,
		ThemeColor:     s.pickTheme(),
	}

	if err := s.repo.Create(ctx, &course); err != nil {
		return dto.CourseResponse{}, err
	}

	s.logger.Info().Str("course_id", course.ID).Uint("instructor_id", instructor.ID).Msg("course created")
	return dto.NewCourseResponse(course), nil
}

// owned loads a course and hides courses owned by other instructors.
func (s *courseService) owned(ctx context.Context, instructorID uint, courseID string) (models.Course, error) {
	course, err := s.repo.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, ErrCourseNotFound
		}
		return models.Course{}, err
	}
	if course.InstructorID != instructorID {
		return models.Course{}, ErrCourseNotFound
	}
	return course, nil
}
