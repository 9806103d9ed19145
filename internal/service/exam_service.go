package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/exam-grader-api/internal/dto"
	"github.com/noah-isme/exam-grader-api/internal/grading"
	"github.com/noah-isme/exam-grader-api/internal/models"
	"github.com/noah-isme/exam-grader-api/internal/repository"
	"github.com/noah-isme/exam-grader-api/pkg/ai"
)

// ExamService manages exams inside an instructor's courses.
type ExamService interface {
	List(ctx context.Context, instructorID uint, courseID string) ([]dto.ExamResponse, error)
	Get(ctx context.Context, instructorID uint, courseID, examID string) (dto.ExamResponse, error)
	Create(ctx context.Context, instructorID uint, courseID string, payload dto.ExamCreateRequest, modelAnswer *ModelAnswerUpload) (dto.ExamResponse, error)
	SetModelAnswer(ctx context.Context, instructorID uint, courseID, examID string, payload dto.ExamModelAnswerRequest, modelAnswer *ModelAnswerUpload) (dto.ExamResponse, error)
	Load(ctx context.Context, instructorID uint, courseID, examID string) (models.Exam, error)
}

// ModelAnswerUpload is a model answer received as a file.
type ModelAnswerUpload struct {
	Name   string
	Reader io.Reader
}

// ErrExamNotFound indicates the exam does not exist in the course.
var ErrExamNotFound = errors.New("exam not found")

// ErrModelAnswerRequired indicates an update carried no model answer.
var ErrModelAnswerRequired = errors.New("model answer is required")

// ErrModelAnswerNotPDF indicates the uploaded model answer is not a PDF.
var ErrModelAnswerNotPDF = errors.New("model answer must be a PDF document")

type examService struct {
	exams     repository.ExamRepository
	courses   repository.CourseRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewExamService constructs the exam service.
func NewExamService(exams repository.ExamRepository, courses repository.CourseRepository, validate *validator.Validate, logger zerolog.Logger) ExamService {
	return &examService{
		exams:     exams,
		courses:   courses,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "exam_service").Logger(),
	}
}

func (s *examService) List(ctx context.Context, instructorID uint, courseID string) ([]dto.ExamResponse, error) {
	if err := s.ensureCourse(ctx, instructorID, courseID); err != nil {
		return nil, err
	}
	exams, err := s.exams.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return dto.NewExamResponseSlice(exams), nil
}

func (s *examService) Get(ctx context.Context, instructorID uint, courseID, examID string) (dto.ExamResponse, error) {
	exam, err := s.Load(ctx, instructorID, courseID, examID)
	if err != nil {
		return dto.ExamResponse{}, err
	}
	return dto.NewExamResponse(exam), nil
}

func (s *examService) Create(ctx context.Context, instructorID uint, courseID string, payload dto.ExamCreateRequest, modelAnswer *ModelAnswerUpload) (dto.ExamResponse, error) {
	payload.Title = strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	payload.Date = strings.TrimSpace(s.sanitizer.Sanitize(payload.Date))
	payload.Status = strings.TrimSpace(payload.Status)

	if err := s.validator.Struct(payload); err != nil {
		return dto.ExamResponse{}, err
	}
	if err := s.ensureCourse(ctx, instructorID, courseID); err != nil {
		return dto.ExamResponse{}, err
	}

	reference, err := s.encodeModelAnswer(ctx, payload.ModelAnswerPDF, modelAnswer)
	if err != nil {
		return dto.ExamResponse{}, err
	}

	status := models.ExamStatusDraft
	if payload.Status != "" {
		status = models.ExamStatus(payload.Status)
	}

	exam := models.Exam{
		ID:             uuid.NewString(),
		CourseID:       courseID,
		Title:          payload.Title,
		Date:           payload.Date,
		TotalMarks:     payload.TotalMarks,
		Status:         status,
		ModelAnswerPDF: reference,
	}

	if err := s.exams.Create(ctx, &exam); err != nil {
		return dto.ExamResponse{}, err
	}

	s.logger.Info().
		Str("exam_id", exam.ID).
		Str("course_id", courseID).
		Bool("model_answer", exam.HasModelAnswer()).
		Msg("exam created")
	return dto.NewExamResponse(exam), nil
}

// SetModelAnswer replaces the reference document. Sessions opened earlier
// keep the exam as it was when they started.
func (s *examService) SetModelAnswer(ctx context.Context, instructorID uint, courseID, examID string, payload dto.ExamModelAnswerRequest, modelAnswer *ModelAnswerUpload) (dto.ExamResponse, error) {
	exam, err := s.Load(ctx, instructorID, courseID, examID)
	if err != nil {
		return dto.ExamResponse{}, err
	}

	reference, err := s.encodeModelAnswer(ctx, payload.ModelAnswerPDF, modelAnswer)
	if err != nil {
		return dto.ExamResponse{}, err
	}
	if reference == "" {
		return dto.ExamResponse{}, ErrModelAnswerRequired
	}

	if err := s.exams.SetModelAnswer(ctx, courseID, examID, reference); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamResponse{}, ErrExamNotFound
		}
		return dto.ExamResponse{}, err
	}
	exam.ModelAnswerPDF = reference

	s.logger.Info().Str("exam_id", examID).Str("course_id", courseID).Msg("model answer updated")
	return dto.NewExamResponse(exam), nil
}

func (s *examService) Load(ctx context.Context, instructorID uint, courseID, examID string) (models.Exam, error) {
	if err := s.ensureCourse(ctx, instructorID, courseID); err != nil {
		return models.Exam{}, err
	}
	exam, err := s.exams.GetByID(ctx, courseID, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Exam{}, ErrExamNotFound
		}
		return models.Exam{}, err
	}
	return exam, nil
}

func (s *examService) ensureCourse(ctx context.Context, instructorID uint, courseID string) error {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCourseNotFound
		}
		return err
	}
	if course.InstructorID != instructorID {
		return ErrCourseNotFound
	}
	return nil
}

// encodeModelAnswer prefers the uploaded file over the inline payload. An
// exam may be created without a model answer.
func (s *examService) encodeModelAnswer(ctx context.Context, inline string, upload *ModelAnswerUpload) (string, error) {
	if upload != nil {
		encoded, err := grading.Encode(ctx, upload.Name, upload.Reader)
		if err != nil {
			return "", err
		}
		if encoded.MimeType != ai.MimeTypePDF {
			return "", fmt.Errorf("%w: detected %s", ErrModelAnswerNotPDF, encoded.MimeType)
		}
		return encoded.Data, nil
	}

	if strings.TrimSpace(inline) == "" {
		return "", nil
	}

	payload, err := grading.StripDataURI(inline)
	if err != nil {
		return "", err
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", &grading.EncodingError{Err: err}
	}
	if detected := grading.DetectMediaType(decoded); detected != ai.MimeTypePDF {
		return "", fmt.Errorf("%w: detected %s", ErrModelAnswerNotPDF, detected)
	}
	return payload, nil
}
