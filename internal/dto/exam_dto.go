package dto

import (
	"time"

	"github.com/noah-isme/exam-grader-api/internal/models"
)

// ExamCreateRequest describes the payload for creating an exam. The model
// answer arrives either as a multipart file or as ModelAnswerPDF (bare
// base64 or a data URL).
type ExamCreateRequest struct {
	Title          string `form:"title" json:"title" validate:"required,min=2,max=255"`
	Date           string `form:"date" json:"date" validate:"required,max=64"`
	TotalMarks     int    `form:"total_marks" json:"total_marks" validate:"required,gt=0"`
	Status         string `form:"status" json:"status" validate:"omitempty,oneof=Draft Published"`
	ModelAnswerPDF string `form:"-" json:"model_answer_pdf"`
}

// ExamModelAnswerRequest replaces an exam's model answer. A multipart
// model_answer file takes precedence over ModelAnswerPDF.
type ExamModelAnswerRequest struct {
	ModelAnswerPDF string `form:"-" json:"model_answer_pdf"`
}

// GradeResultResponse is the serialized grading outcome.
type GradeResultResponse struct {
	Score    float64  `json:"score"`
	MaxScore float64  `json:"max_score"`
	Feedback string   `json:"feedback"`
	Mistakes []string `json:"mistakes"`
}

// ExamResponse is the serialized representation of an exam.
type ExamResponse struct {
	ID              string               `json:"id"`
	CourseID        string               `json:"course_id"`
	Title           string               `json:"title"`
	Date            string               `json:"date"`
	TotalMarks      int                  `json:"total_marks"`
	Status          string               `json:"status"`
	HasModelAnswer  bool                 `json:"has_model_answer"`
	LastGraded      *time.Time           `json:"last_graded"`
	LastGradeResult *GradeResultResponse `json:"last_grade_result"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// NewGradeResultResponse converts a result value into a DTO.
func NewGradeResultResponse(result *models.GradeResult) *GradeResultResponse {
	if result == nil {
		return nil
	}
	mistakes := make([]string, len(result.Mistakes))
	copy(mistakes, result.Mistakes)
	return &GradeResultResponse{
		Score:    result.Score,
		MaxScore: result.MaxScore,
		Feedback: result.Feedback,
		Mistakes: mistakes,
	}
}

// NewExamResponse converts a model into a DTO.
func NewExamResponse(model models.Exam) ExamResponse {
	return ExamResponse{
		ID:              model.ID,
		CourseID:        model.CourseID,
		Title:           model.Title,
		Date:            model.Date,
		TotalMarks:      model.TotalMarks,
		Status:          string(model.Status),
		HasModelAnswer:  model.HasModelAnswer(),
		LastGraded:      model.LastGraded,
		LastGradeResult: NewGradeResultResponse(model.GradeResult()),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

// NewExamResponseSlice converts a slice of models into DTOs.
func NewExamResponseSlice(exams []models.Exam) []ExamResponse {
	responses := make([]ExamResponse, 0, len(exams))
	for _, exam := range exams {
		responses = append(responses, NewExamResponse(exam))
	}
	return responses
}
