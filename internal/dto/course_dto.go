package dto

import (
	"time"

	"github.com/noah-isme/exam-grader-api/internal/models"
)

// CourseCreateRequest describes the payload for creating a course.
type CourseCreateRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=255"`
	Code        string `json:"code" validate:"required,min=2,max=32"`
	Semester    string `json:"semester" validate:"omitempty,max=64"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

// CourseResponse is the serialized representation of a course.
type CourseResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Code           string    `json:"code"`
	Semester       string    `json:"semester"`
	Description    string    `json:"description"`
	InstructorID   uint      `json:"instructor_id"`
	InstructorName string    `json:"instructor_name"`
	StudentCount   int       `json:"student_count"`
	ThemeColor     string    `json:"theme_color"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewCourseResponse converts a model into a DTO.
func NewCourseResponse(model models.Course) CourseResponse {
	return CourseResponse{
		ID:             model.ID,
		Title:          model.Title,
		Code:           model.Code,
		Semester:       model.Semester,
		Description:    model.Description,
		InstructorID:   model.InstructorID,
		InstructorName: model.InstructorName,
		StudentCount:   model.StudentCount,
		ThemeColor:     model.ThemeColor,
		CreatedAt:      model.CreatedAt,
	}
}

// NewCourseResponseSlice converts a slice of models into DTOs.
func NewCourseResponseSlice(courses []models.Course) []CourseResponse {
	responses := make([]CourseResponse, 0, len(courses))
	for _, course := range courses {
		responses = append(responses, NewCourseResponse(course))
	}
	return responses
}
