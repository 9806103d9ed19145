package dto

import (
	"time"

	"github.com/noah-isme/exam-grader-api/internal/grading"
)

// GradingSessionCreateRequest opens a grading session for one exam.
type GradingSessionCreateRequest struct {
	CourseID string `json:"course_id" validate:"required,uuid"`
	ExamID   string `json:"exam_id" validate:"required,uuid"`
}

// GradingImageResponse describes the selected student image.
type GradingImageResponse struct {
	Name      string `json:"name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int    `json:"size_bytes"`
}

// GradingSessionResponse is the serialized session snapshot.
type GradingSessionResponse struct {
	ID        string                `json:"id"`
	ExamID    string                `json:"exam_id"`
	CourseID  string                `json:"course_id"`
	ExamTitle string                `json:"exam_title"`
	State     string                `json:"state"`
	Attempt   uint64                `json:"attempt"`
	Image     *GradingImageResponse `json:"image"`
	Result    *GradeResultResponse  `json:"result"`
	Error     string                `json:"error,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// NewGradingSessionResponse converts a controller snapshot into a DTO.
func NewGradingSessionResponse(id string, snapshot grading.Snapshot) GradingSessionResponse {
	response := GradingSessionResponse{
		ID:        id,
		ExamID:    snapshot.ExamID,
		CourseID:  snapshot.CourseID,
		ExamTitle: snapshot.ExamTitle,
		State:     string(snapshot.State),
		Attempt:   snapshot.Attempt,
		Result:    NewGradeResultResponse(snapshot.Result),
		UpdatedAt: snapshot.UpdatedAt,
	}
	if snapshot.ImageSize > 0 {
		response.Image = &GradingImageResponse{
			Name:      snapshot.ImageName,
			MimeType:  snapshot.ImageMimeType,
			SizeBytes: snapshot.ImageSize,
		}
	}
	if snapshot.Err != nil {
		response.Error = grading.UserMessage(snapshot.Err)
	}
	return response
}
