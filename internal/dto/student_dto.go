package dto

import (
	"time"

	"github.com/noah-isme/exam-grader-api/internal/models"
)

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// StudentListRequest defines filters for the student directory.
type StudentListRequest struct {
	Page     int
	PageSize int
	Search   string
}

// StudentResponse is the directory view of a student account.
type StudentResponse struct {
	ID        uint      `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// StudentListResponse wraps a paginated student response.
type StudentListResponse struct {
	Items      []StudentResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewStudentResponse converts a model into a DTO.
func NewStudentResponse(user models.User) StudentResponse {
	return StudentResponse{
		ID:        user.ID,
		FullName:  user.FullName,
		Email:     user.Email,
		Level:     user.Level,
		CreatedAt: user.CreatedAt,
	}
}
