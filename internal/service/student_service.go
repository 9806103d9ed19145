package service

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/exam-grader-api/internal/dto"
	"github.com/noah-isme/exam-grader-api/internal/repository"
)

const maxStudentPageSize = 100

// StudentService serves the faculty student directory.
type StudentService interface {
	List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error)
}

type studentService struct {
	users  repository.UserRepository
	logger zerolog.Logger
}

// NewStudentService constructs the student directory service.
func NewStudentService(users repository.UserRepository, logger zerolog.Logger) StudentService {
	return &studentService{
		users:  users,
		logger: logger.With().Str("component", "student_service").Logger(),
	}
}

func (s *studentService) List(ctx context.Context, req dto.StudentListRequest) (dto.StudentListResponse, error) {
	if req.PageSize > maxStudentPageSize {
		req.PageSize = maxStudentPageSize
	}
	if req.PageSize < 0 {
		req.PageSize = 0
	}

	students, total, err := s.users.ListStudents(ctx, repository.StudentFilter{
		Search:   strings.TrimSpace(req.Search),
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		return dto.StudentListResponse{}, err
	}

	items := make([]dto.StudentResponse, 0, len(students))
	for _, student := range students {
		items = append(items, dto.NewStudentResponse(student))
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(req.Page, 1),
		PageSize:   req.PageSize,
		TotalItems: total,
	}
	if req.PageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	} else {
		pagination.TotalPages = 1
	}

	return dto.StudentListResponse{Items: items, Pagination: pagination}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
