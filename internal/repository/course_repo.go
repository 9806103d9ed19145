package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/exam-grader-api/internal/models"
)

// CourseRepository defines persistence operations for courses.
type CourseRepository interface {
	ListByInstructor(ctx context.Context, instructorID uint) ([]models.Course, error)
	GetByID(ctx context.Context, id string) (models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	CountByInstructor(ctx context.Context, instructorID uint) (int64, error)
	SumStudents(ctx context.Context, instructorID uint) (int64, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository instantiates a GORM-backed course repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) ListByInstructor(ctx context.Context, instructorID uint) ([]models.Course, error) {
	var courses []models.Course
	err := r.db.WithContext(ctx).
		Where("instructor_id = ?", instructorID).
		Order("created_at DESC").
		Find(&courses).Error
	if err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) GetByID(ctx context.Context, id string) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, "id = ?", id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepository) CountByInstructor(ctx context.Context, instructorID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Course{}).
		Where("instructor_id = ?", instructorID).
		Count(&total).Error
	return total, err
}

func (r *courseRepository) SumStudents(ctx context.Context, instructorID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Course{}).
		Select("COALESCE(SUM(student_count), 0)").
		Where("instructor_id = ?", instructorID).
		Scan(&total).Error
	return total, err
}
