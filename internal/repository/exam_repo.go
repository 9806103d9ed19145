package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/exam-grader-api/internal/models"
)

// ExamStats aggregates exam counts for a set of courses.
type ExamStats struct {
	Total  int64
	Graded int64
}

// ExamRepository defines persistence operations for exams.
type ExamRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Exam, error)
	GetByID(ctx context.Context, courseID, id string) (models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
	SetModelAnswer(ctx context.Context, courseID, id, modelAnswer string) error
	RecordGradeResult(ctx context.Context, examID string, result models.GradeResult, gradedAt time.Time) error
	StatsForCourses(ctx context.Context, courseIDs []string) (ExamStats, error)
	RecentlyGraded(ctx context.Context, courseIDs []string, limit int) ([]models.Exam, error)
}

type examRepository struct {
	db *gorm.DB
}

// NewExamRepository instantiates a GORM-backed exam repository.
func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Exam, error) {
	var exams []models.Exam
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("created_at DESC").
		Find(&exams).Error
	if err != nil {
		return nil, err
	}
	return exams, nil
}

func (r *examRepository) GetByID(ctx context.Context, courseID, id string) (models.Exam, error) {
	var exam models.Exam
	query := r.db.WithContext(ctx).Where("id = ?", id)
	if courseID != "" {
		query = query.Where("course_id = ?", courseID)
	}
	if err := query.First(&exam).Error; err != nil {
		return models.Exam{}, err
	}
	return exam, nil
}

func (r *examRepository) Create(ctx context.Context, exam *models.Exam) error {
	return r.db.WithContext(ctx).Create(exam).Error
}

func (r *examRepository) SetModelAnswer(ctx context.Context, courseID, id, modelAnswer string) error {
	tx := r.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ? AND course_id = ?", id, courseID).
		Update("model_answer_pdf", modelAnswer)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecordGradeResult overwrites the cached result and marks the exam graded
// in a single statement.
func (r *examRepository) RecordGradeResult(ctx context.Context, examID string, result models.GradeResult, gradedAt time.Time) error {
	if result.Mistakes == nil {
		result.Mistakes = []string{}
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}

	tx := r.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", examID).
		Updates(map[string]interface{}{
			"status":            models.ExamStatusGraded,
			"last_graded":       gradedAt,
			"last_grade_result": datatypes.JSON(payload),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *examRepository) StatsForCourses(ctx context.Context, courseIDs []string) (ExamStats, error) {
	var stats ExamStats
	if len(courseIDs) == 0 {
		return stats, nil
	}

	base := r.db.WithContext(ctx).Model(&models.Exam{}).Where("course_id IN ?", courseIDs)
	if err := base.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return ExamStats{}, err
	}
	if err := base.Session(&gorm.Session{}).Where("status = ?", models.ExamStatusGraded).Count(&stats.Graded).Error; err != nil {
		return ExamStats{}, err
	}
	return stats, nil
}

func (r *examRepository) RecentlyGraded(ctx context.Context, courseIDs []string, limit int) ([]models.Exam, error) {
	if len(courseIDs) == 0 {
		return []models.Exam{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	var exams []models.Exam
	err := r.db.WithContext(ctx).
		Where("course_id IN ? AND status = ? AND last_graded IS NOT NULL", courseIDs, models.ExamStatusGraded).
		Order("last_graded DESC").
		Limit(limit).
		Find(&exams).Error
	if err != nil {
		return nil, err
	}
	return exams, nil
}
