package service

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/exam-grader-api/internal/models"
)

var (
	pdfPayload = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
	pngPayload = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 2, 0, 0, 0}
)

const fencedResult = "Here is the grade.\n```json\n{\"score\": 8, \"max_score\": 10, \"feedback\": \"Solid work\", \"mistakes\": [\"Missed the unit\"]}\n```\n"

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Course{}, &models.Exam{}))
	return db
}

func seedCourseFor(t *testing.T, db *gorm.DB, instructorID uint, code string, students int) models.Course {
	t.Helper()
	course := models.Course{
		ID:             uuid.NewString(),
		Title:          "Course " + code,
		Code:           code,
		InstructorID:   instructorID,
		InstructorName: "Dr. Ada",
		StudentCount:   students,
		ThemeColor:     CourseThemes[0],
	}
	require.NoError(t, db.Create(&course).Error)
	return course
}

func newValidator() *validator.Validate {
	return validator.New()
}
