package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ExamStatus is the lifecycle state of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "Draft"
	ExamStatusPublished ExamStatus = "Published"
	ExamStatusGraded    ExamStatus = "Graded"
)

// Valid reports whether the status is one of the known lifecycle values.
func (s ExamStatus) Valid() bool {
	switch s {
	case ExamStatusDraft, ExamStatusPublished, ExamStatusGraded:
		return true
	}
	return false
}

// GradeResult is the validated outcome of one grading attempt.
type GradeResult struct {
	Score    float64  `json:"score"`
	MaxScore float64  `json:"max_score"`
	Feedback string   `json:"feedback"`
	Mistakes []string `json:"mistakes"`
}

// Exam is one assessment owned by a course.
type Exam struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	CourseID        string         `gorm:"size:36;not null;index" json:"course_id"`
	Title           string         `gorm:"size:255;not null" json:"title"`
	Date            string         `gorm:"size:64" json:"date"`
	TotalMarks      int            `gorm:"not null" json:"total_marks"`
	Status          ExamStatus     `gorm:"size:16;not null;default:Draft;index" json:"status"`
	ModelAnswerPDF  string         `gorm:"type:text" json:"-"`
	LastGraded      *time.Time     `json:"last_graded"`
	LastGradeResult datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// HasModelAnswer reports whether a reference answer encoding is stored.
func (e Exam) HasModelAnswer() bool {
	return strings.TrimSpace(e.ModelAnswerPDF) != ""
}

// SetGradeResult serializes the result into the JSON storage column.
func (e *Exam) SetGradeResult(result GradeResult) error {
	if result.Mistakes == nil {
		result.Mistakes = []string{}
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	e.LastGradeResult = datatypes.JSON(data)
	return nil
}

// GradeResult deserializes the cached result, or nil when none is stored.
func (e Exam) GradeResult() *GradeResult {
	if len(e.LastGradeResult) == 0 || string(e.LastGradeResult) == "null" {
		return nil
	}

	var result GradeResult
	if err := json.Unmarshal(e.LastGradeResult, &result); err != nil {
		return nil
	}
	return &result
}
