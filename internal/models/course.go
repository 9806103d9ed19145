package models

import "time"

// Course groups exams taught by one instructor.
type Course struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Title          string    `gorm:"size:255;not null" json:"title"`
	Code           string    `gorm:"size:32;not null" json:"code"`
	Semester       string    `gorm:"size:64" json:"semester"`
	Description    string    `gorm:"type:text" json:"description"`
	InstructorID   uint      `gorm:"not null;index" json:"instructor_id"`
	InstructorName string    `gorm:"size:255" json:"instructor_name"`
	StudentCount   int       `gorm:"not null;default:0" json:"student_count"`
	ThemeColor     string    `gorm:"size:64" json:"theme_color"`
	CreatedAt      time.Time `json:"created_at"`
	Exams          []Exam    `gorm:"foreignKey:CourseID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
