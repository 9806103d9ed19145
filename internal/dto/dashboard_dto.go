package dto

import "time"

// DashboardResponse aggregates faculty statistics.
type DashboardResponse struct {
	Summary      DashboardSummary  `json:"summary"`
	RecentGraded []GradedExamEntry `json:"recent_graded"`
	GeneratedAt  time.Time         `json:"generated_at"`
}

// DashboardSummary captures headline counts.
type DashboardSummary struct {
	Courses       int64   `json:"courses"`
	Exams         int64   `json:"exams"`
	GradedExams   int64   `json:"graded_exams"`
	TotalStudents int64   `json:"total_students"`
	GradedRate    float64 `json:"graded_rate"`
}

// GradedExamEntry is a recently graded exam with its last score.
type GradedExamEntry struct {
	ExamID     string    `json:"exam_id"`
	CourseID   string    `json:"course_id"`
	CourseCode string    `json:"course_code"`
	Title      string    `json:"title"`
	Score      float64   `json:"score"`
	MaxScore   float64   `json:"max_score"`
	GradedAt   time.Time `json:"graded_at"`
}
