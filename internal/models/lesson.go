package models

import "time"

// LessonStatus enumerates lifecycle states for a lesson.
type LessonStatus string

const (
	LessonStatusScheduled LessonStatus = "SCHEDULED"
	LessonStatusCompleted LessonStatus = "COMPLETED"
	LessonStatusCancelled LessonStatus = "CANCELLED"
)

// Lesson represents a scheduled or delivered guitar lesson.
type Lesson struct {
	ID              string       `db:"id" json:"id"`
	TeacherID       string       `db:"teacher_id" json:"teacher_id"`
	StudentID       string       `db:"student_id" json:"student_id"`
	Title           string       `db:"title" json:"title"`
	Notes           string       `db:"notes" json:"notes"`
	Status          LessonStatus `db:"status" json:"status"`
	ScheduledAt     time.Time    `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes int          `db:"duration_minutes" json:"duration_minutes"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// LessonDetail joins teacher and student display fields onto a lesson.
type LessonDetail struct {
	Lesson
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	StudentName string `db:"student_name" json:"student_name"`
}

// LessonFilter captures list query parameters. Caller-supplied filters are
// layered on top of the role visibility predicate, never instead of it.
type LessonFilter struct {
	StudentID string
	Status    string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentLessonStats aggregates the per-student lesson counters consumed by
// the health scorer.
type StudentLessonStats struct {
	StudentID      string     `db:"student_id" json:"student_id"`
	StudentName    string     `db:"student_name" json:"student_name"`
	StudentEmail   string     `db:"student_email" json:"student_email"`
	TotalCompleted int        `db:"total_completed" json:"total_completed"`
	Last30Days     int        `db:"last_30_days" json:"last_30_days"`
	LastLessonAt   *time.Time `db:"last_lesson_at" json:"last_lesson_at,omitempty"`
}
