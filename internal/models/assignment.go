package models

import "time"

// AssignmentStatus enumerates practice assignment states.
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentOverdue   AssignmentStatus = "overdue"
)

// Assignment represents a practice task set by a teacher for a student,
// optionally tied to the lesson it was handed out in.
type Assignment struct {
	ID          string           `db:"id" json:"id"`
	Title       string           `db:"title" json:"title"`
	Description string           `db:"description" json:"description"`
	TeacherID   string           `db:"teacher_id" json:"teacher_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	LessonID    *string          `db:"lesson_id" json:"lesson_id,omitempty"`
	Status      AssignmentStatus `db:"status" json:"status"`
	DueDate     *time.Time       `db:"due_date" json:"due_date,omitempty"`
	CompletedAt *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// AssignmentDetail joins display names onto an assignment row.
type AssignmentDetail struct {
	Assignment
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	StudentName string `db:"student_name" json:"student_name"`
}

// AssignmentFilter captures list query parameters layered on top of the
// role visibility predicate.
type AssignmentFilter struct {
	TeacherID string
	StudentID string
	LessonID  string
	Status    string
	Search    string
	DueFrom   *time.Time
	DueTo     *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentAssignmentStats aggregates per-student assignment counters consumed
// by the health scorer.
type StudentAssignmentStats struct {
	StudentID string `db:"student_id" json:"student_id"`
	Total     int    `db:"total" json:"total"`
	Completed int    `db:"completed" json:"completed"`
	Overdue   int    `db:"overdue" json:"overdue"`
}
