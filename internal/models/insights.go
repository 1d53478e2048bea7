package models

import "time"

// InsightStudent is a student reference inside a weekly digest.
type InsightStudent struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// AtRiskStudent flags a student whose health score fell under the digest
// threshold.
type AtRiskStudent struct {
	InsightStudent
	HealthScore        int `json:"health_score"`
	OverdueAssignments int `json:"overdue_assignments"`
}

// OverdueAssignmentLine is a digest line for an overdue assignment.
type OverdueAssignmentLine struct {
	StudentName     string    `db:"student_name" json:"student_name"`
	AssignmentTitle string    `db:"assignment_title" json:"assignment_title"`
	DueDate         time.Time `db:"due_date" json:"due_date"`
}

// WeeklyInsights aggregates one teacher's week for the digest notification.
type WeeklyInsights struct {
	TeacherID          string                  `json:"teacher_id"`
	TeacherName        string                  `json:"teacher_name"`
	TeacherEmail       string                  `json:"teacher_email"`
	RangeStart         time.Time               `json:"range_start"`
	RangeEnd           time.Time               `json:"range_end"`
	LessonsCompleted   int                     `json:"lessons_completed"`
	LessonsCancelled   int                     `json:"lessons_cancelled"`
	AssignmentsDone    int                     `json:"assignments_done"`
	NewStudents        []InsightStudent        `json:"new_students"`
	SongsMastered      []MasteredSong          `json:"songs_mastered"`
	AtRiskStudents     []AtRiskStudent         `json:"at_risk_students"`
	OverdueAssignments []OverdueAssignmentLine `json:"overdue_assignments"`
}
