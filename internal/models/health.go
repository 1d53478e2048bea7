package models

import "time"

// NoLessonSentinel is the DaysSinceLastLesson value used when a student has
// never had a lesson.
const NoLessonSentinel = 999

// HealthFactors are the per-student behavioural inputs to the health scorer.
// They are computed fresh per request and never persisted.
type HealthFactors struct {
	DaysSinceLastLesson      int     `json:"days_since_last_lesson"`
	LessonsPerMonth          int     `json:"lessons_per_month"`
	AssignmentCompletionRate float64 `json:"assignment_completion_rate"`
	DaysSinceLastContact     int     `json:"days_since_last_contact"`
	TotalLessonsCompleted    int     `json:"total_lessons_completed"`
}

// HealthStatus is an ordered categorical engagement label.
type HealthStatus string

const (
	HealthExcellent      HealthStatus = "excellent"
	HealthGood           HealthStatus = "good"
	HealthNeedsAttention HealthStatus = "needs_attention"
	HealthAtRisk         HealthStatus = "at_risk"
	HealthCritical       HealthStatus = "critical"
)

// StudentHealthScore is the scorer output: a 0-100 composite, its status
// label, the factors that produced it and an advisory next step.
type StudentHealthScore struct {
	Score             int           `json:"score"`
	Status            HealthStatus  `json:"status"`
	Factors           HealthFactors `json:"factors"`
	RecommendedAction string        `json:"recommended_action"`
}

// StudentHealthSummary is one row of the ranked health dashboard.
type StudentHealthSummary struct {
	StudentID          string        `json:"student_id"`
	Name               string        `json:"name"`
	Email              string        `json:"email"`
	Score              int           `json:"score"`
	Status             HealthStatus  `json:"status"`
	Factors            HealthFactors `json:"factors"`
	RecommendedAction  string        `json:"recommended_action"`
	LastLessonAt       *time.Time    `json:"last_lesson_at,omitempty"`
	LessonsThisMonth   int           `json:"lessons_this_month"`
	OverdueAssignments int           `json:"overdue_assignments"`
}
