package models

import "time"

// Notification type identifiers. Preferences are keyed by these values.
const (
	NotificationWeeklyDigest      = "weekly_progress_digest"
	NotificationTeacherInsights   = "teacher_weekly_insights"
	NotificationAssignmentOverdue = "assignment_overdue"
)

// Notification is an in-app notification row.
type Notification struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Type      string     `db:"type" json:"type"`
	Title     string     `db:"title" json:"title"`
	Body      string     `db:"body" json:"body"`
	Read      bool       `db:"read" json:"read"`
	ReadAt    *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// NotificationPreference records a user's opt-in for a notification type.
type NotificationPreference struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Enabled   bool      `db:"enabled" json:"enabled"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
