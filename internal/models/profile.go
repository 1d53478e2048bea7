package models

import "time"

// RoleFlags captures the independent capability flags on a profile. A user
// may hold more than one role at the same time; access decisions test the
// flags in priority order rather than treating them as exclusive.
type RoleFlags struct {
	IsAdmin   bool `db:"is_admin" json:"is_admin"`
	IsTeacher bool `db:"is_teacher" json:"is_teacher"`
	IsStudent bool `db:"is_student" json:"is_student"`
}

// HasAny reports whether at least one role flag is set.
func (r RoleFlags) HasAny() bool {
	return r.IsAdmin || r.IsTeacher || r.IsStudent
}

// Profile represents an application user stored in the profiles table.
type Profile struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	IsAdmin      bool       `db:"is_admin" json:"is_admin"`
	IsTeacher    bool       `db:"is_teacher" json:"is_teacher"`
	IsStudent    bool       `db:"is_student" json:"is_student"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Roles returns the profile's capability flags.
func (p *Profile) Roles() RoleFlags {
	return RoleFlags{IsAdmin: p.IsAdmin, IsTeacher: p.IsTeacher, IsStudent: p.IsStudent}
}

// ProfileFilter captures filtering criteria for listing profiles.
type ProfileFilter struct {
	Role      string // "admin", "teacher" or "student"
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
