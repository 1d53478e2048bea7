package models

import "time"

// Song represents an entry in the shared song catalog.
type Song struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Author    string    `db:"author" json:"author"`
	Level     string    `db:"level" json:"level"`
	Key       string    `db:"key" json:"key"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SongFilter captures allowed search parameters for listing songs.
type SongFilter struct {
	Level     string
	Key       string
	Author    string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ProgressStatus enumerates a student's standing on a song.
type ProgressStatus string

const (
	ProgressWantToLearn ProgressStatus = "want_to_learn"
	ProgressLearning    ProgressStatus = "learning"
	ProgressMastered    ProgressStatus = "mastered"
)

// SongProgress tracks one student's journey through one song.
type SongProgress struct {
	ID         string         `db:"id" json:"id"`
	SongID     string         `db:"song_id" json:"song_id"`
	StudentID  string         `db:"student_id" json:"student_id"`
	Status     ProgressStatus `db:"status" json:"status"`
	StartedAt  *time.Time     `db:"started_at" json:"started_at,omitempty"`
	MasteredAt *time.Time     `db:"mastered_at" json:"mastered_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// SongProgressDetail joins song metadata onto a progress row.
type SongProgressDetail struct {
	SongProgress
	SongTitle  string `db:"song_title" json:"song_title"`
	SongAuthor string `db:"song_author" json:"song_author"`
}

// MasteredSong is a digest line for weekly insights.
type MasteredSong struct {
	StudentName string    `db:"student_name" json:"student_name"`
	SongTitle   string    `db:"song_title" json:"song_title"`
	MasteredAt  time.Time `db:"mastered_at" json:"mastered_at"`
}
