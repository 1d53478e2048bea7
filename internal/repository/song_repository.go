package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/strumline/guitar-crm-api/internal/models"
)

// SongRepository manages the shared song catalog and per-student progress.
type SongRepository struct {
	db *sqlx.DB
}

// NewSongRepository constructs a SongRepository.
func NewSongRepository(db *sqlx.DB) *SongRepository {
	return &SongRepository{db: db}
}

// List returns catalog songs matching the filter.
func (r *SongRepository) List(ctx context.Context, filter models.SongFilter) ([]models.Song, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Level != "" {
		args = append(args, filter.Level)
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)))
	}
	if filter.Key != "" {
		args = append(args, filter.Key)
		conditions = append(conditions, fmt.Sprintf("key = $%d", len(args)))
	}
	if filter.Author != "" {
		args = append(args, "%"+strings.ToLower(filter.Author)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(author) LIKE $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(author) LIKE $%d)", len(args), len(args)))
	}

	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"title":      "title",
		"author":     "author",
		"level":      "level",
		"created_at": "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "title"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, title, author, level, key, created_at, updated_at FROM songs
        WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`, where, column, order, size, offset)

	var songs []models.Song
	if err := r.db.SelectContext(ctx, &songs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list songs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM songs WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count songs: %w", err)
	}
	return songs, total, nil
}

// FindByID fetches a song.
func (r *SongRepository) FindByID(ctx context.Context, id string) (*models.Song, error) {
	const query = `SELECT id, title, author, level, key, created_at, updated_at FROM songs WHERE id = $1`
	var song models.Song
	if err := r.db.GetContext(ctx, &song, query, id); err != nil {
		return nil, err
	}
	return &song, nil
}

// Create inserts a catalog song.
func (r *SongRepository) Create(ctx context.Context, song *models.Song) error {
	if song.ID == "" {
		song.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	song.CreatedAt = now
	song.UpdatedAt = now
	const query = `INSERT INTO songs (id, title, author, level, key, created_at, updated_at)
        VALUES (:id, :title, :author, :level, :key, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, song); err != nil {
		return fmt.Errorf("create song: %w", err)
	}
	return nil
}

// Update modifies a catalog song.
func (r *SongRepository) Update(ctx context.Context, song *models.Song) error {
	song.UpdatedAt = time.Now().UTC()
	const query = `UPDATE songs SET title = :title, author = :author, level = :level, key = :key,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, song); err != nil {
		return fmt.Errorf("update song: %w", err)
	}
	return nil
}

// Delete removes a catalog song.
func (r *SongRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM songs WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete song: %w", err)
	}
	return nil
}

// UpsertProgress creates or replaces a student's standing on a song. A song
// can appear at most once per student.
func (r *SongRepository) UpsertProgress(ctx context.Context, progress *models.SongProgress) error {
	if progress.ID == "" {
		progress.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if progress.CreatedAt.IsZero() {
		progress.CreatedAt = now
	}
	progress.UpdatedAt = now
	const query = `INSERT INTO song_progress (id, song_id, student_id, status, started_at, mastered_at, created_at, updated_at)
        VALUES (:id, :song_id, :student_id, :status, :started_at, :mastered_at, :created_at, :updated_at)
        ON CONFLICT (song_id, student_id) DO UPDATE SET
            status = EXCLUDED.status,
            started_at = EXCLUDED.started_at,
            mastered_at = EXCLUDED.mastered_at,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, progress); err != nil {
		return fmt.Errorf("upsert song progress: %w", err)
	}
	return nil
}

// ListProgress returns a student's song progress rows with song metadata.
func (r *SongRepository) ListProgress(ctx context.Context, studentID string) ([]models.SongProgressDetail, error) {
	const query = `SELECT sp.id, sp.song_id, sp.student_id, sp.status, sp.started_at, sp.mastered_at,
            sp.created_at, sp.updated_at, s.title AS song_title, s.author AS song_author
        FROM song_progress sp
        JOIN songs s ON s.id = sp.song_id
        WHERE sp.student_id = $1
        ORDER BY sp.updated_at DESC`
	var progress []models.SongProgressDetail
	if err := r.db.SelectContext(ctx, &progress, query, studentID); err != nil {
		return nil, fmt.Errorf("list song progress: %w", err)
	}
	return progress, nil
}

// DeleteProgress removes a progress row, scoped to the owning student.
func (r *SongRepository) DeleteProgress(ctx context.Context, id, studentID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM song_progress WHERE id = $1 AND student_id = $2", id, studentID)
	if err != nil {
		return false, fmt.Errorf("delete song progress: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete song progress: %w", err)
	}
	return affected > 0, nil
}

// MasteredInRange lists songs mastered inside a window for one teacher's
// students. teacherID empty means across all teachers.
func (r *SongRepository) MasteredInRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.MasteredSong, error) {
	query := `SELECT p.full_name AS student_name, s.title AS song_title, sp.mastered_at
        FROM song_progress sp
        JOIN songs s ON s.id = sp.song_id
        JOIN profiles p ON p.id = sp.student_id
        WHERE sp.status = 'mastered' AND sp.mastered_at >= $1 AND sp.mastered_at < $2`
	args := []interface{}{from, to}
	if teacherID != "" {
		query += ` AND sp.student_id IN (SELECT DISTINCT student_id FROM lessons WHERE teacher_id = $3)`
		args = append(args, teacherID)
	}
	query += " ORDER BY sp.mastered_at DESC"

	var mastered []models.MasteredSong
	if err := r.db.SelectContext(ctx, &mastered, query, args...); err != nil {
		return nil, fmt.Errorf("mastered songs: %w", err)
	}
	return mastered, nil
}
