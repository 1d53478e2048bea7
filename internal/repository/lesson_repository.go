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

// LessonRepository manages persistence for lessons.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs a LessonRepository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

const lessonDetailColumns = `l.id, l.teacher_id, l.student_id, l.title, l.notes, l.status, l.scheduled_at,
        l.duration_minutes, l.created_at, l.updated_at,
        t.full_name AS teacher_name, s.full_name AS student_name`

// List returns lessons visible to the caller, narrowed by the filter.
func (r *LessonRepository) List(ctx context.Context, vis Visibility, filter models.LessonFilter) ([]models.LessonDetail, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	conditions, args = vis.Apply("l", conditions, args)

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("l.student_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("l.status = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("l.scheduled_at >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("l.scheduled_at <= $%d", len(args)))
	}

	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"scheduled_at": "l.scheduled_at",
		"status":       "l.status",
		"created_at":   "l.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "l.scheduled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT %s FROM lessons l
        JOIN profiles t ON t.id = l.teacher_id
        JOIN profiles s ON s.id = l.student_id
        WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		lessonDetailColumns, where, column, order, size, offset)

	var lessons []models.LessonDetail
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lessons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM lessons l WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}
	return lessons, total, nil
}

// FindByID fetches a lesson with joined display names.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.LessonDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons l
        JOIN profiles t ON t.id = l.teacher_id
        JOIN profiles s ON s.id = l.student_id
        WHERE l.id = $1`, lessonDetailColumns)
	var lesson models.LessonDetail
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// Create inserts a lesson.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	lesson.CreatedAt = now
	lesson.UpdatedAt = now
	const query = `INSERT INTO lessons (id, teacher_id, student_id, title, notes, status, scheduled_at, duration_minutes, created_at, updated_at)
        VALUES (:id, :teacher_id, :student_id, :title, :notes, :status, :scheduled_at, :duration_minutes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// Update modifies a lesson.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET title = :title, notes = :notes, status = :status, scheduled_at = :scheduled_at,
        duration_minutes = :duration_minutes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// Delete removes a lesson.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM lessons WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return nil
}

// StatsForTeacher aggregates per-student completed lesson counters for every
// student the teacher works with. One row per student the predicate exposes.
func (r *LessonRepository) StatsForTeacher(ctx context.Context, vis Visibility, since time.Time) ([]models.StudentLessonStats, error) {
	conditions := []string{"p.is_student = TRUE", "p.active = TRUE"}
	args := []interface{}{since}

	subConditions := []string{"l.student_id = p.id", "l.status = 'COMPLETED'"}
	if !vis.All {
		args = append(args, vis.Value)
		if vis.Column == "teacher_id" {
			subConditions = append(subConditions, fmt.Sprintf("l.teacher_id = $%d", len(args)))
		} else {
			// Student and no-role predicates key on the profile row itself.
			conditions = append(conditions, fmt.Sprintf("p.id = $%d", len(args)))
		}
	}

	query := fmt.Sprintf(`SELECT p.id AS student_id, p.full_name AS student_name, p.email AS student_email,
            COUNT(l.id) AS total_completed,
            COUNT(l.id) FILTER (WHERE l.scheduled_at >= $1) AS last_30_days,
            MAX(l.scheduled_at) AS last_lesson_at
        FROM profiles p
        LEFT JOIN lessons l ON %s
        WHERE %s
        GROUP BY p.id, p.full_name, p.email
        ORDER BY p.full_name ASC`,
		strings.Join(subConditions, " AND "), strings.Join(conditions, " AND "))

	var stats []models.StudentLessonStats
	if err := r.db.SelectContext(ctx, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("lesson stats: %w", err)
	}
	return stats, nil
}

// CountByStatusInRange counts lessons with the given status whose scheduled
// time falls inside a window, scoped to one teacher when teacherID is set.
func (r *LessonRepository) CountByStatusInRange(ctx context.Context, teacherID string, status models.LessonStatus, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM lessons WHERE status = $1 AND scheduled_at >= $2 AND scheduled_at < $3`
	args := []interface{}{status, from, to}
	if teacherID != "" {
		query += " AND teacher_id = $4"
		args = append(args, teacherID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count lessons by status: %w", err)
	}
	return count, nil
}

// NewStudentsInRange lists the teacher's students whose profile was created
// inside a window.
func (r *LessonRepository) NewStudentsInRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.InsightStudent, error) {
	const query = `SELECT DISTINCT p.id, p.full_name AS name, p.email
        FROM profiles p
        JOIN lessons l ON l.student_id = p.id
        WHERE l.teacher_id = $1 AND p.is_student = TRUE AND p.created_at >= $2 AND p.created_at < $3
        ORDER BY p.full_name ASC`
	var students []models.InsightStudent
	if err := r.db.SelectContext(ctx, &students, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("new students: %w", err)
	}
	return students, nil
}
