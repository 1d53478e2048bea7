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

// AssignmentRepository manages persistence for practice assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentDetailColumns = `a.id, a.title, a.description, a.teacher_id, a.student_id, a.lesson_id,
        a.status, a.due_date, a.completed_at, a.created_at, a.updated_at,
        t.full_name AS teacher_name, s.full_name AS student_name`

// List returns assignments visible to the caller, narrowed by the filter.
func (r *AssignmentRepository) List(ctx context.Context, vis Visibility, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	conditions, args = vis.Apply("a", conditions, args)

	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("a.teacher_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)))
	}
	if filter.LessonID != "" {
		args = append(args, filter.LessonID)
		conditions = append(conditions, fmt.Sprintf("a.lesson_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(a.title) LIKE $%d", len(args)))
	}
	if filter.DueFrom != nil {
		args = append(args, *filter.DueFrom)
		conditions = append(conditions, fmt.Sprintf("a.due_date >= $%d", len(args)))
	}
	if filter.DueTo != nil {
		args = append(args, *filter.DueTo)
		conditions = append(conditions, fmt.Sprintf("a.due_date <= $%d", len(args)))
	}

	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"due_date":   "a.due_date",
		"status":     "a.status",
		"created_at": "a.created_at",
		"title":      "a.title",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "a.created_at"
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

	query := fmt.Sprintf(`SELECT %s FROM assignments a
        JOIN profiles t ON t.id = a.teacher_id
        JOIN profiles s ON s.id = a.student_id
        WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		assignmentDetailColumns, where, column, order, size, offset)

	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM assignments a WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}
	return assignments, total, nil
}

// FindByID fetches one assignment with joined display names.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignments a
        JOIN profiles t ON t.id = a.teacher_id
        JOIN profiles s ON s.id = a.student_id
        WHERE a.id = $1`, assignmentDetailColumns)
	var assignment models.AssignmentDetail
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Create inserts an assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	const query = `INSERT INTO assignments (id, title, description, teacher_id, student_id, lesson_id, status, due_date, created_at, updated_at)
        VALUES (:id, :title, :description, :teacher_id, :student_id, :lesson_id, :status, :due_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update modifies an assignment.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET title = :title, description = :description, lesson_id = :lesson_id,
        status = :status, due_date = :due_date, completed_at = :completed_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM assignments WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// StatsByStudent aggregates assignment counters per student, keyed by
// student ID for joining against lesson stats.
func (r *AssignmentRepository) StatsByStudent(ctx context.Context, vis Visibility) (map[string]models.StudentAssignmentStats, error) {
	conditions := []string{"1=1"}
	var args []interface{}
	conditions, args = vis.Apply("a", conditions, args)

	query := fmt.Sprintf(`SELECT a.student_id,
            COUNT(*) AS total,
            COUNT(*) FILTER (WHERE a.status = 'completed') AS completed,
            COUNT(*) FILTER (WHERE a.status = 'overdue') AS overdue
        FROM assignments a WHERE %s GROUP BY a.student_id`,
		strings.Join(conditions, " AND "))

	var rows []models.StudentAssignmentStats
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("assignment stats: %w", err)
	}
	stats := make(map[string]models.StudentAssignmentStats, len(rows))
	for _, row := range rows {
		stats[row.StudentID] = row
	}
	return stats, nil
}

// MarkOverdue flips pending assignments past their due date to overdue and
// returns the affected rows for notification fan-out.
func (r *AssignmentRepository) MarkOverdue(ctx context.Context, now time.Time, limit int) ([]models.Assignment, error) {
	const query = `UPDATE assignments SET status = 'overdue', updated_at = $1
        WHERE id IN (
            SELECT id FROM assignments
            WHERE status = 'pending' AND due_date IS NOT NULL AND due_date < $1
            ORDER BY due_date ASC LIMIT $2
        )
        RETURNING id, title, description, teacher_id, student_id, lesson_id, status, due_date, completed_at, created_at, updated_at`
	var flipped []models.Assignment
	if err := r.db.SelectContext(ctx, &flipped, query, now, limit); err != nil {
		return nil, fmt.Errorf("mark overdue: %w", err)
	}
	return flipped, nil
}

// OverdueForTeacher lists overdue assignment lines for one teacher's weekly
// digest, oldest due date first.
func (r *AssignmentRepository) OverdueForTeacher(ctx context.Context, teacherID string) ([]models.OverdueAssignmentLine, error) {
	const query = `SELECT a.title AS assignment_title, s.full_name AS student_name, a.due_date
        FROM assignments a
        JOIN profiles s ON s.id = a.student_id
        WHERE a.teacher_id = $1 AND a.status = 'overdue'
        ORDER BY a.due_date ASC`
	var lines []models.OverdueAssignmentLine
	if err := r.db.SelectContext(ctx, &lines, query, teacherID); err != nil {
		return nil, fmt.Errorf("overdue for teacher: %w", err)
	}
	return lines, nil
}

// CompletedInRange counts assignments completed inside a window, scoped to
// one teacher when teacherID is set.
func (r *AssignmentRepository) CompletedInRange(ctx context.Context, teacherID string, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM assignments WHERE status = 'completed' AND completed_at >= $1 AND completed_at < $2`
	args := []interface{}{from, to}
	if teacherID != "" {
		query += " AND teacher_id = $3"
		args = append(args, teacherID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count completed assignments: %w", err)
	}
	return count, nil
}
