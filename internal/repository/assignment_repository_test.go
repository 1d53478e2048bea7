package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strumline/guitar-crm-api/internal/models"
)

func newAssignmentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func assignmentDetailRows() *sqlmock.Rows {
	due := time.Now().AddDate(0, 0, 7)
	return sqlmock.NewRows([]string{"id", "title", "description", "teacher_id", "student_id", "lesson_id", "status", "due_date", "completed_at", "created_at", "updated_at", "teacher_name", "student_name"}).
		AddRow("a1", "Practice arpeggios", "", "t1", "s1", nil, "pending", due, nil, time.Now(), time.Now(), "Teacher", "Student")
}

func TestAssignmentRepositoryListStudentScope(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	vis := VisibilityFor(models.RoleFlags{IsStudent: true}, "s1")

	mock.ExpectQuery("SELECT a.id, a.title, a.description").
		WithArgs("s1").
		WillReturnRows(assignmentDetailRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM assignments a WHERE 1=1 AND a.student_id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	assignments, total, err := repo.List(context.Background(), vis, models.AssignmentFilter{})
	require.NoError(t, err)
	assert.Len(t, assignments, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryListStatusFilterStacksOnVisibility(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	vis := VisibilityFor(models.RoleFlags{IsTeacher: true}, "t1")

	mock.ExpectQuery("SELECT a.id, a.title, a.description").
		WithArgs("t1", "pending").
		WillReturnRows(assignmentDetailRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM assignments a WHERE 1=1 AND a.teacher_id = $1 AND a.status = $2")).
		WithArgs("t1", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, _, err := repo.List(context.Background(), vis, models.AssignmentFilter{Status: "pending"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO assignments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignment := &models.Assignment{Title: "Learn intro riff", TeacherID: "t1", StudentID: "s1", Status: models.AssignmentPending}
	err := repo.Create(context.Background(), assignment)
	require.NoError(t, err)
	assert.NotEmpty(t, assignment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryStatsByStudent(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "total", "completed", "overdue"}).
		AddRow("s1", 4, 3, 1).
		AddRow("s2", 2, 0, 2)

	mock.ExpectQuery("SELECT a.student_id").
		WithArgs("t1").
		WillReturnRows(rows)

	stats, err := repo.StatsByStudent(context.Background(), VisibilityFor(models.RoleFlags{IsTeacher: true}, "t1"))
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 3, stats["s1"].Completed)
	assert.Equal(t, 2, stats["s2"].Overdue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryMarkOverdue(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	now := time.Now().UTC()
	due := now.AddDate(0, 0, -2)
	rows := sqlmock.NewRows([]string{"id", "title", "description", "teacher_id", "student_id", "lesson_id", "status", "due_date", "completed_at", "created_at", "updated_at"}).
		AddRow("a1", "Overdue piece", "", "t1", "s1", nil, "overdue", due, nil, now, now)

	mock.ExpectQuery("UPDATE assignments SET status = 'overdue'").
		WithArgs(now, 100).
		WillReturnRows(rows)

	flipped, err := repo.MarkOverdue(context.Background(), now, 100)
	require.NoError(t, err)
	require.Len(t, flipped, 1)
	assert.Equal(t, models.AssignmentOverdue, flipped[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryOverdueForTeacher(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	due := time.Now().AddDate(0, 0, -5)
	rows := sqlmock.NewRows([]string{"assignment_title", "student_name", "due_date"}).
		AddRow("Chord changes", "Student", due)

	mock.ExpectQuery("SELECT a.title AS assignment_title").
		WithArgs("t1").
		WillReturnRows(rows)

	lines, err := repo.OverdueForTeacher(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Chord changes", lines[0].AssignmentTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}
