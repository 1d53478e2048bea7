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

func newLessonMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func lessonDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "teacher_id", "student_id", "title", "notes", "status", "scheduled_at", "duration_minutes", "created_at", "updated_at", "teacher_name", "student_name"}).
		AddRow("l1", "t1", "s1", "Barre chords", "", "COMPLETED", time.Now(), 60, time.Now(), time.Now(), "Teacher", "Student")
}

func TestLessonRepositoryListTeacherScope(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	vis := VisibilityFor(models.RoleFlags{IsTeacher: true}, "t1")

	mock.ExpectQuery("SELECT l.id, l.teacher_id, l.student_id").
		WithArgs("t1").
		WillReturnRows(lessonDetailRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lessons l WHERE 1=1 AND l.teacher_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	lessons, total, err := repo.List(context.Background(), vis, models.LessonFilter{})
	require.NoError(t, err)
	assert.Len(t, lessons, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryListNoRoleUsesSentinel(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	vis := VisibilityFor(models.RoleFlags{}, "u1")

	mock.ExpectQuery("SELECT l.id, l.teacher_id, l.student_id").
		WithArgs(NoAccessID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "teacher_id", "student_id", "title", "notes", "status", "scheduled_at", "duration_minutes", "created_at", "updated_at", "teacher_name", "student_name"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lessons l WHERE 1=1 AND l.id = $1")).
		WithArgs(NoAccessID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	lessons, total, err := repo.List(context.Background(), vis, models.LessonFilter{})
	require.NoError(t, err)
	assert.Empty(t, lessons)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectExec("INSERT INTO lessons").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	lesson := &models.Lesson{TeacherID: "t1", StudentID: "s1", Title: "Scales", Status: models.LessonStatusScheduled, ScheduledAt: time.Now(), DurationMinutes: 45}
	err := repo.Create(context.Background(), lesson)
	require.NoError(t, err)
	assert.NotEmpty(t, lesson.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryStatsForTeacher(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	since := time.Now().AddDate(0, 0, -30)
	last := time.Now().AddDate(0, 0, -7)
	rows := sqlmock.NewRows([]string{"student_id", "student_name", "student_email", "total_completed", "last_30_days", "last_lesson_at"}).
		AddRow("s1", "Student", "s@example.com", 12, 3, last).
		AddRow("s2", "Quiet Student", "q@example.com", 0, 0, nil)

	mock.ExpectQuery("SELECT p.id AS student_id").
		WithArgs(since, "t1").
		WillReturnRows(rows)

	stats, err := repo.StatsForTeacher(context.Background(), VisibilityFor(models.RoleFlags{IsTeacher: true}, "t1"), since)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 12, stats[0].TotalCompleted)
	assert.Nil(t, stats[1].LastLessonAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryCountByStatusInRange(t *testing.T) {
	db, mock, cleanup := newLessonMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	from := time.Now().AddDate(0, 0, -7)
	to := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lessons WHERE status = $1 AND scheduled_at >= $2 AND scheduled_at < $3 AND teacher_id = $4")).
		WithArgs(models.LessonStatusCompleted, from, to, "t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	count, err := repo.CountByStatusInRange(context.Background(), "t1", models.LessonStatusCompleted, from, to)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
