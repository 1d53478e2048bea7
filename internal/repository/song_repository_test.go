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

func newSongMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSongRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newSongMock(t)
	defer cleanup()
	repo := NewSongRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "author", "level", "key", "created_at", "updated_at"}).
		AddRow("sg1", "Blackbird", "The Beatles", "intermediate", "G", time.Now(), time.Now())

	mock.ExpectQuery("SELECT id, title, author, level, key").
		WithArgs("intermediate", "%beatles%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM songs WHERE 1=1 AND level = $1 AND (LOWER(title) LIKE $2 OR LOWER(author) LIKE $2)")).
		WithArgs("intermediate", "%beatles%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	songs, total, err := repo.List(context.Background(), models.SongFilter{Level: "intermediate", Search: "Beatles"})
	require.NoError(t, err)
	assert.Len(t, songs, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSongRepositoryUpsertProgress(t *testing.T) {
	db, mock, cleanup := newSongMock(t)
	defer cleanup()
	repo := NewSongRepository(db)

	mock.ExpectExec("INSERT INTO song_progress").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	progress := &models.SongProgress{SongID: "sg1", StudentID: "s1", Status: models.ProgressLearning}
	err := repo.UpsertProgress(context.Background(), progress)
	require.NoError(t, err)
	assert.NotEmpty(t, progress.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSongRepositoryDeleteProgressScopedToStudent(t *testing.T) {
	db, mock, cleanup := newSongMock(t)
	defer cleanup()
	repo := NewSongRepository(db)

	mock.ExpectExec("DELETE FROM song_progress").
		WithArgs("p1", "other-student").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.DeleteProgress(context.Background(), "p1", "other-student")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSongRepositoryMasteredInRange(t *testing.T) {
	db, mock, cleanup := newSongMock(t)
	defer cleanup()
	repo := NewSongRepository(db)

	from := time.Now().AddDate(0, 0, -7)
	to := time.Now()
	rows := sqlmock.NewRows([]string{"student_name", "song_title", "mastered_at"}).
		AddRow("Student", "Blackbird", to.AddDate(0, 0, -1))

	mock.ExpectQuery("SELECT p.full_name AS student_name").
		WithArgs(from, to, "t1").
		WillReturnRows(rows)

	mastered, err := repo.MasteredInRange(context.Background(), "t1", from, to)
	require.NoError(t, err)
	require.Len(t, mastered, 1)
	assert.Equal(t, "Blackbird", mastered[0].SongTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}
