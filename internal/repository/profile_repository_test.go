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

func newProfileMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func profileRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "is_admin", "is_teacher", "is_student", "active", "last_login", "created_at", "updated_at"}).
		AddRow("u1", "ana@example.com", "hash", "Ana", false, true, false, true, time.Now(), time.Now(), time.Now())
}

func TestProfileRepositoryListByRole(t *testing.T) {
	db, mock, cleanup := newProfileMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, is_admin, is_teacher, is_student, active, last_login, created_at, updated_at FROM profiles WHERE 1=1 AND is_teacher = TRUE ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(profileRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM profiles WHERE 1=1 AND is_teacher = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	profiles, total, err := repo.List(context.Background(), models.ProfileFilter{Role: "teacher"})
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newProfileMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, full_name, is_admin, is_teacher, is_student, active, last_login, created_at, updated_at FROM profiles WHERE LOWER(email) = LOWER($1)")).
		WithArgs("Ana@Example.com").
		WillReturnRows(profileRows())

	profile, err := repo.FindByEmail(context.Background(), "Ana@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)
	assert.True(t, profile.IsTeacher)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newProfileMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec("INSERT INTO profiles").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	profile := &models.Profile{Email: "new@example.com", PasswordHash: "hash", FullName: "New", IsStudent: true, Active: true}
	err := repo.Create(context.Background(), profile)
	require.NoError(t, err)
	assert.NotEmpty(t, profile.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepositoryExistsByEmailNoRows(t *testing.T) {
	db, mock, cleanup := newProfileMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectQuery("SELECT 1 FROM profiles").
		WithArgs("missing@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsByEmail(context.Background(), "missing@example.com", "")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepositoryRevokeUserRefreshTokens(t *testing.T) {
	db, mock, cleanup := newProfileMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectExec("UPDATE refresh_tokens SET revoked = TRUE").
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.RevokeUserRefreshTokens(context.Background(), "u1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
