package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"naskah/config/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := database.NewHandle(db, "postgres", nil, nil)
	return NewUserRepository(h), mock
}

func TestUserRepository_FindByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "email", "name", "password_hash", "created_at"}).
		AddRow("user-1", "ada@example.com", "Ada", "$argon2id$...", created)
	mock.ExpectQuery("SELECT id, email, name, password_hash, created_at FROM users WHERE email = \\$1").
		WithArgs("ada@example.com").
		WillReturnRows(rows)

	u, err := repo.FindByEmail(context.Background(), "  Ada@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "user-1", u.ID)
	assert.Equal(t, created, u.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByEmail_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1").
		WithArgs("nobody@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByEmail_DBError(t *testing.T) {
	repo, mock := newMockRepo(t)
	boom := errors.New("db down")

	mock.ExpectQuery("SELECT (.+) FROM users").WillReturnError(boom)

	_, err := repo.FindByEmail(context.Background(), "ada@example.com")
	assert.ErrorIs(t, err, boom)
}

func TestUserRepository_Create(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO users \\(id, email, name, password_hash, created_at\\)").
		WithArgs(sqlmock.AnyArg(), "ada@example.com", "Ada", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	u, err := repo.Create(context.Background(), "ADA@example.com", "Ada", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ada@example.com", u.Email)

	ok, err := VerifyPassword("hunter2", u.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_RequiresFields(t *testing.T) {
	repo, _ := newMockRepo(t)
	_, err := repo.Create(context.Background(), "", "Ada", "pw")
	assert.Error(t, err)
}
