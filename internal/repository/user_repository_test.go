package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/redtape-api/internal/models"
)

var userRowColumns = []string{"id", "email_address", "password_digest", "admin", "created_at", "updated_at"}

func TestUserRepositoryFindByEmailNormalises(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email_address = $1 LIMIT 1")).
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow("u1", "admin@example.com", "digest", true, now, now))

	user, err := repo.FindByEmail(context.Background(), "  Admin@Example.com ")
	require.NoError(t, err)
	assert.True(t, user.Admin)
	assert.Equal(t, "digest", user.PasswordDigest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (email_address) DO UPDATE")).
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow("existing", "admin@example.com", "new-digest", true, now, now))

	user := &models.User{Email: "Admin@example.com", PasswordDigest: "new-digest", Admin: true}
	require.NoError(t, repo.Upsert(context.Background(), user))
	assert.Equal(t, "existing", user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListAdmins(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE admin = TRUE ORDER BY created_at ASC")).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u1", "a@example.com", "d", true, now, now).
			AddRow("u2", "b@example.com", "d", true, now, now))

	admins, err := repo.ListAdmins(context.Background())
	require.NoError(t, err)
	assert.Len(t, admins, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryLifecycle(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE id = $1 AND expires_at > $2")).
		WithArgs(sqlmock.AnyArg(), now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "ip_address", "user_agent", "created_at", "expires_at"}).
			AddRow("s1", "u1", "127.0.0.1", "test", now, now.Add(time.Hour)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE id = $1")).WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sessions WHERE expires_at <= $1")).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 3))

	session := &models.Session{UserID: "u1", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.Create(context.Background(), session))
	assert.NotEmpty(t, session.ID)

	found, err := repo.FindActive(context.Background(), session.ID, now)
	require.NoError(t, err)
	assert.Equal(t, "u1", found.UserID)

	require.NoError(t, repo.Delete(context.Background(), "s1"))

	purged, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 3, purged)
	assert.NoError(t, mock.ExpectationsWereMet())
}
