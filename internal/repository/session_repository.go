package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/redtape-api/internal/models"
)

// SessionRepository stores server-side login sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sessions (id, user_id, ip_address, user_agent, created_at, expires_at)
VALUES (:id, :user_id, :ip_address, :user_agent, :created_at, :expires_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindActive returns a session that has not expired at now.
func (r *SessionRepository) FindActive(ctx context.Context, id string, now time.Time) (*models.Session, error) {
	const query = `SELECT id, user_id, ip_address, user_agent, created_at, expires_at FROM sessions WHERE id = $1 AND expires_at > $2`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id, now); err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

// Delete removes one session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteByUserTx removes every session of a user within tx.
func (r *SessionRepository) DeleteByUserTx(ctx context.Context, tx *sqlx.Tx, userID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired purges sessions that expired before now and reports how many were removed.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check expired session rows: %w", err)
	}
	return affected, nil
}
