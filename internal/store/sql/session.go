package sql

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/qwc/lisenssit/internal/database"
)

// SessionStore persists dashboard login sessions. Rows are written once
// and deleted on logout or expiry, there is no update path.
type SessionStore struct {
	db *sqlx.DB
}

func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Create(ctx context.Context, session *database.Session) error {
	const q = `INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), session.ID, session.UserID, session.ExpiresAt); err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetByID(ctx context.Context, id string) (*database.Session, error) {
	const q = `SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ?`
	var session database.Session
	if err := s.db.GetContext(ctx, &session, s.db.Rebind(q), id); err != nil {
		return nil, fmt.Errorf("selecting session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM sessions WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired reaps sessions past their expiry in bulk. The request
// path also deletes expired sessions as it sees them, this catches the
// ones nobody presented again.
func (s *SessionStore) DeleteExpired(ctx context.Context) error {
	const q = `DELETE FROM sessions WHERE expires_at < CURRENT_TIMESTAMP`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("reaping expired sessions: %w", err)
	}
	return nil
}
