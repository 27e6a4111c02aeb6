package sql

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/qwc/lisenssit/internal/database"
)

const userColumns = `id, username, email, password, auth_source, role, is_robot, created_at, updated_at`

// UserStore persists both dashboard accounts and the robot accounts CI
// pipelines upload scans with. The two share a table, separated by the
// is_robot flag.
type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, user *database.User) error {
	const q = `INSERT INTO users (username, email, password, auth_source, role, is_robot) VALUES (?, ?, ?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, s.db.Rebind(q),
		user.Username, user.Email, user.Password, user.AuthSource, user.Role, user.IsRobot)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted user id: %w", err)
	}
	user.ID = id
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*database.User, error) {
	var user database.User
	q := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	if err := s.db.GetContext(ctx, &user, s.db.Rebind(q), id); err != nil {
		return nil, fmt.Errorf("selecting user %d: %w", id, err)
	}
	return &user, nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*database.User, error) {
	var user database.User
	q := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	if err := s.db.GetContext(ctx, &user, s.db.Rebind(q), username); err != nil {
		return nil, fmt.Errorf("selecting user %s: %w", username, err)
	}
	return &user, nil
}

// List returns the human accounts ordered by username.
func (s *UserStore) List(ctx context.Context) ([]database.User, error) {
	return s.list(ctx, false)
}

// ListRobots returns the robot accounts ordered by username.
func (s *UserStore) ListRobots(ctx context.Context) ([]database.User, error) {
	return s.list(ctx, true)
}

func (s *UserStore) list(ctx context.Context, robots bool) ([]database.User, error) {
	var users []database.User
	q := `SELECT ` + userColumns + ` FROM users WHERE is_robot = ? ORDER BY username`
	if err := s.db.SelectContext(ctx, &users, s.db.Rebind(q), robots); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (s *UserStore) Update(ctx context.Context, user *database.User) error {
	const q = `UPDATE users
		SET username = ?, email = ?, password = ?, auth_source = ?, role = ?, is_robot = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`
	_, err := s.db.ExecContext(ctx, s.db.Rebind(q),
		user.Username, user.Email, user.Password, user.AuthSource, user.Role, user.IsRobot, user.ID)
	if err != nil {
		return fmt.Errorf("updating user %d: %w", user.ID, err)
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM users WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), id); err != nil {
		return fmt.Errorf("deleting user %d: %w", id, err)
	}
	return nil
}

// Count reports the total number of accounts, robots included. Used at
// startup to decide whether the initial admin needs to be seeded.
func (s *UserStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}
