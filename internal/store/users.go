package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clearcrew/fieldops/internal/contract"
	apperr "github.com/clearcrew/fieldops/internal/errors"
)

const userColumns = `id, email, name, role, status, created_at, updated_at`

// CreateUser inserts a user record
func (s *Store) CreateUser(ctx context.Context, u *contract.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.Name, string(u.Role), u.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id string) (*contract.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	u, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user", id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// FindFirstActiveUser returns the oldest active user, used as the system
// actor for sweep-generated records. Returns nil when no active user exists,
// which aborts the entire sweep cycle.
func (s *Store) FindFirstActiveUser(ctx context.Context) (*contract.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE status = 'active'
		ORDER BY created_at ASC
		LIMIT 1`

	u, err := scanUser(s.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active user: %w", err)
	}
	return u, nil
}

// scanUser reads one user row using the userColumns ordering
func scanUser(row rowScanner) (*contract.User, error) {
	var u contract.User
	var role, createdAt, updatedAt string

	err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &u.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	u.Role = contract.UserRole(role)
	u.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for user %s: %w", u.ID, err)
	}
	u.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at for user %s: %w", u.ID, err)
	}
	return &u, nil
}
