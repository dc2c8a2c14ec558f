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

// CreateFacility inserts a facility record
func (s *Store) CreateFacility(ctx context.Context, f *contract.Facility) error {
	query := `INSERT INTO facilities (id, account_id, name, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	var address interface{}
	if len(f.Address) > 0 {
		address = string(f.Address)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query, f.ID, f.AccountID, f.Name, address, now, now)
	if err != nil {
		return fmt.Errorf("failed to create facility: %w", err)
	}
	return nil
}

// GetFacility retrieves a facility by ID
func (s *Store) GetFacility(ctx context.Context, id string) (*contract.Facility, error) {
	query := `SELECT id, account_id, name, address, created_at, updated_at
		FROM facilities WHERE id = ?`

	var f contract.Facility
	var address sql.NullString
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.AccountID, &f.Name, &address, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("facility", id)
		}
		return nil, fmt.Errorf("failed to get facility: %w", err)
	}

	if address.Valid {
		f.Address = []byte(address.String)
	}
	f.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for facility %s: %w", f.ID, err)
	}
	f.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at for facility %s: %w", f.ID, err)
	}
	return &f, nil
}
