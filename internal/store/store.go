// Package store persists contracts, facilities, users and jobs in SQLite.
// It is the system's transactional record store: plain database/sql queries,
// RFC3339 timestamps, and a partial unique index that backstops concurrent
// recurring-job generation.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store handles persistence for the scheduling engine
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids table-lock
	// errors from the driver under concurrent access
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing database handle (used by tests)
func NewWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on nil and rolling back on
// error. Multi-step workflows that must be all-or-nothing go through here;
// the date-by-date generation loop deliberately does not, so a mid-batch
// failure preserves the jobs already created.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// migrate applies the schema. Statements are idempotent.
func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'staff',
			status TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS facilities (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			address TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contracts (
			id TEXT PRIMARY KEY,
			contract_number TEXT NOT NULL DEFAULT '',
			account_id TEXT NOT NULL DEFAULT '',
			facility_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			service_frequency TEXT NOT NULL DEFAULT '',
			service_schedule TEXT,
			start_date TEXT NOT NULL,
			end_date TEXT,
			assigned_team_id TEXT NOT NULL DEFAULT '',
			assigned_to_user_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			job_number TEXT NOT NULL UNIQUE,
			contract_id TEXT NOT NULL DEFAULT '',
			facility_id TEXT NOT NULL DEFAULT '',
			account_id TEXT NOT NULL DEFAULT '',
			job_type TEXT NOT NULL,
			job_category TEXT NOT NULL,
			status TEXT NOT NULL,
			scheduled_date TEXT NOT NULL,
			scheduled_start_time TEXT NOT NULL DEFAULT '',
			scheduled_end_time TEXT NOT NULL DEFAULT '',
			assigned_team_id TEXT NOT NULL DEFAULT '',
			assigned_to_user_id TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			completion_notes TEXT NOT NULL DEFAULT '',
			created_by_user_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		// Concurrency backstop: concurrent creators racing for the same
		// contract/date see exactly one insert succeed. Canceled jobs do
		// not count, so a canceled date can be regenerated.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_contract_date_active
			ON jobs(contract_id, scheduled_date)
			WHERE status != 'canceled' AND contract_id != ''`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_contract_status
			ON jobs(contract_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_contracts_status
			ON contracts(status)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
