package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clearcrew/fieldops/internal/contract"
	apperr "github.com/clearcrew/fieldops/internal/errors"
	"github.com/clearcrew/fieldops/internal/schedule"
)

const contractColumns = `id, contract_number, account_id, facility_id, status,
	service_frequency, service_schedule, start_date, end_date,
	assigned_team_id, assigned_to_user_id, created_at, updated_at`

// CreateContract inserts a contract record
func (s *Store) CreateContract(ctx context.Context, c *contract.Contract) error {
	query := `INSERT INTO contracts (` + contractColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var serviceSchedule interface{}
	if len(c.ServiceSchedule) > 0 {
		serviceSchedule = string(c.ServiceSchedule)
	}
	var endDate interface{}
	if c.EndDate != nil {
		endDate = schedule.FormatDate(*c.EndDate)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		c.ID,
		c.ContractNumber,
		c.AccountID,
		c.FacilityID,
		string(c.Status),
		c.ServiceFrequency,
		serviceSchedule,
		schedule.FormatDate(c.StartDate),
		endDate,
		c.AssignedTeamID,
		c.AssignedToUserID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create contract: %w", err)
	}
	return nil
}

// GetContract retrieves a contract by ID
func (s *Store) GetContract(ctx context.Context, id string) (*contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = ?`

	c, err := scanContract(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("contract", id)
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return c, nil
}

// ListActiveContractsWithAssignee returns every active contract that carries
// a team or individual assignee, the population the auto-regeneration sweep
// walks each cycle
func (s *Store) ListActiveContractsWithAssignee(ctx context.Context) ([]*contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts
		WHERE status = ?
		  AND (assigned_team_id != '' OR assigned_to_user_id != '')
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, string(contract.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to list active contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*contract.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

// UpdateContractAssignment sets a contract's workforce assignment.
// Exclusivity is validated by the caller.
func (s *Store) UpdateContractAssignment(ctx context.Context, contractID, teamID, userID string) error {
	query := `UPDATE contracts
		SET assigned_team_id = ?, assigned_to_user_id = ?, updated_at = ?
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		teamID, userID, time.Now().UTC().Format(time.RFC3339), contractID)
	if err != nil {
		return fmt.Errorf("failed to update contract assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("contract", contractID)
	}
	return nil
}

// scanContract reads one contract row using the contractColumns ordering
func scanContract(row rowScanner) (*contract.Contract, error) {
	var c contract.Contract
	var status, startDate, createdAt, updatedAt string
	var serviceSchedule, endDate sql.NullString

	err := row.Scan(
		&c.ID,
		&c.ContractNumber,
		&c.AccountID,
		&c.FacilityID,
		&status,
		&c.ServiceFrequency,
		&serviceSchedule,
		&startDate,
		&endDate,
		&c.AssignedTeamID,
		&c.AssignedToUserID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = contract.ContractStatus(status)
	if serviceSchedule.Valid {
		c.ServiceSchedule = []byte(serviceSchedule.String)
	}

	c.StartDate, err = schedule.ParseDate(startDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse start_date for contract %s: %w", c.ID, err)
	}
	if endDate.Valid {
		end, err := schedule.ParseDate(endDate.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse end_date for contract %s: %w", c.ID, err)
		}
		c.EndDate = &end
	}
	c.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for contract %s: %w", c.ID, err)
	}
	c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at for contract %s: %w", c.ID, err)
	}
	return &c, nil
}
