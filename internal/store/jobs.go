package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	apperr "github.com/clearcrew/fieldops/internal/errors"
	"github.com/clearcrew/fieldops/internal/job"
	"github.com/clearcrew/fieldops/internal/schedule"
)

// CreateOutcome is the typed result of attempting to create a job. A
// duplicate scheduled date is an expected concurrency outcome, not an error:
// the caller skips the date and moves on.
type CreateOutcome int

const (
	// OutcomeCreated means the job row was inserted
	OutcomeCreated CreateOutcome = iota
	// OutcomeAlreadyScheduled means a non-canceled job for the same contract
	// and date already exists (lost the race on the partial unique index)
	OutcomeAlreadyScheduled
)

const jobColumns = `id, job_number, contract_id, facility_id, account_id,
	job_type, job_category, status, scheduled_date,
	scheduled_start_time, scheduled_end_time,
	assigned_team_id, assigned_to_user_id,
	notes, completion_notes, created_by_user_id, created_at, updated_at`

// CreateJob inserts a job. A unique-constraint violation on the
// (contract, scheduled date) partial index maps to OutcomeAlreadyScheduled;
// every other failure, including a job-number collision, is an error.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) (CreateOutcome, error) {
	query := `INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		j.ID,
		j.JobNumber,
		j.ContractID,
		j.FacilityID,
		j.AccountID,
		string(j.JobType),
		string(j.Category),
		string(j.Status),
		schedule.FormatDate(j.ScheduledDate),
		j.ScheduledStartTime,
		j.ScheduledEndTime,
		j.AssignedTeamID,
		j.AssignedToUserID,
		j.Notes,
		j.CompletionNotes,
		j.CreatedByUserID,
		j.CreatedAt.UTC().Format(time.RFC3339),
		j.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isScheduledDateConflict(err) {
			return OutcomeAlreadyScheduled, nil
		}
		return 0, fmt.Errorf("failed to create job: %w", err)
	}
	return OutcomeCreated, nil
}

// isScheduledDateConflict reports whether err is a unique-constraint
// violation on the partial (contract_id, scheduled_date) index
func isScheduledDateConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique {
		return false
	}
	return strings.Contains(sqliteErr.Error(), "scheduled_date")
}

// GetJob retrieves a job by ID
func (s *Store) GetJob(ctx context.Context, id string) (*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`
	j, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("job", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// ListJobsForContract returns a contract's jobs ordered by scheduled date
func (s *Store) ListJobsForContract(ctx context.Context, contractID string) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE contract_id = ?
		ORDER BY scheduled_date ASC, job_number ASC`

	rows, err := s.db.QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// CoveredDatesInRange returns the set of ISO dates in [dateFrom, dateTo] that
// already have a non-canceled job for the contract. Canceled jobs are
// excluded so their dates can be regenerated.
func (s *Store) CoveredDatesInRange(ctx context.Context, contractID string, dateFrom, dateTo time.Time) (map[string]bool, error) {
	query := `SELECT scheduled_date FROM jobs
		WHERE contract_id = ?
		  AND status != ?
		  AND scheduled_date >= ?
		  AND scheduled_date <= ?`

	rows, err := s.db.QueryContext(ctx, query,
		contractID,
		string(job.StatusCanceled),
		schedule.FormatDate(dateFrom),
		schedule.FormatDate(dateTo),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list covered dates: %w", err)
	}
	defer rows.Close()

	covered := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan covered date: %w", err)
		}
		covered[d] = true
	}
	return covered, rows.Err()
}

// LatestRecurringJobDate returns the most recent scheduled date among a
// contract's non-canceled recurring jobs, or nil when none exist
func (s *Store) LatestRecurringJobDate(ctx context.Context, contractID string) (*time.Time, error) {
	query := `SELECT scheduled_date FROM jobs
		WHERE contract_id = ?
		  AND job_category = ?
		  AND status != ?
		ORDER BY scheduled_date DESC
		LIMIT 1`

	var d string
	err := s.db.QueryRowContext(ctx, query,
		contractID, string(job.CategoryRecurring), string(job.StatusCanceled),
	).Scan(&d)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest recurring job date: %w", err)
	}

	parsed, err := schedule.ParseDate(d)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scheduled_date for contract %s: %w", contractID, err)
	}
	return &parsed, nil
}

// CancelRecurringScheduledJobsFrom bulk-cancels a contract's recurring jobs
// that are still in scheduled status on or after dateFrom, stamping
// completion_notes with the supplied reason. Returns the number canceled.
// The single UPDATE keeps the batch atomic.
func (s *Store) CancelRecurringScheduledJobsFrom(ctx context.Context, contractID string, dateFrom time.Time, reason string) (int64, error) {
	query := `UPDATE jobs
		SET status = ?, completion_notes = ?, updated_at = ?
		WHERE contract_id = ?
		  AND job_category = ?
		  AND status = ?
		  AND scheduled_date >= ?`

	result, err := s.db.ExecContext(ctx, query,
		string(job.StatusCanceled),
		reason,
		time.Now().UTC().Format(time.RFC3339),
		contractID,
		string(job.CategoryRecurring),
		string(job.StatusScheduled),
		schedule.FormatDate(dateFrom),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel recurring jobs: %w", err)
	}
	canceled, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return canceled, nil
}

// UpdateJobStatus transitions a job's status, optionally recording
// completion notes
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status job.JobStatus, completionNotes string) error {
	query := `UPDATE jobs
		SET status = ?,
		    completion_notes = CASE WHEN ? != '' THEN ? ELSE completion_notes END,
		    updated_at = ?
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		string(status), completionNotes, completionNotes,
		time.Now().UTC().Format(time.RFC3339), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("job", jobID)
	}
	return nil
}

// UpdateJobAssignment sets a job's workforce assignment. Team and user are
// mutually exclusive; callers validate before writing.
func (s *Store) UpdateJobAssignment(ctx context.Context, jobID, teamID, userID string) error {
	query := `UPDATE jobs
		SET assigned_team_id = ?, assigned_to_user_id = ?, updated_at = ?
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		teamID, userID, time.Now().UTC().Format(time.RFC3339), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("job", jobID)
	}
	return nil
}

// LatestJobNumberForYear returns the lexicographically-last job number with
// the year's WO- prefix, or "" when the year has none yet
func (s *Store) LatestJobNumberForYear(ctx context.Context, year int) (string, error) {
	query := `SELECT job_number FROM jobs
		WHERE job_number LIKE ?
		ORDER BY job_number DESC
		LIMIT 1`

	var number string
	err := s.db.QueryRowContext(ctx, query, job.NumberPrefix(year)+"%").Scan(&number)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest job number: %w", err)
	}
	return number, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan path
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanJob reads one job row using the jobColumns ordering
func scanJob(row rowScanner) (*job.Job, error) {
	var j job.Job
	var jobType, category, status string
	var scheduledDate, createdAt, updatedAt string

	err := row.Scan(
		&j.ID,
		&j.JobNumber,
		&j.ContractID,
		&j.FacilityID,
		&j.AccountID,
		&jobType,
		&category,
		&status,
		&scheduledDate,
		&j.ScheduledStartTime,
		&j.ScheduledEndTime,
		&j.AssignedTeamID,
		&j.AssignedToUserID,
		&j.Notes,
		&j.CompletionNotes,
		&j.CreatedByUserID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.JobType = job.JobType(jobType)
	j.Category = job.JobCategory(category)
	j.Status = job.JobStatus(status)

	j.ScheduledDate, err = schedule.ParseDate(scheduledDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scheduled_date for job %s: %w", j.ID, err)
	}
	j.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for job %s: %w", j.ID, err)
	}
	j.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at for job %s: %w", j.ID, err)
	}
	return &j, nil
}

// collectJobs drains a multi-row job query
func collectJobs(rows *sql.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
