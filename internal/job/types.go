// Package job defines the work-order entity produced by recurring generation
// and manual creation, together with its lifecycle rules and numbering format.
package job

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current status of a work order
type JobStatus string

const (
	// StatusScheduled indicates the job is on the calendar, not yet started
	StatusScheduled JobStatus = "scheduled"
	// StatusInProgress indicates work has started
	StatusInProgress JobStatus = "in_progress"
	// StatusCompleted indicates the job finished
	StatusCompleted JobStatus = "completed"
	// StatusCanceled indicates the job was called off; canceled jobs do not
	// block regeneration of their scheduled date
	StatusCanceled JobStatus = "canceled"
)

// JobType distinguishes contract-driven service visits from ad hoc work
type JobType string

const (
	TypeScheduledService JobType = "scheduled_service"
	TypeSpecialJob       JobType = "special_job"
)

// JobCategory distinguishes recurring calendar jobs from one-time ones
type JobCategory string

const (
	CategoryRecurring JobCategory = "recurring"
	CategoryOneTime   JobCategory = "one_time"
)

// Job represents a single work order
type Job struct {
	// ID is the unique identifier for the job
	ID string `json:"id"`
	// JobNumber is the human-facing work-order number (WO-{year}-{seq})
	JobNumber  string      `json:"job_number"`
	ContractID string      `json:"contract_id,omitempty"`
	FacilityID string      `json:"facility_id,omitempty"`
	AccountID  string      `json:"account_id,omitempty"`
	JobType    JobType     `json:"job_type"`
	Category   JobCategory `json:"job_category"`
	Status     JobStatus   `json:"status"`
	// ScheduledDate is a UTC midnight-anchored calendar date, the unit of
	// deduplication for recurring generation
	ScheduledDate      time.Time `json:"scheduled_date"`
	ScheduledStartTime string    `json:"scheduled_start_time,omitempty"`
	ScheduledEndTime   string    `json:"scheduled_end_time,omitempty"`
	// AssignedTeamID and AssignedToUserID are mutually exclusive
	AssignedTeamID   string `json:"assigned_team_id,omitempty"`
	AssignedToUserID string `json:"assigned_to_user_id,omitempty"`
	// Notes carries a human-readable rendering of the applicable service
	// window when one exists
	Notes           string    `json:"notes,omitempty"`
	CompletionNotes string    `json:"completion_notes,omitempty"`
	CreatedByUserID string    `json:"created_by_user_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewScheduledService creates a recurring scheduled-service job for a
// contract on the given calendar date
func NewScheduledService(jobNumber, contractID, facilityID, accountID string, scheduledDate time.Time, createdBy string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:              uuid.New().String(),
		JobNumber:       jobNumber,
		ContractID:      contractID,
		FacilityID:      facilityID,
		AccountID:       accountID,
		JobType:         TypeScheduledService,
		Category:        CategoryRecurring,
		Status:          StatusScheduled,
		ScheduledDate:   scheduledDate,
		CreatedByUserID: createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CanTransitionTo reports whether the lifecycle allows moving to the target
// status: scheduled -> in_progress -> completed, with cancellation possible
// from scheduled or in_progress
func (j *Job) CanTransitionTo(target JobStatus) bool {
	switch target {
	case StatusInProgress:
		return j.Status == StatusScheduled
	case StatusCompleted:
		return j.Status == StatusInProgress
	case StatusCanceled:
		return j.Status == StatusScheduled || j.Status == StatusInProgress
	default:
		return false
	}
}

// UpdateStatus updates the job's status and UpdatedAt timestamp
func (j *Job) UpdateStatus(status JobStatus) {
	j.Status = status
	j.UpdatedAt = time.Now().UTC()
}
