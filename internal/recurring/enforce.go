package recurring

import (
	"context"
	"time"

	"github.com/clearcrew/fieldops/internal/contract"
	apperr "github.com/clearcrew/fieldops/internal/errors"
	"github.com/clearcrew/fieldops/internal/job"
	"github.com/clearcrew/fieldops/internal/schedule"
)

// Override is a manager's request to bypass service-window enforcement.
// It is only honored when the role allows overriding AND a justification
// is supplied.
type Override struct {
	Role   contract.UserRole `json:"role"`
	Reason string            `json:"reason"`
}

// permits reports whether this override satisfies both conditions
func (o *Override) permits() bool {
	return o != nil && o.Role.CanOverrideServiceWindow() && o.Reason != ""
}

// ValidateServiceWindowForContract evaluates the instant now against the
// contract's service window in the facility's local timezone. Unlike job
// generation, enforcement treats a missing facility timezone as a hard error:
// a window cannot be meaningfully checked in an unknown zone.
func (s *Service) ValidateServiceWindowForContract(ctx context.Context, contractID string, now time.Time) (schedule.WindowCheck, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return schedule.WindowCheck{}, err
	}

	ns := schedule.Normalize(c.ServiceSchedule, c.ServiceFrequency)
	if ns == nil {
		return schedule.WindowCheck{}, apperr.BadRequest("contract %s has no service schedule configured", contractID)
	}

	timezone, err := s.facilityTimezone(ctx, c.FacilityID)
	if err != nil {
		return schedule.WindowCheck{}, err
	}
	if timezone == "" {
		return schedule.WindowCheck{}, apperr.BadRequest("facility timezone is not configured for contract %s", contractID)
	}

	return schedule.ValidateServiceWindow(ns, timezone, now)
}

// StartJob transitions a job to in_progress. For contract-backed jobs the
// current instant must fall inside the contract's service window, unless a
// valid manager override is supplied. The rejection carries a structured
// payload so a client can show local time, the allowed window, and whether
// an override is available to this caller.
func (s *Service) StartJob(ctx context.Context, jobID string, override *Override, now time.Time) (*job.Job, error) {
	j, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !j.CanTransitionTo(job.StatusInProgress) {
		return nil, apperr.BadRequest("job %s cannot be started from status %s", jobID, j.Status)
	}

	if j.ContractID != "" {
		check, err := s.ValidateServiceWindowForContract(ctx, j.ContractID, now)
		if err != nil {
			return nil, err
		}
		if !check.Allowed {
			if !override.permits() {
				return nil, outsideWindowError(j.ContractID, check, override)
			}
			s.log.InfoContext(ctx, "Service window overridden",
				"job_id", jobID,
				"contract_id", j.ContractID,
				"role", string(override.Role),
				"reason", override.Reason)
		}
	}

	if err := s.store.UpdateJobStatus(ctx, jobID, job.StatusInProgress, ""); err != nil {
		return nil, err
	}
	j.UpdateStatus(job.StatusInProgress)

	s.publish(ctx, "job.started", map[string]interface{}{
		"job_id": jobID, "job_number": j.JobNumber, "contract_id": j.ContractID,
	})
	return j, nil
}

// CompleteJob transitions an in-progress job to completed, recording
// completion notes
func (s *Service) CompleteJob(ctx context.Context, jobID, completionNotes string) (*job.Job, error) {
	j, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !j.CanTransitionTo(job.StatusCompleted) {
		return nil, apperr.BadRequest("job %s cannot be completed from status %s", jobID, j.Status)
	}

	if err := s.store.UpdateJobStatus(ctx, jobID, job.StatusCompleted, completionNotes); err != nil {
		return nil, err
	}
	j.UpdateStatus(job.StatusCompleted)
	j.CompletionNotes = completionNotes

	s.publish(ctx, "job.completed", map[string]interface{}{
		"job_id": jobID, "job_number": j.JobNumber, "contract_id": j.ContractID,
	})
	return j, nil
}

// CancelJob cancels a scheduled or in-progress job. The canceled job's date
// becomes available for regeneration.
func (s *Service) CancelJob(ctx context.Context, jobID, reason string) (*job.Job, error) {
	j, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !j.CanTransitionTo(job.StatusCanceled) {
		return nil, apperr.BadRequest("job %s cannot be canceled from status %s", jobID, j.Status)
	}

	if err := s.store.UpdateJobStatus(ctx, jobID, job.StatusCanceled, reason); err != nil {
		return nil, err
	}
	j.UpdateStatus(job.StatusCanceled)
	j.CompletionNotes = reason
	return j, nil
}

// AssignJob sets a job's workforce assignment to a team or an individual
// user, never both
func (s *Service) AssignJob(ctx context.Context, jobID, teamID, userID string) (*job.Job, error) {
	if err := contract.AssertSingleWorkforceAssignment(teamID, userID); err != nil {
		return nil, apperr.BadRequest("%s", err.Error())
	}

	j, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	assignment := contract.WorkforceAssignment{TeamID: teamID, UserID: userID}
	if err := s.store.UpdateJobAssignment(ctx, jobID, assignment.TeamID, assignment.UserID); err != nil {
		return nil, err
	}
	j.AssignedTeamID = assignment.TeamID
	j.AssignedToUserID = assignment.UserID

	s.publish(ctx, "job.assigned", map[string]interface{}{
		"job_id":  jobID,
		"team_id": assignment.TeamID,
		"user_id": assignment.UserID,
	})
	return j, nil
}

// outsideWindowError builds the structured rejection for an action outside
// the service window
func outsideWindowError(contractID string, check schedule.WindowCheck, override *Override) *apperr.BadRequestError {
	overridePossible := override == nil || override.Role.CanOverrideServiceWindow()
	details := map[string]interface{}{
		"contract_id":       contractID,
		"timezone":          check.Timezone,
		"local_time":        check.LocalTime,
		"local_date":        check.LocalDate,
		"current_day":       string(check.CurrentDay),
		"effective_day":     string(check.EffectiveDay),
		"window_start":      check.WindowStart,
		"window_end":        check.WindowEnd,
		"allowed_days":      check.AllowedDays,
		"reason":            check.Reason,
		"override_possible": overridePossible,
	}
	return apperr.BadRequestWithDetails(check.Reason, apperr.CodeOutsideServiceWindow, details)
}
