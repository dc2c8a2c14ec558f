// Package recurring implements the recurring-job engine: expanding a
// contract's service schedule into work orders over a date range, the rolling
// auto-generation horizon, cancel-and-regenerate, and the periodic sweep that
// keeps every active contract's calendar topped up.
package recurring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clearcrew/fieldops/internal/contract"
	apperr "github.com/clearcrew/fieldops/internal/errors"
	"github.com/clearcrew/fieldops/internal/job"
	"github.com/clearcrew/fieldops/internal/logger"
	"github.com/clearcrew/fieldops/internal/schedule"
	"github.com/clearcrew/fieldops/internal/store"
)

// horizonDays is the rolling auto-generation window: jobs are materialized
// this many days ahead (a 30-day window, inclusive of the first day)
const horizonDays = 29

// Notifier publishes domain events to interested consumers. Publishing is
// best-effort: generation never fails because a notification could not be
// delivered.
type Notifier interface {
	Publish(ctx context.Context, event string, payload map[string]interface{}) error
}

// Service is the recurring-job engine. It coordinates the schedule
// normalizer, the timezone resolver and the date expander against the store.
type Service struct {
	store    *store.Store
	notifier Notifier
	log      logger.Logger
}

// NewService creates a recurring-job engine. notifier may be nil when event
// publishing is not wired.
func NewService(s *store.Store, notifier Notifier, log logger.Logger) *Service {
	if log == nil {
		log = &logger.NoOpLogger{}
	}
	return &Service{
		store:    s,
		notifier: notifier,
		log:      log.WithComponent(logger.ComponentRecurring),
	}
}

// GenerationResult reports the outcome of one generation request
type GenerationResult struct {
	ContractID string `json:"contract_id"`
	// DatesPlanned is how many service dates the schedule produced in range
	DatesPlanned int `json:"dates_planned"`
	// Created is how many jobs were actually inserted
	Created int `json:"created"`
	// Skipped counts dates that already carried a non-canceled job, whether
	// detected up front or lost in a concurrent race
	Skipped int      `json:"skipped"`
	JobIDs  []string `json:"job_ids,omitempty"`
	Message string   `json:"message,omitempty"`
}

// RegenerationResult reports the outcome of a cancel-and-regenerate request
type RegenerationResult struct {
	ContractID string `json:"contract_id"`
	Canceled   int64  `json:"canceled"`
	Created    int    `json:"created"`
	Message    string `json:"message,omitempty"`
}

// GenerateJobsFromContract expands the contract's service schedule over
// [dateFrom, dateTo] and creates a scheduled-service job for every service
// date that does not already carry a non-canceled job. assignment, when
// non-zero, overrides the contract's own workforce assignment on the created
// jobs. Creation is deliberately not transactional across dates: each date
// stands alone, and a date lost to a concurrent generator is skipped, not an
// error.
func (s *Service) GenerateJobsFromContract(ctx context.Context, contractID string, dateFrom, dateTo time.Time, assignment contract.WorkforceAssignment, createdBy string) (*GenerationResult, error) {
	if err := contract.AssertSingleWorkforceAssignment(assignment.TeamID, assignment.UserID); err != nil {
		return nil, apperr.BadRequest("%s", err.Error())
	}

	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c.Status != contract.StatusActive {
		return nil, apperr.BadRequest("contract %s is not active (status: %s)", contractID, c.Status)
	}
	if len(c.ServiceSchedule) == 0 {
		return nil, apperr.BadRequest("contract %s has no service schedule configured", contractID)
	}

	ns := schedule.Normalize(c.ServiceSchedule, c.ServiceFrequency)
	if ns == nil {
		return nil, apperr.BadRequest("contract %s service schedule does not produce any service days", contractID)
	}

	timezone, err := s.facilityTimezone(ctx, c.FacilityID)
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{ContractID: contractID}

	dates := schedule.ServiceDates(ns, c.ServiceFrequency, dateFrom, dateTo)
	result.DatesPlanned = len(dates)
	if len(dates) == 0 {
		result.Message = "No service dates fall in the requested range"
		return result, nil
	}

	covered, err := s.store.CoveredDatesInRange(ctx, contractID, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}

	var pending []string
	for _, d := range dates {
		if covered[d] {
			result.Skipped++
			continue
		}
		pending = append(pending, d)
	}
	if len(pending) == 0 {
		result.Message = "All dates already have jobs scheduled"
		return result, nil
	}

	resolved := contract.ResolveAssignment(assignment, c)
	notes := serviceWindowNotes(ns, timezone)

	for _, d := range pending {
		scheduledDate, err := schedule.ParseDate(d)
		if err != nil {
			return nil, err
		}

		number, err := s.nextJobNumber(ctx, scheduledDate.Year())
		if err != nil {
			return nil, err
		}

		j := job.NewScheduledService(number, contractID, c.FacilityID, c.AccountID, scheduledDate, createdBy)
		j.AssignedTeamID = resolved.TeamID
		j.AssignedToUserID = resolved.UserID
		j.ScheduledStartTime = ns.WindowStart
		j.ScheduledEndTime = ns.WindowEnd
		j.Notes = notes

		outcome, err := s.store.CreateJob(ctx, j)
		if err != nil {
			return nil, fmt.Errorf("failed to create job for %s on %s: %w", contractID, d, err)
		}
		if outcome == store.OutcomeAlreadyScheduled {
			result.Skipped++
			continue
		}
		result.Created++
		result.JobIDs = append(result.JobIDs, j.ID)
	}

	s.log.InfoContext(ctx, "Generated recurring jobs",
		"contract_id", contractID,
		"created", result.Created,
		"skipped", result.Skipped,
		"date_from", schedule.FormatDate(dateFrom),
		"date_to", schedule.FormatDate(dateTo))

	s.publish(ctx, "jobs.generated", map[string]interface{}{
		"contract_id": contractID,
		"created":     result.Created,
		"job_ids":     result.JobIDs,
	})
	return result, nil
}

// AutoGenerateRecurringJobsForContract tops up one contract's rolling 30-day
// horizon. Contracts that resolve to no workforce assignment (after applying
// the override) are skipped before any job lookup. A contract whose latest
// recurring job is already scheduled past today is considered covered;
// otherwise generation anchors at the day after the latest job (or today when
// none exist), clipped to the contract term.
func (s *Service) AutoGenerateRecurringJobsForContract(ctx context.Context, c *contract.Contract, assignment contract.WorkforceAssignment, createdBy string, today time.Time) (*GenerationResult, error) {
	if err := contract.AssertSingleWorkforceAssignment(assignment.TeamID, assignment.UserID); err != nil {
		return nil, apperr.BadRequest("%s", err.Error())
	}

	today = schedule.DateOnly(today)
	result := &GenerationResult{ContractID: c.ID}

	if contract.ResolveAssignment(assignment, c).IsZero() {
		result.Message = "Contract has no workforce assignment"
		return result, nil
	}

	latest, err := s.store.LatestRecurringJobDate(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	anchor := today
	if latest != nil {
		if latest.After(today) {
			result.Message = "Contract already has jobs scheduled ahead"
			return result, nil
		}
		anchor = latest.AddDate(0, 0, 1)
	}

	dateFrom := anchor
	if start := schedule.DateOnly(c.StartDate); start.After(dateFrom) {
		dateFrom = start
	}
	dateTo := dateFrom.AddDate(0, 0, horizonDays)
	if c.EndDate != nil {
		if end := schedule.DateOnly(*c.EndDate); end.Before(dateTo) {
			dateTo = end
		}
	}
	if dateTo.Before(dateFrom) {
		result.Message = "Contract term leaves no dates to schedule"
		return result, nil
	}

	return s.GenerateJobsFromContract(ctx, c.ID, dateFrom, dateTo, assignment, createdBy)
}

// RegenerateRecurringJobsForContract cancels the contract's still-scheduled
// recurring jobs from dateFrom onward and regenerates the rolling horizon
// from that date, typically after a schedule or assignment change. All
// preconditions are checked before anything is canceled: a contract that
// resolves to no assignee, or whose term leaves no generation window, is a
// no-op rather than a destructive half-run.
func (s *Service) RegenerateRecurringJobsForContract(ctx context.Context, contractID string, dateFrom time.Time, assignment contract.WorkforceAssignment, reason, createdBy string) (*RegenerationResult, error) {
	if err := contract.AssertSingleWorkforceAssignment(assignment.TeamID, assignment.UserID); err != nil {
		return nil, apperr.BadRequest("%s", err.Error())
	}

	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c.Status != contract.StatusActive {
		return nil, apperr.BadRequest("contract %s is not active (status: %s)", contractID, c.Status)
	}
	if len(c.ServiceSchedule) == 0 {
		return nil, apperr.BadRequest("contract %s has no service schedule configured", contractID)
	}
	if schedule.Normalize(c.ServiceSchedule, c.ServiceFrequency) == nil {
		return nil, apperr.BadRequest("contract %s service schedule does not produce any service days", contractID)
	}

	dateFrom = schedule.DateOnly(dateFrom)
	if reason == "" {
		reason = "Rescheduled"
	}

	result := &RegenerationResult{ContractID: contractID}

	if contract.ResolveAssignment(assignment, c).IsZero() {
		result.Message = "Contract has no workforce assignment"
		return result, nil
	}

	start := dateFrom
	if contractStart := schedule.DateOnly(c.StartDate); contractStart.After(start) {
		start = contractStart
	}
	dateTo := start.AddDate(0, 0, horizonDays)
	if c.EndDate != nil {
		if end := schedule.DateOnly(*c.EndDate); end.Before(dateTo) {
			dateTo = end
		}
	}
	if dateTo.Before(start) {
		result.Message = "Contract term leaves no dates to schedule"
		return result, nil
	}

	canceled, err := s.store.CancelRecurringScheduledJobsFrom(ctx, contractID, dateFrom, reason)
	if err != nil {
		return nil, err
	}
	result.Canceled = canceled

	gen, err := s.GenerateJobsFromContract(ctx, contractID, start, dateTo, assignment, createdBy)
	if err != nil {
		return nil, err
	}
	result.Created = gen.Created

	s.log.InfoContext(ctx, "Regenerated recurring jobs",
		"contract_id", contractID, "canceled", canceled, "created", gen.Created)
	return result, nil
}

// CycleResult summarizes one auto-regeneration sweep
type CycleResult struct {
	// Checked is how many eligible contracts the sweep visited
	Checked int `json:"checked"`
	// GeneratedFor is how many contracts received at least one new job
	GeneratedFor int `json:"generated_for"`
	// Created is the total number of jobs created across the cycle
	Created int `json:"created"`
	// Failed is how many contracts errored; their failures are logged and do
	// not stop the sweep
	Failed int `json:"failed"`
}

// RunRecurringJobsAutoRegenerationCycle walks every active contract with a
// workforce assignment and tops up its rolling horizon. System-generated jobs
// need an active user to be attributed to; when none exists the whole cycle
// is a no-op. A single contract's failure is logged and skipped.
func (s *Service) RunRecurringJobsAutoRegenerationCycle(ctx context.Context, today time.Time) (*CycleResult, error) {
	result := &CycleResult{}

	actor, err := s.store.FindFirstActiveUser(ctx)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		s.log.WarnContext(ctx, "No active user found, skipping auto-regeneration cycle")
		return result, nil
	}

	contracts, err := s.store.ListActiveContractsWithAssignee(ctx)
	if err != nil {
		return nil, err
	}

	for _, c := range contracts {
		result.Checked++
		gen, err := s.AutoGenerateRecurringJobsForContract(ctx, c, contract.WorkforceAssignment{}, actor.ID, today)
		if err != nil {
			result.Failed++
			s.log.ErrorContext(ctx, "Auto-regeneration failed for contract",
				"contract_id", c.ID, "error", err.Error())
			continue
		}
		if gen.Created > 0 {
			result.GeneratedFor++
			result.Created += gen.Created
		}
	}

	s.log.InfoContext(ctx, "Auto-regeneration cycle finished",
		"checked", result.Checked,
		"generated_for", result.GeneratedFor,
		"created", result.Created,
		"failed", result.Failed)
	return result, nil
}

// facilityTimezone resolves a facility's IANA timezone from its address
// payload. A missing facility or unresolvable zone yields "": job generation
// falls back to UTC rather than failing.
func (s *Service) facilityTimezone(ctx context.Context, facilityID string) (string, error) {
	if facilityID == "" {
		return "", nil
	}
	f, err := s.store.GetFacility(ctx, facilityID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return schedule.ResolveTimezone(f.Address), nil
}

// nextJobNumber allocates the next WO-{year}-{seq} number by scanning the
// year's latest issued number. Uniqueness is ultimately enforced by the
// job_number constraint.
func (s *Service) nextJobNumber(ctx context.Context, year int) (string, error) {
	latest, err := s.store.LatestJobNumberForYear(ctx, year)
	if err != nil {
		return "", err
	}
	return job.NextNumber(year, latest)
}

// serviceWindowNotes renders the human-readable service-window summary stored
// on generated jobs
func serviceWindowNotes(ns *schedule.NormalizedSchedule, timezone string) string {
	note := fmt.Sprintf("Service window %s-%s on %s",
		ns.WindowStart, ns.WindowEnd, strings.Join(ns.DayNames(), ", "))
	if timezone == "" {
		return note + " (facility timezone unknown, times in UTC)"
	}
	return note + " (" + timezone + ")"
}

// publish fires a best-effort domain event
func (s *Service) publish(ctx context.Context, event string, payload map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		s.log.WarnContext(ctx, "Failed to publish event", "event", event, "error", err.Error())
	}
}
