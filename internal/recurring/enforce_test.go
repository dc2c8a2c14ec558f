package recurring

import (
	"context"
	"testing"
	"time"

	"github.com/clearcrew/fieldops/internal/contract"
	apperr "github.com/clearcrew/fieldops/internal/errors"
	"github.com/clearcrew/fieldops/internal/job"
	"github.com/clearcrew/fieldops/internal/schedule"
)

// seedJob generates one job for the contract on Monday 2026-01-05 and
// returns its ID
func (f *fixture) seedJob(t *testing.T, contractID string) string {
	t.Helper()
	result, err := f.service.GenerateJobsFromContract(context.Background(), contractID,
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), noOverride, "user-1")
	if err != nil {
		t.Fatalf("Seed generation failed: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("Seed created %d jobs, want 1", result.Created)
	}
	return result.JobIDs[0]
}

func TestValidateServiceWindowForContract(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contractID := f.seedContract(t, contractOpts{
		frequency: "3x_week", schedule: mwfSchedule, teamID: "team-1", timezone: "America/Chicago",
	})

	// Wednesday 2026-01-07 15:00 UTC is 09:00 CST, inside 09:00-17:00
	check, err := f.service.ValidateServiceWindowForContract(ctx, contractID,
		time.Date(2026, 1, 7, 15, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Validation failed: %v", err)
	}
	if !check.Allowed {
		t.Errorf("Wednesday 09:00 local rejected: %+v", check)
	}
	if check.LocalTime != "09:00" || check.Timezone != "America/Chicago" {
		t.Errorf("Local conversion wrong: %+v", check)
	}

	// Tuesday 20:00 CST (Wednesday 02:00 UTC) is outside the window
	check, err = f.service.ValidateServiceWindowForContract(ctx, contractID,
		time.Date(2026, 1, 7, 2, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Validation failed: %v", err)
	}
	if check.Allowed || check.Reason != schedule.ReasonOutsideWindow {
		t.Errorf("Evening check = %+v, want outside-window rejection", check)
	}

	// Sunday 10:00 CST is inside the window but not a service day
	check, err = f.service.ValidateServiceWindowForContract(ctx, contractID,
		time.Date(2026, 1, 4, 16, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Validation failed: %v", err)
	}
	if check.Allowed || check.Reason != schedule.ReasonOutsideDay {
		t.Errorf("Sunday check = %+v, want outside-day rejection", check)
	}
}

func TestValidateServiceWindow_MissingTimezoneIsError(t *testing.T) {
	f := newFixture(t)
	contractID := f.seedContract(t, contractOpts{
		frequency: "3x_week", schedule: mwfSchedule, teamID: "team-1",
	})

	_, err := f.service.ValidateServiceWindowForContract(context.Background(), contractID,
		time.Date(2026, 1, 7, 15, 0, 0, 0, time.UTC))
	if !apperr.IsBadRequest(err) {
		t.Errorf("Missing facility timezone: got %v, want BadRequest", err)
	}
}

func TestStartJob_InsideWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contractID := f.seedContract(t, contractOpts{
		frequency: "3x_week", schedule: mwfSchedule, teamID: "team-1", timezone: "America/Chicago",
	})
	jobID := f.seedJob(t, contractID)

	// Monday 10:00 CST
	started, err := f.service.StartJob(ctx, jobID, nil, time.Date(2026, 1, 5, 16, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	if started.Status != job.StatusInProgress {
		t.Errorf("Status = %s, want in_progress", started.Status)
	}

	stored, _ := f.store.GetJob(ctx, jobID)
	if stored.Status != job.StatusInProgress {
		t.Errorf("Persisted status = %s, want in_progress", stored.Status)
	}
}

func TestStartJob_OutsideWindowRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contractID := f.seedContract(t, contractOpts{
		frequency: "3x_week", schedule: mwfSchedule, teamID: "team-1", timezone: "America/Chicago",
	})
	jobID := f.seedJob(t, contractID)

	// Monday 20:00 CST (Tuesday 02:00 UTC)
	_, err := f.service.StartJob(ctx, jobID, nil, time.Date(2026, 1, 6, 2, 0, 0, 0, time.UTC))
	br, ok := apperr.AsBadRequest(err)
	if !ok {
		t.Fatalf("Got %v, want BadRequest", err)
	}
	if br.Code != apperr.CodeOutsideServiceWindow {
		t.Errorf("Code = %q, want %q", br.Code, apperr.CodeOutsideServiceWindow)
	}
	if br.Details["timezone"] != "America/Chicago" {
		t.Errorf("Details missing timezone: %+v", br.Details)
	}
	if br.Details["local_time"] != "20:00" {
		t.Errorf("Details local_time = %v, want 20:00", br.Details["local_time"])
	}
	if br.Details["reason"] != schedule.ReasonOutsideWindow {
		t.Errorf("Details reason = %v", br.Details["reason"])
	}

	stored, _ := f.store.GetJob(ctx, jobID)
	if stored.Status != job.StatusScheduled {
		t.Errorf("Rejected start changed status to %s", stored.Status)
	}
}

func TestStartJob_ManagerOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contractID := f.seedContract(t, contractOpts{
		frequency: "3x_week", schedule: mwfSchedule, teamID: "team-1", timezone: "America/Chicago",
	})
	outside := time.Date(2026, 1, 6, 2, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		override *Override
		wantOK   bool
	}{
		{"manager with reason", &Override{Role: contract.RoleManager, Reason: "client request"}, true},
		{"owner with reason", &Override{Role: contract.RoleOwner, Reason: "emergency"}, true},
		{"manager without reason", &Override{Role: contract.RoleManager}, false},
		{"staff with reason", &Override{Role: contract.RoleStaff, Reason: "client request"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobID := f.seedJob(t, contractID)
			_, err := f.service.StartJob(ctx, jobID, tt.override, outside)
			if tt.wantOK && err != nil {
				t.Errorf("Override rejected: %v", err)
			}
			if !tt.wantOK && !apperr.IsBadRequest(err) {
				t.Errorf("Got %v, want BadRequest", err)
			}
			// Reset for the next case: each seeds a fresh job on the same date,
			// so cancel whatever state this one is in
			if _, err := f.service.CancelJob(ctx, jobID, "test reset"); err != nil {
				t.Fatalf("Cleanup cancel failed: %v", err)
			}
		})
	}
}

func TestCompleteJobLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contractID := f.seedContract(t, contractOpts{
		frequency: "3x_week", schedule: mwfSchedule, teamID: "team-1", timezone: "America/Chicago",
	})
	jobID := f.seedJob(t, contractID)

	// Completing before starting violates the lifecycle
	if _, err := f.service.CompleteJob(ctx, jobID, "done"); !apperr.IsBadRequest(err) {
		t.Errorf("Complete from scheduled: got %v, want BadRequest", err)
	}

	if _, err := f.service.StartJob(ctx, jobID, nil, time.Date(2026, 1, 5, 16, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}

	completed, err := f.service.CompleteJob(ctx, jobID, "all areas serviced")
	if err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}
	if completed.Status != job.StatusCompleted {
		t.Errorf("Status = %s, want completed", completed.Status)
	}

	stored, _ := f.store.GetJob(ctx, jobID)
	if stored.CompletionNotes != "all areas serviced" {
		t.Errorf("CompletionNotes = %q", stored.CompletionNotes)
	}

	// Completed jobs cannot be canceled
	if _, err := f.service.CancelJob(ctx, jobID, "oops"); !apperr.IsBadRequest(err) {
		t.Errorf("Cancel completed job: got %v, want BadRequest", err)
	}
}

func TestAssignJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contractID := f.seedContract(t, contractOpts{
		frequency: "3x_week", schedule: mwfSchedule, teamID: "team-1", timezone: "America/Chicago",
	})
	jobID := f.seedJob(t, contractID)

	if _, err := f.service.AssignJob(ctx, jobID, "team-2", "user-9"); !apperr.IsBadRequest(err) {
		t.Errorf("Dual assignment: got %v, want BadRequest", err)
	}

	assigned, err := f.service.AssignJob(ctx, jobID, "", "user-9")
	if err != nil {
		t.Fatalf("AssignJob failed: %v", err)
	}
	if assigned.AssignedToUserID != "user-9" || assigned.AssignedTeamID != "" {
		t.Errorf("Assignment = team %q user %q, want user-9 only",
			assigned.AssignedTeamID, assigned.AssignedToUserID)
	}

	if _, err := f.service.AssignJob(ctx, "missing", "team-2", ""); !apperr.IsNotFound(err) {
		t.Errorf("Missing job: got %v, want NotFound", err)
	}
}
