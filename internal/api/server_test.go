package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clearcrew/fieldops/internal/contract"
	apperr "github.com/clearcrew/fieldops/internal/errors"
	"github.com/clearcrew/fieldops/internal/metrics"
	"github.com/clearcrew/fieldops/internal/recurring"
	"github.com/clearcrew/fieldops/internal/store"
)

type testServer struct {
	store   *store.Store
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	metrics.ResetMetrics()

	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	svc := recurring.NewService(s, nil, nil)
	srv := NewServer(svc, s, nil, nil)
	return &testServer{store: s, handler: srv.Routes()}
}

// seedContract creates a facility and an active contract scheduled on the
// given days with the given window, in the UTC zone so window checks against
// the real clock are predictable
func (ts *testServer) seedContract(t *testing.T, days []string, window string) string {
	t.Helper()
	ctx := context.Background()

	facilityID := uuid.New().String()
	if err := ts.store.CreateFacility(ctx, &contract.Facility{
		ID: facilityID, AccountID: "acct-1", Name: "HQ",
		Address: []byte(`{"timezone":"UTC"}`),
	}); err != nil {
		t.Fatalf("Failed to create facility: %v", err)
	}

	scheduleJSON, err := json.Marshal(map[string]interface{}{
		"days": days, "time": window,
	})
	if err != nil {
		t.Fatalf("Failed to marshal schedule: %v", err)
	}

	c := &contract.Contract{
		ID:              uuid.New().String(),
		ContractNumber:  "CT-2026-0100",
		AccountID:       "acct-1",
		FacilityID:      facilityID,
		Status:          contract.StatusActive,
		ServiceSchedule: scheduleJSON,
		StartDate:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		AssignedTeamID:  "team-1",
	}
	if err := ts.store.CreateContract(ctx, c); err != nil {
		t.Fatalf("Failed to create contract: %v", err)
	}
	return c.ID
}

func (ts *testServer) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// weekdayName returns the lowercase weekday of now in UTC, e.g. "monday"
func weekdayName(offsetDays int) string {
	return strings.ToLower(time.Now().UTC().AddDate(0, 0, offsetDays).Weekday().String())
}

var allDays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func TestGenerateJobsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	contractID := ts.seedContract(t, []string{"monday", "wednesday", "friday"}, "9:00-17:00")

	rec := ts.request(t, http.MethodPost, "/contracts/"+contractID+"/jobs/generate", map[string]string{
		"date_from": "2026-01-05", "date_to": "2026-01-16", "created_by": "user-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var result recurring.GenerationResult
	decodeBody(t, rec, &result)
	if result.Created != 6 {
		t.Errorf("Created = %d, want 6", result.Created)
	}

	// Second call is idempotent
	rec = ts.request(t, http.MethodPost, "/contracts/"+contractID+"/jobs/generate", map[string]string{
		"date_from": "2026-01-05", "date_to": "2026-01-16",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	decodeBody(t, rec, &result)
	if result.Created != 0 || result.Message != "All dates already have jobs scheduled" {
		t.Errorf("Idempotent call = %+v", result)
	}
}

func TestGenerateJobsAssignmentOverride(t *testing.T) {
	ts := newTestServer(t)
	contractID := ts.seedContract(t, []string{"monday", "wednesday", "friday"}, "9:00-17:00")

	rec := ts.request(t, http.MethodPost, "/contracts/"+contractID+"/jobs/generate", map[string]interface{}{
		"date_from": "2026-01-05", "date_to": "2026-01-05", "created_by": "user-1",
		"assignment": map[string]string{"user_id": "user-9"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body: %s", rec.Code, rec.Body.String())
	}

	jobs, err := ts.store.ListJobsForContract(context.Background(), contractID)
	if err != nil {
		t.Fatalf("ListJobsForContract failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("Got %d jobs, want 1", len(jobs))
	}
	// The requested individual wins over the contract's team
	if jobs[0].AssignedToUserID != "user-9" || jobs[0].AssignedTeamID != "" {
		t.Errorf("Assignment = team %q user %q, want user-9 only",
			jobs[0].AssignedTeamID, jobs[0].AssignedToUserID)
	}

	// Naming both a team and a user is rejected
	rec = ts.request(t, http.MethodPost, "/contracts/"+contractID+"/jobs/generate", map[string]interface{}{
		"date_from": "2026-01-07", "date_to": "2026-01-07",
		"assignment": map[string]string{"team_id": "team-2", "user_id": "user-9"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Dual assignment status = %d, want 400", rec.Code)
	}
}

func TestGenerateJobsRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)
	contractID := ts.seedContract(t, []string{"monday"}, "9:00-17:00")

	rec := ts.request(t, http.MethodPost, "/contracts/"+contractID+"/jobs/generate", map[string]string{
		"date_from": "not-a-date", "date_to": "2026-01-16",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Bad date status = %d, want 400", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, "/contracts/missing/jobs/generate", map[string]string{
		"date_from": "2026-01-05", "date_to": "2026-01-16",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Missing contract status = %d, want 404", rec.Code)
	}
}

func TestAutoGenerateEndpointRequiresActor(t *testing.T) {
	ts := newTestServer(t)
	contractID := ts.seedContract(t, allDays, "")

	// No active user and no created_by in the request
	rec := ts.request(t, http.MethodPost, "/contracts/"+contractID+"/jobs/auto-generate", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", rec.Code)
	}

	if err := ts.store.CreateUser(context.Background(), &contract.User{
		ID: "user-1", Email: "ops@example.com", Name: "Ops",
		Role: contract.RoleAdmin, Status: "active",
	}); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	rec = ts.request(t, http.MethodPost, "/contracts/"+contractID+"/jobs/auto-generate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var result recurring.GenerationResult
	decodeBody(t, rec, &result)
	if result.Created == 0 {
		t.Errorf("Auto-generate created no jobs: %+v", result)
	}
}

func TestRegenerateEndpoint(t *testing.T) {
	ts := newTestServer(t)
	contractID := ts.seedContract(t, allDays, "")

	rec := ts.request(t, http.MethodPost, "/contracts/"+contractID+"/jobs/regenerate", map[string]string{
		"reason": "schedule changed", "created_by": "user-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var result recurring.RegenerationResult
	decodeBody(t, rec, &result)
	if result.Created != 30 {
		t.Errorf("Created = %d, want 30 (every day over the horizon)", result.Created)
	}
}

func TestStartJobOutsideWindow(t *testing.T) {
	ts := newTestServer(t)
	// Only tomorrow is a service day, so starting right now is always an
	// outside-day rejection
	contractID := ts.seedContract(t, []string{weekdayName(1)}, "")
	jobID := ts.seedJobForDate(t, contractID, time.Now().UTC().AddDate(0, 0, 1))

	rec := ts.request(t, http.MethodPost, "/jobs/"+jobID+"/start", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Error   string                 `json:"error"`
		Code    string                 `json:"code"`
		Details map[string]interface{} `json:"details"`
	}
	decodeBody(t, rec, &resp)
	if resp.Code != apperr.CodeOutsideServiceWindow {
		t.Errorf("Code = %q, want %q", resp.Code, apperr.CodeOutsideServiceWindow)
	}
	if resp.Details["timezone"] != "UTC" {
		t.Errorf("Details missing timezone: %+v", resp.Details)
	}
	if possible, ok := resp.Details["override_possible"].(bool); !ok || !possible {
		t.Errorf("override_possible = %v, want true", resp.Details["override_possible"])
	}

	m := metrics.GetMetrics()
	if m.WindowRejections != 1 {
		t.Errorf("WindowRejections = %d, want 1", m.WindowRejections)
	}
}

func TestStartJobWithManagerOverride(t *testing.T) {
	ts := newTestServer(t)
	contractID := ts.seedContract(t, []string{weekdayName(1)}, "")
	jobID := ts.seedJobForDate(t, contractID, time.Now().UTC().AddDate(0, 0, 1))

	// Role without a reason is not enough
	rec := ts.request(t, http.MethodPost, "/jobs/"+jobID+"/start", map[string]interface{}{
		"override": map[string]string{"role": "manager"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Override without reason status = %d, want 400", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, "/jobs/"+jobID+"/start", map[string]interface{}{
		"override": map[string]string{"role": "manager", "reason": "client requested early arrival"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Override status = %d, body: %s", rec.Code, rec.Body.String())
	}

	m := metrics.GetMetrics()
	if m.OverridesUsed != 1 {
		t.Errorf("OverridesUsed = %d, want 1", m.OverridesUsed)
	}
}

func TestJobLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t)
	contractID := ts.seedContract(t, allDays, "")
	jobID := ts.seedJobForDate(t, contractID, time.Now().UTC())

	rec := ts.request(t, http.MethodPost, "/jobs/"+jobID+"/assign", map[string]string{"user_id": "user-7"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Assign status = %d, body: %s", rec.Code, rec.Body.String())
	}

	rec = ts.request(t, http.MethodPost, "/jobs/"+jobID+"/assign", map[string]string{
		"team_id": "team-1", "user_id": "user-7",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Dual assignment status = %d, want 400", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, "/jobs/"+jobID+"/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Start status = %d, body: %s", rec.Code, rec.Body.String())
	}

	rec = ts.request(t, http.MethodPost, "/jobs/"+jobID+"/complete", map[string]string{"notes": "all clear"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Complete status = %d, body: %s", rec.Code, rec.Body.String())
	}

	rec = ts.request(t, http.MethodGet, "/jobs/"+jobID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Get status = %d", rec.Code)
	}
	var j struct {
		Status          string `json:"status"`
		CompletionNotes string `json:"completion_notes"`
	}
	decodeBody(t, rec, &j)
	if j.Status != "completed" || j.CompletionNotes != "all clear" {
		t.Errorf("Job after lifecycle = %+v", j)
	}

	// Completed jobs cannot be canceled
	rec = ts.request(t, http.MethodPost, "/jobs/"+jobID+"/cancel", map[string]string{"reason": "oops"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Cancel completed status = %d, want 400", rec.Code)
	}
}

func TestListContractJobs(t *testing.T) {
	ts := newTestServer(t)
	contractID := ts.seedContract(t, []string{"monday", "wednesday", "friday"}, "9:00-17:00")

	rec := ts.request(t, http.MethodPost, "/contracts/"+contractID+"/jobs/generate", map[string]string{
		"date_from": "2026-01-05", "date_to": "2026-01-09",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Generate status = %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/contracts/"+contractID+"/jobs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("List status = %d", rec.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &resp)
	if resp.Count != 3 {
		t.Errorf("Count = %d, want 3", resp.Count)
	}
}

func TestSweepEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seedContract(t, allDays, "")
	if err := ts.store.CreateUser(context.Background(), &contract.User{
		ID: "user-1", Email: "ops@example.com", Name: "Ops",
		Role: contract.RoleAdmin, Status: "active",
	}); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	rec := ts.request(t, http.MethodPost, "/recurring/sweep", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var result recurring.CycleResult
	decodeBody(t, rec, &result)
	if result.Checked != 1 || result.Created != 30 {
		t.Errorf("Sweep result = %+v, want 1 checked, 30 created", result)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Health status = %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Metrics status = %d", rec.Code)
	}
	var resp struct {
		Metrics metrics.Metrics `json:"metrics"`
	}
	decodeBody(t, rec, &resp)
	if resp.Metrics.JobsCreated != 0 {
		t.Errorf("Fresh metrics JobsCreated = %d", resp.Metrics.JobsCreated)
	}
}

// seedJobForDate generates a single job on the given date via the generate
// endpoint
func (ts *testServer) seedJobForDate(t *testing.T, contractID string, day time.Time) string {
	t.Helper()
	d := day.Format("2006-01-02")
	rec := ts.request(t, http.MethodPost, "/contracts/"+contractID+"/jobs/generate", map[string]string{
		"date_from": d, "date_to": d, "created_by": "user-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Seed generation status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var result recurring.GenerationResult
	decodeBody(t, rec, &result)
	if len(result.JobIDs) != 1 {
		t.Fatalf("Seed created %d jobs, want 1", len(result.JobIDs))
	}
	return result.JobIDs[0]
}
