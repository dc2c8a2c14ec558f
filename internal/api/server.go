// Package api exposes the recurring-job engine over HTTP: contract-level
// generation endpoints, job lifecycle transitions with service-window
// enforcement, and operational health/metrics endpoints.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/clearcrew/fieldops/internal/contract"
	apperr "github.com/clearcrew/fieldops/internal/errors"
	"github.com/clearcrew/fieldops/internal/logger"
	"github.com/clearcrew/fieldops/internal/metrics"
	"github.com/clearcrew/fieldops/internal/recurring"
	"github.com/clearcrew/fieldops/internal/schedule"
	"github.com/clearcrew/fieldops/internal/scheduler"
	"github.com/clearcrew/fieldops/internal/store"
)

// Server wires the recurring-job service into HTTP handlers
type Server struct {
	svc       *recurring.Service
	store     *store.Store
	sched     *scheduler.AutogenScheduler
	collector *metrics.Collector
	log       logger.Logger
}

// NewServer creates the API server. sched may be nil when the sweep runs in a
// separate process; its state is then absent from /metrics.
func NewServer(svc *recurring.Service, st *store.Store, sched *scheduler.AutogenScheduler, log logger.Logger) *Server {
	if log == nil {
		log = &logger.NoOpLogger{}
	}
	return &Server{
		svc:       svc,
		store:     st,
		sched:     sched,
		collector: metrics.Default(),
		log:       log.WithComponent(logger.ComponentAPI),
	}
}

// Routes builds the HTTP route table
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /contracts/{id}/jobs/generate", s.handleGenerateJobs)
	mux.HandleFunc("POST /contracts/{id}/jobs/auto-generate", s.handleAutoGenerateJobs)
	mux.HandleFunc("POST /contracts/{id}/jobs/regenerate", s.handleRegenerateJobs)
	mux.HandleFunc("GET /contracts/{id}/service-window", s.handleServiceWindow)
	mux.HandleFunc("GET /contracts/{id}/jobs", s.handleListContractJobs)

	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /jobs/{id}/start", s.handleStartJob)
	mux.HandleFunc("POST /jobs/{id}/complete", s.handleCompleteJob)
	mux.HandleFunc("POST /jobs/{id}/cancel", s.handleCancelJob)
	mux.HandleFunc("POST /jobs/{id}/assign", s.handleAssignJob)

	mux.HandleFunc("POST /recurring/sweep", s.handleRunSweep)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	return mux
}

type generateRequest struct {
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
	// Assignment optionally overrides the contract's workforce assignment on
	// the created jobs
	Assignment *contract.WorkforceAssignment `json:"assignment,omitempty"`
	CreatedBy  string                        `json:"created_by"`
}

// assignmentOrZero unwraps an optional request assignment
func assignmentOrZero(a *contract.WorkforceAssignment) contract.WorkforceAssignment {
	if a == nil {
		return contract.WorkforceAssignment{}
	}
	return *a
}

func (s *Server) handleGenerateJobs(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}
	dateFrom, err := schedule.ParseDate(req.DateFrom)
	if err != nil {
		s.writeError(w, r, apperr.BadRequest("invalid date_from: %q", req.DateFrom))
		return
	}
	dateTo, err := schedule.ParseDate(req.DateTo)
	if err != nil {
		s.writeError(w, r, apperr.BadRequest("invalid date_to: %q", req.DateTo))
		return
	}

	result, err := s.svc.GenerateJobsFromContract(r.Context(), r.PathValue("id"), dateFrom, dateTo, assignmentOrZero(req.Assignment), req.CreatedBy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.collector.RecordJobsCreated(result.Created)
	s.writeJSON(w, http.StatusOK, result)
}

type autoGenerateRequest struct {
	Assignment *contract.WorkforceAssignment `json:"assignment,omitempty"`
	CreatedBy  string                        `json:"created_by"`
}

func (s *Server) handleAutoGenerateJobs(w http.ResponseWriter, r *http.Request) {
	var req autoGenerateRequest
	if !s.decode(w, r, &req) {
		return
	}

	c, err := s.store.GetContract(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		actor, err := s.store.FindFirstActiveUser(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if actor == nil {
			s.writeError(w, r, apperr.BadRequest("no active user to attribute generated jobs to"))
			return
		}
		createdBy = actor.ID
	}

	result, err := s.svc.AutoGenerateRecurringJobsForContract(r.Context(), c, assignmentOrZero(req.Assignment), createdBy, time.Now().UTC())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.collector.RecordJobsCreated(result.Created)
	s.writeJSON(w, http.StatusOK, result)
}

type regenerateRequest struct {
	DateFrom   string                        `json:"date_from"`
	Assignment *contract.WorkforceAssignment `json:"assignment,omitempty"`
	Reason     string                        `json:"reason"`
	CreatedBy  string                        `json:"created_by"`
}

func (s *Server) handleRegenerateJobs(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if !s.decode(w, r, &req) {
		return
	}

	dateFrom := schedule.DateOnly(time.Now().UTC())
	if req.DateFrom != "" {
		parsed, err := schedule.ParseDate(req.DateFrom)
		if err != nil {
			s.writeError(w, r, apperr.BadRequest("invalid date_from: %q", req.DateFrom))
			return
		}
		dateFrom = parsed
	}

	result, err := s.svc.RegenerateRecurringJobsForContract(r.Context(), r.PathValue("id"), dateFrom, assignmentOrZero(req.Assignment), req.Reason, req.CreatedBy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.collector.RecordJobsCanceled(result.Canceled)
	s.collector.RecordJobsCreated(result.Created)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleServiceWindow(w http.ResponseWriter, r *http.Request) {
	check, err := s.svc.ValidateServiceWindowForContract(r.Context(), r.PathValue("id"), time.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, check)
}

func (s *Server) handleListContractJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobsForContract(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs, "count": len(jobs)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, err := s.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, j)
}

type startJobRequest struct {
	Override *recurring.Override `json:"override,omitempty"`
}

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	var req startJobRequest
	if !s.decode(w, r, &req) {
		return
	}

	j, err := s.svc.StartJob(r.Context(), r.PathValue("id"), req.Override, time.Now())
	if err != nil {
		if br, ok := apperr.AsBadRequest(err); ok && br.Code == apperr.CodeOutsideServiceWindow {
			s.collector.RecordWindowRejection()
		}
		s.writeError(w, r, err)
		return
	}
	if req.Override != nil {
		s.collector.RecordOverrideUsed()
	}
	s.writeJSON(w, http.StatusOK, j)
}

type completeJobRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	var req completeJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	j, err := s.svc.CompleteJob(r.Context(), r.PathValue("id"), req.Notes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, j)
}

type cancelJobRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	var req cancelJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	j, err := s.svc.CancelJob(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.collector.RecordJobsCanceled(1)
	s.writeJSON(w, http.StatusOK, j)
}

type assignJobRequest struct {
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
}

func (s *Server) handleAssignJob(w http.ResponseWriter, r *http.Request) {
	var req assignJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	j, err := s.svc.AssignJob(r.Context(), r.PathValue("id"), req.TeamID, req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, j)
}

// handleRunSweep triggers one auto-regeneration cycle on demand, outside the
// scheduler's cadence
func (s *Server) handleRunSweep(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.RunRecurringJobsAutoRegenerationCycle(r.Context(), time.Now().UTC())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.collector.RecordJobsCreated(result.Created)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type metricsResponse struct {
	Metrics   metrics.Metrics  `json:"metrics"`
	Scheduler *scheduler.State `json:"scheduler,omitempty"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	resp := metricsResponse{Metrics: s.collector.GetMetrics()}
	if s.sched != nil {
		state := s.sched.GetState()
		resp.Scheduler = &state
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON request body. An empty body is accepted: every endpoint
// has workable defaults.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, apperr.BadRequest("invalid request body: %s", err.Error()))
		return false
	}
	return true
}

// errorResponse is the JSON error envelope
type errorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if br, ok := apperr.AsBadRequest(err); ok {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   br.Message,
			Code:    br.Code,
			Details: br.Details,
		})
		return
	}
	if apperr.IsNotFound(err) {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	s.log.ErrorContext(r.Context(), "Request failed",
		"method", r.Method, "path", r.URL.Path, "error", err.Error())
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Failed to encode response", "error", err.Error())
	}
}
