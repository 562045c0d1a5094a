// Package api serves the run queue over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maltedev/life-quote-scraper/internal/database"
	"github.com/maltedev/life-quote-scraper/internal/jobs"
	"github.com/maltedev/life-quote-scraper/internal/runner"
)

const (
	defaultQuoteLimit = 1000
	maxQuoteLimit     = 10000

	pendingWarnThreshold    = 1000
	deadLetterFailThreshold = 100
)

type RunService interface {
	CreateRun(ctx context.Context, site string) (*database.Run, error)
	GetRun(ctx context.Context, id uuid.UUID) (*database.Run, error)
	ListRuns(ctx context.Context) ([]*database.Run, error)
	RunQuotes(ctx context.Context, id uuid.UUID, limit int) ([]database.Quote, error)
}

type OutboxStats interface {
	Stats(ctx context.Context) (database.RelayStats, error)
}

type Handlers struct {
	runs   RunService
	outbox OutboxStats
	logger *slog.Logger
}

func NewHandlers(runs RunService, outbox OutboxStats, logger *slog.Logger) *Handlers {
	return &Handlers{
		runs:   runs,
		outbox: outbox,
		logger: logger.With("component", "api"),
	}
}

type CreateRunRequest struct {
	Site string `json:"site"`
}

type CreateRunResponse struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Site == "" {
		h.respondError(w, http.StatusBadRequest, "site is required")
		return
	}

	run, err := h.runs.CreateRun(r.Context(), req.Site)
	if errors.Is(err, runner.ErrUnknownSite) {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to create run", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create run")
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateRunResponse{
		RunID:   run.ID.String(),
		Status:  run.Status,
		Message: "Run queued",
	})
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		h.respondRunError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, run)
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.ListRuns(r.Context())
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*database.Run{}
	}
	h.respondJSON(w, http.StatusOK, runs)
}

func (h *Handlers) GetRunQuotes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	limit := defaultQuoteLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxQuoteLimit)
	}

	quotes, err := h.runs.RunQuotes(r.Context(), id, limit)
	if err != nil {
		h.respondRunError(w, err)
		return
	}
	if quotes == nil {
		quotes = []database.Quote{}
	}
	h.respondJSON(w, http.StatusOK, quotes)
}

type HealthResponse struct {
	Status  string               `json:"status"`
	Message string               `json:"message,omitempty"`
	Outbox  *database.RelayStats `json:"outbox,omitempty"`
}

// Health reports the outbox backlog. A large dead letter count makes the
// service unhealthy.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK

	stats, err := h.outbox.Stats(r.Context())
	switch {
	case err != nil:
		h.logger.Warn("failed to read outbox stats", "error", err)
		resp.Status = "warning"
		resp.Message = "outbox stats unavailable"
	case stats.DeadLetter > deadLetterFailThreshold:
		resp.Outbox = &stats
		resp.Status = "error"
		resp.Message = "High number of dead letter events"
		status = http.StatusServiceUnavailable
	case stats.Pending > pendingWarnThreshold:
		resp.Outbox = &stats
		resp.Status = "warning"
		resp.Message = "High number of pending outbox events"
	default:
		resp.Outbox = &stats
	}

	h.respondJSON(w, status, resp)
}

func (h *Handlers) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid run ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) respondRunError(w http.ResponseWriter, err error) {
	if errors.Is(err, jobs.ErrRunNotFound) {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	h.logger.Error("failed to load run", "error", err)
	h.respondError(w, http.StatusInternalServerError, "failed to load run")
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
