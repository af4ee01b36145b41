package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/maltedev/shop-compare/internal/database"
	"github.com/maltedev/shop-compare/internal/models"
	"github.com/maltedev/shop-compare/internal/operator"
)

// ChallengeGate is the operator side of a manual fallback.
type ChallengeGate interface {
	Pending() operator.Prompt
	Acknowledge() error
}

type ResultsSource interface {
	Last() *models.RunReport
}

type RunLister interface {
	List() []*models.RunReport
	Get(id string) (*models.RunReport, bool)
	GetStats() map[string]int
}

type StatsSource interface {
	Stats(ctx context.Context, site string) (*database.SolveStats, error)
}

type Handlers struct {
	gate    ChallengeGate
	results ResultsSource
	runs    RunLister
	stats   StatsSource
	logger  *slog.Logger
}

// NewHandlers wires the API. runs and stats may be nil when run history or
// solve persistence are not configured.
func NewHandlers(gate ChallengeGate, results ResultsSource, runs RunLister, stats StatsSource, logger *slog.Logger) *Handlers {
	return &Handlers{
		gate:    gate,
		results: results,
		runs:    runs,
		stats:   stats,
		logger:  logger.With("component", "api"),
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"challenge_pending": h.gate.Pending().Pending,
	})
}

// GetChallenge reports whether a challenge is waiting for the operator.
func (h *Handlers) GetChallenge(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.gate.Pending())
}

// AcknowledgeChallenge releases a solve blocked in manual fallback.
func (h *Handlers) AcknowledgeChallenge(w http.ResponseWriter, r *http.Request) {
	prompt := h.gate.Pending()
	if err := h.gate.Acknowledge(); err != nil {
		if errors.Is(err, operator.ErrNothingPending) {
			h.respondError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to acknowledge challenge", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to acknowledge challenge")
		return
	}

	h.logger.Info("challenge acknowledged", "message", prompt.Message)
	h.respondJSON(w, http.StatusOK, map[string]any{
		"acknowledged": true,
		"message":      prompt.Message,
	})
}

// GetResults returns the last finished search run.
func (h *Handlers) GetResults(w http.ResponseWriter, r *http.Request) {
	last := h.results.Last()
	if last == nil {
		h.respondError(w, http.StatusNotFound, "no search run finished yet")
		return
	}
	h.respondJSON(w, http.StatusOK, last)
}

// ListRuns returns the stored runs, newest first.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.respondError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	h.respondJSON(w, http.StatusOK, h.runs.List())
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.respondError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	run, ok := h.runs.Get(id)
	if !ok {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	h.respondJSON(w, http.StatusOK, run)
}

// GetRunStats counts stored runs by outcome.
func (h *Handlers) GetRunStats(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.respondError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	h.respondJSON(w, http.StatusOK, h.runs.GetStats())
}

func (h *Handlers) GetSolveStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.respondError(w, http.StatusServiceUnavailable, "solve history is not configured")
		return
	}

	site := chi.URLParam(r, "site")
	if site == "" {
		h.respondError(w, http.StatusBadRequest, "site is required")
		return
	}

	stats, err := h.stats.Stats(r.Context(), site)
	if err != nil {
		h.logger.Error("failed to get solve stats", "site", site, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get solve stats")
		return
	}

	h.respondJSON(w, http.StatusOK, stats)
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
