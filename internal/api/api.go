// Package api exposes the schedule management REST surface.
package api

import (
	"log/slog"
	"net/http"

	"github.com/leadloop/leadloop-go/internal/db"
	"github.com/leadloop/leadloop-go/internal/metrics"
)

// Handler serves the REST API.
type Handler struct {
	db      *db.Client
	auth    Authenticator
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates the API handler.
func New(database *db.Client, auth Authenticator, mc *metrics.Collector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		db:      database,
		auth:    auth,
		metrics: mc,
		logger:  logger,
	}
}

// Routes builds the full route table with middleware applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /metrics", h.handleMetrics)

	mux.Handle("POST /schedules", h.authed(h.handleCreateSchedule))
	mux.Handle("GET /schedules", h.authed(h.handleListSchedules))
	mux.Handle("GET /schedules/{id}", h.authed(h.handleGetSchedule))
	mux.Handle("PATCH /schedules/{id}", h.authed(h.handleUpdateSchedule))
	mux.Handle("DELETE /schedules/{id}", h.authed(h.handleDeleteSchedule))
	mux.Handle("POST /schedules/{id}/run", h.authed(h.handleForceRun))
	mux.Handle("GET /schedules/{id}/runs", h.authed(h.handleListRuns))
	mux.Handle("GET /runs/{id}", h.authed(h.handleGetRun))
	mux.Handle("PUT /settings/notifications", h.authed(h.handleUpsertSettings))

	return RequestLogging(h.logger)(mux)
}
