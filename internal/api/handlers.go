// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

// Package api is the HTTP surface: REST handlers for attendance commands
// and queries, the websocket upgrade endpoint and health probes.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	gorillaws "github.com/gorilla/websocket"

	"github.com/blackholeinfiverse51/workflow-blackhole/internal/alerts"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/geo"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/logging"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/models"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/roster"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/store"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/tracking"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/websocket"
)

// Handler holds the dependencies behind the HTTP surface.
type Handler struct {
	tracking   *tracking.Service
	dispatcher *alerts.Dispatcher
	hub        *websocket.Hub
	upgrader   gorillaws.Upgrader
	startedAt  time.Time
}

// NewHandler creates the HTTP handler set.
func NewHandler(svc *tracking.Service, dispatcher *alerts.Dispatcher, hub *websocket.Hub, corsOrigins []string) *Handler {
	allowed := make(map[string]bool, len(corsOrigins))
	for _, origin := range corsOrigins {
		allowed[origin] = true
	}

	return &Handler{
		tracking:   svc,
		dispatcher: dispatcher,
		hub:        hub,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header.
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
		startedAt: time.Now(),
	}
}

// errorStatus maps domain sentinel errors onto HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, tracking.ErrInvalidSample), errors.Is(err, geo.ErrInvalidCoordinate):
		return http.StatusBadRequest, "INVALID_SAMPLE"
	case errors.Is(err, tracking.ErrInvalidStateTransition):
		return http.StatusConflict, "INVALID_STATE_TRANSITION"
	case errors.Is(err, roster.ErrUnknownEmployee):
		return http.StatusNotFound, "UNKNOWN_EMPLOYEE"
	case errors.Is(err, alerts.ErrEmptyAlertBody):
		return http.StatusBadRequest, "EMPTY_ALERT_BODY"
	case errors.Is(err, alerts.ErrInvalidSeverity):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, store.ErrPersistence):
		return http.StatusServiceUnavailable, "PERSISTENCE_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// respondDomainError translates a domain error into the error envelope.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	respondError(w, status, code, err.Error(), err)
}

// IngestSample handles POST /api/v1/attendance/samples.
func (h *Handler) IngestSample(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var raw tracking.RawSample
	if err := decodeJSONBody(w, r, &raw); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", err)
		return
	}

	result, err := h.tracking.Ingest(r.Context(), raw)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, result, started)
}

// employeeCommand is the body shared by the lifecycle command endpoints.
type employeeCommand struct {
	EmployeeID string `json:"employee_id"`
}

// StartDay handles POST /api/v1/attendance/day/start.
func (h *Handler) StartDay(w http.ResponseWriter, r *http.Request) {
	h.lifecycleCommand(w, r, h.tracking.StartDay)
}

// EndDay handles POST /api/v1/attendance/day/end.
func (h *Handler) EndDay(w http.ResponseWriter, r *http.Request) {
	h.lifecycleCommand(w, r, h.tracking.EndDay)
}

// MarkLeave handles POST /api/v1/attendance/leave.
func (h *Handler) MarkLeave(w http.ResponseWriter, r *http.Request) {
	h.lifecycleCommand(w, r, h.tracking.MarkLeave)
}

func (h *Handler) lifecycleCommand(w http.ResponseWriter, r *http.Request, command func(ctx context.Context, employeeID string) (*models.AttendanceSession, error)) {
	started := time.Now()

	var cmd employeeCommand
	if err := decodeJSONBody(w, r, &cmd); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", err)
		return
	}
	if cmd.EmployeeID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "employee_id is required", nil)
		return
	}

	session, err := command(r.Context(), cmd.EmployeeID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, session, started)
}

// StopTracking handles POST /api/v1/attendance/{employeeID}/stop-tracking.
func (h *Handler) StopTracking(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	employeeID := chi.URLParam(r, "employeeID")
	if err := h.tracking.StopTracking(r.Context(), employeeID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"employee_id": employeeID, "tracking": "stopped"}, started)
}

// LiveView handles GET /api/v1/attendance/live?department=&status=.
func (h *Handler) LiveView(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	filter := tracking.LiveFilter{
		Department: r.URL.Query().Get("department"),
		Status:     models.AttendanceStatus(r.URL.Query().Get("status")),
	}

	rows, stats, err := h.tracking.LiveView(r.Context(), filter)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if rows == nil {
		rows = []models.EmployeeLiveView{}
	}
	respondSuccess(w, http.StatusOK, &models.LiveViewResponse{Employees: rows, Stats: *stats}, started)
}

// Stats handles GET /api/v1/attendance/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	stats, err := h.tracking.Stats(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, stats, started)
}

// ExportCSV handles GET /api/v1/attendance/export.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	filename := fmt.Sprintf("attendance-%s.csv", time.Now().Format(models.SessionDateFormat))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := h.tracking.ExportCSV(r.Context(), w); err != nil {
		// Headers may already be written; log rather than emit a broken envelope.
		logging.Error().Err(err).Msg("csv export failed")
	}
}

// CreateAlert handles POST /api/v1/alerts.
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req alerts.SendRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "malformed request body", err)
		return
	}
	if req.EmployeeID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "employee_id is required", nil)
		return
	}

	alert, err := h.dispatcher.Send(r.Context(), req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondSuccess(w, http.StatusCreated, alert, started)
}

// AlertHistory handles GET /api/v1/alerts/{employeeID}.
func (h *Handler) AlertHistory(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	history, err := h.dispatcher.History(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if history == nil {
		history = []*models.Alert{}
	}
	respondSuccess(w, http.StatusOK, history, started)
}

// WebSocket handles GET /api/v1/ws: upgrades the connection and registers
// the observer with the hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn)
	h.hub.Register <- client
	client.Start()
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"ws_clients":     h.hub.ClientCount(),
	}, started)
}

// HealthLive handles GET /api/v1/health/live: process liveness only.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// HealthReady handles GET /api/v1/health/ready: readiness including the
// store, exercised with a cheap read.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	if _, err := h.tracking.Stats(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "NOT_READY", "store not ready", err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]string{"status": "ready"}, started)
}
