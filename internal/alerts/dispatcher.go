// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

// Package alerts dispatches notifications to employees: persisted first,
// then broadcast as alert-triggered events.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blackholeinfiverse51/workflow-blackhole/internal/events"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/logging"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/metrics"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/models"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/roster"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/store"
)

// ErrEmptyAlertBody indicates an alert without a description.
var ErrEmptyAlertBody = errors.New("alert description is empty")

// ErrInvalidSeverity indicates an unrecognized severity value.
var ErrInvalidSeverity = errors.New("invalid alert severity")

// SendRequest is one alert to dispatch.
type SendRequest struct {
	EmployeeID  string               `json:"employee_id"`
	Type        models.AlertType     `json:"type"`
	Severity    models.AlertSeverity `json:"severity"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	SenderID    string               `json:"sender_id"`
}

// Dispatcher creates, persists and broadcasts alerts.
type Dispatcher struct {
	store     *store.Store
	roster    *roster.Directory
	publisher events.Publisher
	now       func() time.Time
}

// NewDispatcher creates an alert dispatcher.
func NewDispatcher(st *store.Store, dir *roster.Directory, pub events.Publisher) *Dispatcher {
	return &Dispatcher{
		store:     st,
		roster:    dir,
		publisher: pub,
		now:       time.Now,
	}
}

// Send validates, persists and broadcasts one alert. The target must be
// a known employee and the description must not be empty; the title is
// optional. An unset severity defaults to warning; an unset type defaults
// to manual.
func (d *Dispatcher) Send(ctx context.Context, req SendRequest) (*models.Alert, error) {
	employee, err := d.roster.Resolve(req.EmployeeID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, ErrEmptyAlertBody
	}

	severity := req.Severity
	if severity == "" {
		severity = models.SeverityWarning
	}
	if !models.ValidSeverity(severity) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeverity, req.Severity)
	}

	alertType := req.Type
	if alertType == "" {
		alertType = models.AlertTypeManual
	}

	alert := &models.Alert{
		ID:          uuid.New().String(),
		EmployeeID:  employee.ID,
		Type:        alertType,
		Severity:    severity,
		Title:       title,
		Description: description,
		SenderID:    req.SenderID,
		SentAt:      d.now(),
	}

	if err := d.store.PutAlert(ctx, alert); err != nil {
		metrics.StoreErrors.WithLabelValues("put_alert").Inc()
		return nil, err
	}

	event := &events.Event{
		ID:           uuid.New().String(),
		Type:         events.TypeAlertTriggered,
		EmployeeID:   employee.ID,
		EmployeeName: employee.Name,
		Timestamp:    alert.SentAt,
		Alert: &events.AlertPayload{
			AlertID:     alert.ID,
			Severity:    alert.Severity,
			Title:       alert.Title,
			Description: alert.Description,
			SenderID:    alert.SenderID,
		},
	}
	if err := d.publisher.Publish(ctx, event); err != nil {
		logging.Error().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert event")
	}

	metrics.AlertsSent.WithLabelValues(string(alert.Severity)).Inc()
	logging.Info().
		Str("employee_id", employee.ID).
		Str("severity", string(alert.Severity)).
		Msg("alert dispatched")
	return alert, nil
}

// History returns an employee's alerts in send order.
func (d *Dispatcher) History(ctx context.Context, employeeID string) ([]*models.Alert, error) {
	if _, err := d.roster.Resolve(employeeID); err != nil {
		return nil, err
	}
	return d.store.AlertsForEmployee(ctx, employeeID)
}
