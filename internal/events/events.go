// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

// Package events defines the closed set of real-time attendance events and
// the Watermill channel they travel on.
//
// Delivery semantics are live-dashboard semantics: at-most-once per
// connected observer, no replay, no backlog. The audit trail is the
// persisted session/violation data, never this stream. Publishing is
// fire-and-forget relative to the state change that caused it.
package events

import (
	"fmt"
	"time"

	"github.com/blackholeinfiverse51/workflow-blackhole/internal/models"
)

// Topic is the single pub/sub topic all attendance events travel on.
const Topic = "attendance.events"

// Type tags an event variant. The set is closed: observers can switch
// exhaustively on these five kinds.
type Type string

// Event kinds.
const (
	TypeTrackingStarted Type = "tracking-started"
	TypeLocationUpdate  Type = "location-update"
	TypeGeofenceExit    Type = "geofence-exit"
	TypeGeofenceEnter   Type = "geofence-enter"
	TypeAlertTriggered  Type = "alert-triggered"
)

// knownTypes guards against publishing outside the closed set.
var knownTypes = map[Type]bool{
	TypeTrackingStarted: true,
	TypeLocationUpdate:  true,
	TypeGeofenceExit:    true,
	TypeGeofenceEnter:   true,
	TypeAlertTriggered:  true,
}

// LocationPayload carries the sample behind location-update and
// geofence-enter/exit events.
type LocationPayload struct {
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	DistanceFromOffice float64 `json:"distance_from_office"`
	InsideGeofence     bool    `json:"inside_geofence"`
}

// ViolationPayload carries the violation state behind geofence events.
type ViolationPayload struct {
	ViolationID    string     `json:"violation_id"`
	ExitedAt       time.Time  `json:"exited_at"`
	ReenteredAt    *time.Time `json:"reentered_at,omitempty"`
	DistanceAtExit float64    `json:"distance_at_exit"`
}

// AlertPayload carries the alert behind alert-triggered events.
type AlertPayload struct {
	AlertID     string               `json:"alert_id"`
	Severity    models.AlertSeverity `json:"severity"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	SenderID    string               `json:"sender_id,omitempty"`
}

// Event is one typed real-time notification. Every event carries enough
// payload for a dashboard to update without a follow-up query.
type Event struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	EmployeeID   string    `json:"employee_id"`
	EmployeeName string    `json:"employee_name,omitempty"`
	Timestamp    time.Time `json:"timestamp"`

	Location  *LocationPayload  `json:"location,omitempty"`
	Violation *ViolationPayload `json:"violation,omitempty"`
	Alert     *AlertPayload     `json:"alert,omitempty"`
}

// Validate checks structural invariants before an event enters the channel.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event has no id")
	}
	if !knownTypes[e.Type] {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.EmployeeID == "" {
		return fmt.Errorf("event %s has no employee id", e.Type)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event %s has no timestamp", e.Type)
	}
	switch e.Type {
	case TypeLocationUpdate, TypeGeofenceEnter, TypeGeofenceExit:
		if e.Location == nil {
			return fmt.Errorf("event %s requires a location payload", e.Type)
		}
	case TypeAlertTriggered:
		if e.Alert == nil {
			return fmt.Errorf("event %s requires an alert payload", e.Type)
		}
	}
	return nil
}
