// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

package models

import "time"

// AlertType distinguishes operator-sent alerts from system-generated ones.
type AlertType string

// Alert types.
const (
	AlertTypeManual    AlertType = "manual"
	AlertTypeAutomatic AlertType = "automatic"
)

// AlertSeverity grades an alert for dashboard display.
type AlertSeverity string

// Alert severities.
const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// ValidSeverity reports whether s is a known severity.
func ValidSeverity(s AlertSeverity) bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// Alert is a notification routed to a target employee. Created, persisted
// and broadcast in one operation; never mutated afterwards.
type Alert struct {
	ID          string        `json:"id"`
	EmployeeID  string        `json:"employee_id"`
	Type        AlertType     `json:"type"`
	Severity    AlertSeverity `json:"severity"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	SenderID    string        `json:"sender_id,omitempty"`
	SentAt      time.Time     `json:"sent_at"`
}
