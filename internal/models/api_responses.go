// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

package models

import "time"

// APIResponse is the envelope for all JSON API responses.
//
// Success:
//
//	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}
//
// Error:
//
//	{"status": "error", "data": null,
//	 "error": {"code": "INVALID_SAMPLE", "message": "..."},
//	 "metadata": {"timestamp": "..."}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a structured error body with a machine-readable code.
//
// Codes used by this API: VALIDATION_ERROR, INVALID_SAMPLE,
// INVALID_STATE_TRANSITION, UNKNOWN_EMPLOYEE, EMPTY_ALERT_BODY,
// PERSISTENCE_ERROR, NOT_FOUND, METHOD_NOT_ALLOWED, RATE_LIMIT_EXCEEDED,
// INTERNAL_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// LiveViewResponse is the payload of the live view query: the filtered
// per-employee rows plus the organization-wide statistics roll-up.
type LiveViewResponse struct {
	Employees []EmployeeLiveView `json:"employees"`
	Stats     LiveStats          `json:"stats"`
}
