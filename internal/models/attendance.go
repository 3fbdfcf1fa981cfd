// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

// Package models defines the domain types shared across the application:
// attendance sessions, location samples, geofence violations, alerts and
// the derived live statistics projection.
package models

import (
	"time"
)

// SessionDateFormat is the calendar-day key format for attendance sessions.
const SessionDateFormat = "2006-01-02"

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocationSample is one accepted location ping. Immutable once recorded;
// appended to a session's history in capture-time order.
type LocationSample struct {
	EmployeeID         string    `json:"employee_id"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	AccuracyMeters     float64   `json:"accuracy_meters"`
	CapturedAt         time.Time `json:"captured_at"`
	DistanceFromOffice float64   `json:"distance_from_office"`
	InsideGeofence     bool      `json:"inside_geofence"`
}

// Coordinate returns the sample position as a Coordinate.
func (s *LocationSample) Coordinate() Coordinate {
	return Coordinate{Latitude: s.Latitude, Longitude: s.Longitude}
}

// GeofenceViolation is the interval during which an employee's last known
// position was outside the office perimeter. ReenteredAt is nil while the
// violation is ongoing. Violations are never deleted.
type GeofenceViolation struct {
	ID             string     `json:"id"`
	EmployeeID     string     `json:"employee_id"`
	SessionID      string     `json:"session_id"`
	ExitedAt       time.Time  `json:"exited_at"`
	ReenteredAt    *time.Time `json:"reentered_at"`
	DistanceAtExit float64    `json:"distance_at_exit"`
}

// IsOpen reports whether the employee has not yet re-entered the perimeter.
func (v *GeofenceViolation) IsOpen() bool {
	return v.ReenteredAt == nil
}

// AttendanceStatus is the human-readable status derived from session state.
type AttendanceStatus string

// Attendance statuses in ascending display precedence.
const (
	StatusAbsent    AttendanceStatus = "absent"
	StatusLate      AttendanceStatus = "late"
	StatusPresent   AttendanceStatus = "present"
	StatusCompleted AttendanceStatus = "completed"
	StatusOnLeave   AttendanceStatus = "on_leave"
)

// AttendanceSession is one employee's attendance record for one calendar
// day. It exclusively owns its location history and violation list.
type AttendanceSession struct {
	ID                  string              `json:"id"`
	EmployeeID          string              `json:"employee_id"`
	Date                string              `json:"date"` // SessionDateFormat
	StartDayTime        *time.Time          `json:"start_day_time"`
	EndDayTime          *time.Time          `json:"end_day_time"`
	IsLate              bool                `json:"is_late"`
	IsLeave             bool                `json:"is_leave"`
	LiveTrackingEnabled bool                `json:"live_tracking_enabled"`
	LocationHistory     []LocationSample    `json:"location_history"`
	Violations          []GeofenceViolation `json:"violations"`

	// LastKnownAddress is best-effort reverse-geocode decoration of the
	// most recent sample. Display only; never required for ingestion.
	LastKnownAddress *Address `json:"last_known_address,omitempty"`
}

// Status derives the display status from the stored booleans and
// timestamps. Precedence, highest first: OnLeave, Completed, then
// Late/Present for a started day, Absent otherwise. An employee who is
// both late and has completed the day displays as Completed.
func (s *AttendanceSession) Status() AttendanceStatus {
	switch {
	case s.IsLeave:
		return StatusOnLeave
	case s.EndDayTime != nil:
		return StatusCompleted
	case s.StartDayTime != nil && s.IsLate:
		return StatusLate
	case s.StartDayTime != nil:
		return StatusPresent
	default:
		return StatusAbsent
	}
}

// LastSample returns the most recent accepted sample, or nil if none.
func (s *AttendanceSession) LastSample() *LocationSample {
	if len(s.LocationHistory) == 0 {
		return nil
	}
	return &s.LocationHistory[len(s.LocationHistory)-1]
}

// OpenViolation returns the current open violation, or nil. The recorder
// guarantees at most one open violation per session.
func (s *AttendanceSession) OpenViolation() *GeofenceViolation {
	for i := len(s.Violations) - 1; i >= 0; i-- {
		if s.Violations[i].IsOpen() {
			return &s.Violations[i]
		}
	}
	return nil
}

// Archived reports whether the session is read-only (day ended). Archived
// sessions accept no new history; an open violation may still be closed by
// a late-arriving re-entry sample.
func (s *AttendanceSession) Archived() bool {
	return s.EndDayTime != nil
}

// HoursWorked returns elapsed working time in hours. For an unfinished day
// the duration runs up to now. Sessions that never started contribute zero.
func (s *AttendanceSession) HoursWorked(now time.Time) float64 {
	if s.StartDayTime == nil {
		return 0
	}
	end := now
	if s.EndDayTime != nil {
		end = *s.EndDayTime
	}
	if end.Before(*s.StartDayTime) {
		return 0
	}
	return end.Sub(*s.StartDayTime).Hours()
}

// LiveStats is the organization-wide attendance roll-up for the current
// day. It is a derived projection: always recomputed from the day's
// sessions plus the roster size, never patched incrementally.
type LiveStats struct {
	TotalEmployees    int     `json:"total_employees"`
	PresentToday      int     `json:"present_today"`
	AbsentToday       int     `json:"absent_today"`
	LateToday         int     `json:"late_today"`
	OnLeaveToday      int     `json:"on_leave_today"`
	DayStartedCount   int     `json:"day_started_count"`
	DayEndedCount     int     `json:"day_ended_count"`
	PresentPercentage int     `json:"present_percentage"`
	AvgHoursToday     float64 `json:"avg_hours_today"`
	TotalHoursToday   float64 `json:"total_hours_today"`
}

// Employee is a read-only roster entry supplied by the org-chart boundary.
type Employee struct {
	ID         string `json:"id" koanf:"id"`
	Name       string `json:"name" koanf:"name"`
	Email      string `json:"email" koanf:"email"`
	Department string `json:"department" koanf:"department"`
	Active     bool   `json:"active" koanf:"active"`
}

// Address is a best-effort human-readable location from reverse geocoding.
type Address struct {
	FullAddress string `json:"full_address"`
	Area        string `json:"area,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	Pincode     string `json:"pincode,omitempty"`
}

// EmployeeLiveView is one row of the dashboard live view: the employee,
// their derived status and enough session detail to render without a
// follow-up query.
type EmployeeLiveView struct {
	Employee        Employee            `json:"employee"`
	Status          AttendanceStatus    `json:"status"`
	StartDayTime    *time.Time          `json:"start_day_time"`
	EndDayTime      *time.Time          `json:"end_day_time"`
	TrackingEnabled bool                `json:"tracking_enabled"`
	LastSample      *LocationSample     `json:"last_sample"`
	LastAddress     *Address            `json:"last_address,omitempty"`
	OpenViolation   bool                `json:"open_violation"`
	Violations      []GeofenceViolation `json:"violations"`
}
