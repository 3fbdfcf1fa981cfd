// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

package tracking

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/blackholeinfiverse51/workflow-blackhole/internal/models"
)

// LiveFilter narrows the dashboard live view. Zero values match all.
type LiveFilter struct {
	Department string
	Status     models.AttendanceStatus
}

// LiveView returns one row per active roster employee plus the
// organization-wide statistics for today. The filter applies to the rows
// only; statistics always cover the whole roster so the dashboard header
// stays consistent regardless of filtering.
func (s *Service) LiveView(ctx context.Context, filter LiveFilter) ([]models.EmployeeLiveView, *models.LiveStats, error) {
	now := s.now()
	date := now.Format(models.SessionDateFormat)

	sessions, err := s.store.SessionsForDate(ctx, date)
	if err != nil {
		return nil, nil, err
	}

	byEmployee := make(map[string]*models.AttendanceSession, len(sessions))
	for _, session := range sessions {
		byEmployee[session.EmployeeID] = session
	}

	stats := s.computeStats(sessions, now)

	var rows []models.EmployeeLiveView
	for _, employee := range s.roster.List() {
		if !employee.Active {
			continue
		}
		if filter.Department != "" && employee.Department != filter.Department {
			continue
		}

		row := models.EmployeeLiveView{
			Employee: employee,
			Status:   models.StatusAbsent,
		}
		if session, ok := byEmployee[employee.ID]; ok {
			row.Status = session.Status()
			row.StartDayTime = session.StartDayTime
			row.EndDayTime = session.EndDayTime
			row.TrackingEnabled = session.LiveTrackingEnabled
			row.LastSample = session.LastSample()
			row.LastAddress = session.LastKnownAddress
			row.OpenViolation = session.OpenViolation() != nil
			row.Violations = session.Violations
		}
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		rows = append(rows, row)
	}

	return rows, stats, nil
}

// Stats recomputes today's organization-wide statistics from scratch.
// Always a full recompute over the day's sessions; never patched
// incrementally, so a crash or missed event can never skew the numbers.
func (s *Service) Stats(ctx context.Context) (*models.LiveStats, error) {
	now := s.now()
	sessions, err := s.store.SessionsForDate(ctx, now.Format(models.SessionDateFormat))
	if err != nil {
		return nil, err
	}
	return s.computeStats(sessions, now), nil
}

func (s *Service) computeStats(sessions []*models.AttendanceSession, now time.Time) *models.LiveStats {
	stats := &models.LiveStats{
		TotalEmployees: s.roster.ActiveCount(),
	}

	var totalHours float64
	var workedCount int

	for _, session := range sessions {
		if session.IsLeave {
			stats.OnLeaveToday++
			continue
		}
		if session.StartDayTime != nil {
			stats.PresentToday++
			stats.DayStartedCount++
			if session.IsLate {
				stats.LateToday++
			}
			totalHours += session.HoursWorked(now)
			workedCount++
		}
		if session.EndDayTime != nil {
			stats.DayEndedCount++
		}
	}

	stats.AbsentToday = stats.TotalEmployees - stats.PresentToday - stats.OnLeaveToday
	if stats.AbsentToday < 0 {
		stats.AbsentToday = 0
	}

	if stats.TotalEmployees > 0 {
		stats.PresentPercentage = int(math.Round(float64(stats.PresentToday) / float64(stats.TotalEmployees) * 100))
	}

	precision := s.cfg.Tracking.HoursPrecision
	stats.TotalHoursToday = roundTo(totalHours, precision)
	if workedCount > 0 {
		stats.AvgHoursToday = roundTo(totalHours/float64(workedCount), precision)
	}

	return stats
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}

// ExportCSV writes today's attendance report for every active employee.
// Column layout mirrors the dashboard table so the export opens cleanly
// in a spreadsheet.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	now := s.now()
	date := now.Format(models.SessionDateFormat)

	sessions, err := s.store.SessionsForDate(ctx, date)
	if err != nil {
		return err
	}
	byEmployee := make(map[string]*models.AttendanceSession, len(sessions))
	for _, session := range sessions {
		byEmployee[session.EmployeeID] = session
	}

	cw := csv.NewWriter(w)
	header := []string{
		"employee_id", "name", "email", "department", "date", "status",
		"start_time", "end_time", "hours_worked", "samples", "violations", "open_violation",
		"location_available",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	precision := s.cfg.Tracking.HoursPrecision
	for _, employee := range s.roster.List() {
		if !employee.Active {
			continue
		}

		row := []string{employee.ID, employee.Name, employee.Email, employee.Department, date, string(models.StatusAbsent), "", "", "0", "0", "0", "false", "false"}
		if session, ok := byEmployee[employee.ID]; ok {
			row[5] = string(session.Status())
			if session.StartDayTime != nil {
				row[6] = session.StartDayTime.Format(time.RFC3339)
			}
			if session.EndDayTime != nil {
				row[7] = session.EndDayTime.Format(time.RFC3339)
			}
			row[8] = strconv.FormatFloat(roundTo(session.HoursWorked(now), precision), 'f', -1, 64)
			row[9] = strconv.Itoa(len(session.LocationHistory))
			row[10] = strconv.Itoa(len(session.Violations))
			row[11] = strconv.FormatBool(session.OpenViolation() != nil)
			row[12] = strconv.FormatBool(session.LastSample() != nil)
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
