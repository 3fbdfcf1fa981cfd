// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blackholeinfiverse51/workflow-blackhole/internal/config"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("Open in-memory store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close store: %v", err)
		}
	})
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	session := &models.AttendanceSession{
		ID:                  "sess-1",
		EmployeeID:          "emp-001",
		Date:                "2026-08-29",
		StartDayTime:        &start,
		LiveTrackingEnabled: true,
	}

	if err := s.PutSession(ctx, session); err != nil {
		t.Fatalf("PutSession: %v", err)
	}

	got, err := s.GetSession(ctx, "2026-08-29", "emp-001")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.ID != session.ID || got.EmployeeID != session.EmployeeID {
		t.Errorf("got session %+v, want %+v", got, session)
	}
	if got.StartDayTime == nil || !got.StartDayTime.Equal(start) {
		t.Errorf("StartDayTime = %v, want %v", got.StartDayTime, start)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSession(context.Background(), "2026-08-29", "nobody")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GetSession for missing key = %v, want ErrSessionNotFound", err)
	}
}

func TestPutSessionReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	session := &models.AttendanceSession{ID: "sess-1", EmployeeID: "emp-001", Date: "2026-08-29"}
	if err := s.PutSession(ctx, session); err != nil {
		t.Fatalf("PutSession: %v", err)
	}

	session.IsLate = true
	if err := s.PutSession(ctx, session); err != nil {
		t.Fatalf("PutSession second write: %v", err)
	}

	got, err := s.GetSession(ctx, "2026-08-29", "emp-001")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !got.IsLate {
		t.Error("second write did not replace the document")
	}
}

func TestSessionsForDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"emp-002", "emp-001", "emp-003"} {
		if err := s.PutSession(ctx, &models.AttendanceSession{ID: "sess-" + id, EmployeeID: id, Date: "2026-08-29"}); err != nil {
			t.Fatalf("PutSession(%s): %v", id, err)
		}
	}
	// A different day must not leak into the scan.
	if err := s.PutSession(ctx, &models.AttendanceSession{ID: "sess-x", EmployeeID: "emp-001", Date: "2026-08-30"}); err != nil {
		t.Fatalf("PutSession other day: %v", err)
	}

	sessions, err := s.SessionsForDate(ctx, "2026-08-29")
	if err != nil {
		t.Fatalf("SessionsForDate: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("got %d sessions, want 3", len(sessions))
	}
	// Keys are scanned in order, so employee IDs come back sorted.
	want := []string{"emp-001", "emp-002", "emp-003"}
	for i, session := range sessions {
		if session.EmployeeID != want[i] {
			t.Errorf("sessions[%d].EmployeeID = %s, want %s", i, session.EmployeeID, want[i])
		}
	}
}

func TestAlertsForEmployeeOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a-1", "a-2", "a-3"} {
		alert := &models.Alert{
			ID:         id,
			EmployeeID: "emp-001",
			Severity:   models.SeverityWarning,
			Title:      "t",
			SentAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.PutAlert(ctx, alert); err != nil {
			t.Fatalf("PutAlert(%s): %v", id, err)
		}
	}

	alerts, err := s.AlertsForEmployee(ctx, "emp-001")
	if err != nil {
		t.Fatalf("AlertsForEmployee: %v", err)
	}
	if len(alerts) != 3 {
		t.Fatalf("got %d alerts, want 3", len(alerts))
	}
	for i, want := range []string{"a-1", "a-2", "a-3"} {
		if alerts[i].ID != want {
			t.Errorf("alerts[%d].ID = %s, want %s", i, alerts[i].ID, want)
		}
	}
}

func TestPersistenceSentinel(t *testing.T) {
	err := wrapPersistence("test op", errors.New("disk gone"))
	if !errors.Is(err, ErrPersistence) {
		t.Error("wrapped error does not match ErrPersistence")
	}
}
