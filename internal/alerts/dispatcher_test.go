// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blackholeinfiverse51/workflow-blackhole/internal/config"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/events"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/models"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/roster"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/store"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *recordingPublisher) {
	t.Helper()

	st, err := store.Open(config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	directory, err := roster.New([]models.Employee{
		{ID: "emp-001", Name: "Asha Verma", Active: true},
	})
	if err != nil {
		t.Fatalf("build roster: %v", err)
	}

	pub := &recordingPublisher{}
	return NewDispatcher(st, directory, pub), pub
}

func TestSendAlert(t *testing.T) {
	d, pub := newTestDispatcher(t)

	alert, err := d.Send(context.Background(), SendRequest{
		EmployeeID:  "emp-001",
		Severity:    models.SeverityCritical,
		Title:       "Return to site",
		Description: "You have been outside the perimeter for 30 minutes.",
		SenderID:    "admin-1",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if alert.ID == "" || alert.SentAt.IsZero() {
		t.Errorf("alert missing identity: %+v", alert)
	}
	if alert.Type != models.AlertTypeManual {
		t.Errorf("Type = %s, want manual default", alert.Type)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	event := pub.events[0]
	if event.Type != events.TypeAlertTriggered {
		t.Errorf("event type = %s, want alert-triggered", event.Type)
	}
	if event.Alert == nil || event.Alert.AlertID != alert.ID {
		t.Errorf("event alert payload = %+v", event.Alert)
	}
	if event.EmployeeName != "Asha Verma" {
		t.Errorf("event employee name = %s", event.EmployeeName)
	}
}

func TestSendDefaultsSeverityToWarning(t *testing.T) {
	d, _ := newTestDispatcher(t)

	alert, err := d.Send(context.Background(), SendRequest{
		EmployeeID:  "emp-001",
		Description: "Check in please.",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if alert.Severity != models.SeverityWarning {
		t.Errorf("Severity = %s, want warning", alert.Severity)
	}
}

func TestSendRejections(t *testing.T) {
	d, pub := newTestDispatcher(t)
	ctx := context.Background()

	if _, err := d.Send(ctx, SendRequest{EmployeeID: "ghost", Description: "x"}); !errors.Is(err, roster.ErrUnknownEmployee) {
		t.Errorf("unknown employee = %v, want ErrUnknownEmployee", err)
	}

	if _, err := d.Send(ctx, SendRequest{EmployeeID: "emp-001", Title: "  ", Description: "\t"}); !errors.Is(err, ErrEmptyAlertBody) {
		t.Errorf("blank body = %v, want ErrEmptyAlertBody", err)
	}

	// A title alone is not a body; the description carries the message.
	if _, err := d.Send(ctx, SendRequest{EmployeeID: "emp-001", Title: "Admin Alert"}); !errors.Is(err, ErrEmptyAlertBody) {
		t.Errorf("title without description = %v, want ErrEmptyAlertBody", err)
	}

	if _, err := d.Send(ctx, SendRequest{EmployeeID: "emp-001", Description: "x", Severity: "shouting"}); !errors.Is(err, ErrInvalidSeverity) {
		t.Errorf("bad severity = %v, want ErrInvalidSeverity", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 0 {
		t.Errorf("rejected alerts published events: %d", len(pub.events))
	}
}

func TestHistory(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	// Deterministic send times so key order matches send order.
	ts := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}

	for _, title := range []string{"first", "second"} {
		if _, err := d.Send(ctx, SendRequest{EmployeeID: "emp-001", Title: title, Description: title + " message"}); err != nil {
			t.Fatalf("Send(%s): %v", title, err)
		}
	}

	history, err := d.History(ctx, "emp-001")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d alerts, want 2", len(history))
	}
	if history[0].Title != "first" || history[1].Title != "second" {
		t.Errorf("history out of order: %s, %s", history[0].Title, history[1].Title)
	}

	if _, err := d.History(ctx, "ghost"); !errors.Is(err, roster.ErrUnknownEmployee) {
		t.Errorf("History unknown employee = %v", err)
	}
}
