// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

package tracking

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

// Test geometry: office at the origin with a 100m radius. One degree of
// latitude is about 111km, so 0.0005 deg (~56m) is inside and 0.002 deg
// (~222m) is outside.
const (
	insideLat  = 0.0005
	outsideLat = 0.002
)

// recordingPublisher captures published events for assertions.
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

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type fixture struct {
	svc *Service
	pub *recordingPublisher
	now time.Time
}

func testConfig() *config.Config {
	return &config.Config{
		Office: config.OfficeConfig{
			Latitude:             0,
			Longitude:            0,
			GeofenceRadiusMeters: 100,
		},
		Tracking: config.TrackingConfig{
			MaxAccuracyMeters:  100,
			ClockSkewTolerance: time.Minute,
			LateCutoff:         "09:15",
			HoursPrecision:     1,
			ObserverBuffer:     16,
		},
		Geocode: config.GeocodeConfig{Enabled: false},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.Open(config.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	directory, err := roster.New([]models.Employee{
		{ID: "emp-001", Name: "Asha Verma", Department: "Field Ops", Active: true},
		{ID: "emp-002", Name: "Ravi Iyer", Department: "Field Ops", Active: true},
		{ID: "emp-003", Name: "Meera Nair", Department: "Sales", Active: true},
		{ID: "emp-999", Name: "Gone Person", Department: "Sales", Active: false},
	})
	if err != nil {
		t.Fatalf("build roster: %v", err)
	}

	pub := &recordingPublisher{}
	f := &fixture{
		pub: pub,
		now: time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
	}
	f.svc = New(testConfig(), st, directory, pub, nil)
	f.svc.now = func() time.Time { return f.now }
	return f
}

// advance moves the fixture clock forward.
func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) sample(employeeID string, lat float64, capturedAt time.Time) RawSample {
	return RawSample{
		EmployeeID:     employeeID,
		Latitude:       lat,
		Longitude:      0,
		AccuracyMeters: 10,
		CapturedAt:     capturedAt,
	}
}

func TestStartDayOnTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.StartDay(ctx, "emp-001")
	if err != nil {
		t.Fatalf("StartDay: %v", err)
	}
	if session.IsLate {
		t.Error("start at 09:00 with 09:15 cutoff marked late")
	}
	if !session.LiveTrackingEnabled {
		t.Error("StartDay did not enable tracking")
	}
	if session.Status() != models.StatusPresent {
		t.Errorf("Status = %s, want %s", session.Status(), models.StatusPresent)
	}
	if got := f.pub.types(); len(got) != 1 || got[0] != events.TypeTrackingStarted {
		t.Errorf("published %v, want [tracking-started]", got)
	}
}

func TestStartDayLate(t *testing.T) {
	f := newFixture(t)
	f.now = time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)

	session, err := f.svc.StartDay(context.Background(), "emp-001")
	if err != nil {
		t.Fatalf("StartDay: %v", err)
	}
	if !session.IsLate {
		t.Error("start at 09:30 with 09:15 cutoff not marked late")
	}
	if session.Status() != models.StatusLate {
		t.Errorf("Status = %s, want %s", session.Status(), models.StatusLate)
	}
}

func TestStartDayExactlyAtCutoff(t *testing.T) {
	f := newFixture(t)
	f.now = time.Date(2026, 8, 29, 9, 15, 0, 0, time.UTC)

	session, err := f.svc.StartDay(context.Background(), "emp-001")
	if err != nil {
		t.Fatalf("StartDay: %v", err)
	}
	// Lateness requires strictly after the cutoff.
	if session.IsLate {
		t.Error("start exactly at the cutoff marked late")
	}
}

func TestStartDayRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StartDay(ctx, "ghost"); !errors.Is(err, roster.ErrUnknownEmployee) {
		t.Errorf("StartDay unknown employee = %v, want ErrUnknownEmployee", err)
	}

	if _, err := f.svc.StartDay(ctx, "emp-001"); err != nil {
		t.Fatalf("first StartDay: %v", err)
	}
	if _, err := f.svc.StartDay(ctx, "emp-001"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("second StartDay = %v, want ErrInvalidStateTransition", err)
	}

	if _, err := f.svc.MarkLeave(ctx, "emp-002"); err != nil {
		t.Fatalf("MarkLeave: %v", err)
	}
	if _, err := f.svc.StartDay(ctx, "emp-002"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("StartDay while on leave = %v, want ErrInvalidStateTransition", err)
	}
}

func TestInactiveEmployeeCannotSkewStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// emp-999 is on the roster but inactive: every command is rejected.
	if _, err := f.svc.StartDay(ctx, "emp-999"); !errors.Is(err, roster.ErrUnknownEmployee) {
		t.Fatalf("StartDay for inactive employee = %v, want ErrUnknownEmployee", err)
	}
	if _, err := f.svc.MarkLeave(ctx, "emp-999"); !errors.Is(err, roster.ErrUnknownEmployee) {
		t.Errorf("MarkLeave for inactive employee = %v, want ErrUnknownEmployee", err)
	}
	if _, err := f.svc.Ingest(ctx, f.sample("emp-999", insideLat, f.now)); !errors.Is(err, roster.ErrUnknownEmployee) {
		t.Errorf("Ingest for inactive employee = %v, want ErrUnknownEmployee", err)
	}

	if _, err := f.svc.StartDay(ctx, "emp-001"); err != nil {
		t.Fatalf("StartDay: %v", err)
	}

	stats, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalEmployees != 3 || stats.PresentToday != 1 {
		t.Errorf("total/present = %d/%d, want 3/1", stats.TotalEmployees, stats.PresentToday)
	}
	if sum := stats.PresentToday + stats.AbsentToday + stats.OnLeaveToday; sum != stats.TotalEmployees {
		t.Errorf("present+absent+leave = %d, want %d", sum, stats.TotalEmployees)
	}
	if stats.PresentPercentage < 0 || stats.PresentPercentage > 100 {
		t.Errorf("PresentPercentage = %d, outside [0,100]", stats.PresentPercentage)
	}
}

func TestEndDayLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.EndDay(ctx, "emp-001"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("EndDay before start = %v, want ErrInvalidStateTransition", err)
	}

	if _, err := f.svc.StartDay(ctx, "emp-001"); err != nil {
		t.Fatalf("StartDay: %v", err)
	}

	f.advance(8 * time.Hour)
	session, err := f.svc.EndDay(ctx, "emp-001")
	if err != nil {
		t.Fatalf("EndDay: %v", err)
	}
	if session.LiveTrackingEnabled {
		t.Error("EndDay left tracking enabled")
	}
	if session.Status() != models.StatusCompleted {
		t.Errorf("Status = %s, want %s", session.Status(), models.StatusCompleted)
	}

	if _, err := f.svc.EndDay(ctx, "emp-001"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("second EndDay = %v, want ErrInvalidStateTransition", err)
	}
}

func TestMarkLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.svc.MarkLeave(ctx, "emp-001")
	if err != nil {
		t.Fatalf("MarkLeave: %v", err)
	}
	if session.Status() != models.StatusOnLeave {
		t.Errorf("Status = %s, want %s", session.Status(), models.StatusOnLeave)
	}
	if session.LiveTrackingEnabled {
		t.Error("leave session has tracking enabled")
	}

	if _, err := f.svc.MarkLeave(ctx, "emp-001"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("second MarkLeave = %v, want ErrInvalidStateTransition", err)
	}
}

func TestStopTrackingIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// No session at all: still a no-op.
	if err := f.svc.StopTracking(ctx, "emp-001"); err != nil {
		t.Fatalf("StopTracking without session: %v", err)
	}

	if _, err := f.svc.StartDay(ctx, "emp-001"); err != nil {
		t.Fatalf("StartDay: %v", err)
	}
	if err := f.svc.StopTracking(ctx, "emp-001"); err != nil {
		t.Fatalf("StopTracking: %v", err)
	}
	if err := f.svc.StopTracking(ctx, "emp-001"); err != nil {
		t.Fatalf("repeated StopTracking: %v", err)
	}

	// Tracking off means samples are rejected, but the day is still open.
	f.advance(time.Minute)
	_, err := f.svc.Ingest(ctx, f.sample("emp-001", insideLat, f.now))
	if !errors.Is(err, ErrInvalidSample) {
		t.Errorf("Ingest after StopTracking = %v, want ErrInvalidSample", err)
	}
}

func TestIngestRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StartDay(ctx, "emp-001"); err != nil {
		t.Fatalf("StartDay: %v", err)
	}
	f.pub.reset()
	f.advance(5 * time.Minute)

	t.Run("unknown employee", func(t *testing.T) {
		_, err := f.svc.Ingest(ctx, f.sample("ghost", insideLat, f.now))
		if !errors.Is(err, roster.ErrUnknownEmployee) {
			t.Errorf("got %v, want ErrUnknownEmployee", err)
		}
	})

	t.Run("coordinate out of range", func(t *testing.T) {
		_, err := f.svc.Ingest(ctx, f.sample("emp-001", 91, f.now))
		if !errors.Is(err, ErrInvalidSample) {
			t.Errorf("got %v, want ErrInvalidSample", err)
		}
	})

	t.Run("future capture", func(t *testing.T) {
		_, err := f.svc.Ingest(ctx, f.sample("emp-001", insideLat, f.now.Add(2*time.Minute)))
		if !errors.Is(err, ErrInvalidSample) {
			t.Errorf("got %v, want ErrInvalidSample", err)
		}
	})

	t.Run("within clock skew tolerance", func(t *testing.T) {
		result, err := f.svc.Ingest(ctx, f.sample("emp-001", insideLat, f.now.Add(30*time.Second)))
		if err != nil {
			t.Fatalf("sample within tolerance rejected: %v", err)
		}
		if !result.Sample.InsideGeofence {
			t.Error("inside sample evaluated as outside")
		}
	})

	t.Run("poor accuracy", func(t *testing.T) {
		raw := f.sample("emp-001", insideLat, f.now.Add(time.Minute))
		raw.AccuracyMeters = 250
		if _, err := f.svc.Ingest(ctx, raw); !errors.Is(err, ErrInvalidSample) {
			t.Errorf("got %v, want ErrInvalidSample", err)
		}
	})

	t.Run("no session", func(t *testing.T) {
		_, err := f.svc.Ingest(ctx, f.sample("emp-002", insideLat, f.now))
		if !errors.Is(err, ErrInvalidSample) {
			t.Errorf("got %v, want ErrInvalidSample", err)
		}
	})

	t.Run("out of order", func(t *testing.T) {
		// Last accepted sample was at now+30s; equal timestamps are also rejected.
		_, err := f.svc.Ingest(ctx, f.sample("emp-001", insideLat, f.now.Add(30*time.Second)))
		if !errors.Is(err, ErrInvalidSample) {
			t.Errorf("duplicate timestamp accepted: %v", err)
		}
		_, err = f.svc.Ingest(ctx, f.sample("emp-001", insideLat, f.now.Add(-time.Hour)))
		if !errors.Is(err, ErrInvalidSample) {
			t.Errorf("stale timestamp accepted: %v", err)
		}
	})
}

func TestRejectedSampleLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StartDay(ctx, "emp-001"); err != nil {
		t.Fatalf("StartDay: %v", err)
	}
	f.pub.reset()

	raw := f.sample("emp-001", insideLat, f.now.Add(time.Minute))
	raw.AccuracyMeters = 500
	if _, err := f.svc.Ingest(ctx, raw); err == nil {
		t.Fatal("expected rejection")
	}

	if got := f.pub.types(); len(got) != 0 {
		t.Errorf("rejected sample published events: %v", got)
	}

	rows, _, err := f.svc.LiveView(ctx, LiveFilter{})
	if err != nil {
		t.Fatalf("LiveView: %v", err)
	}
	for _, row := range rows {
		if row.Employee.ID == "emp-001" && row.LastSample != nil {
			t.Error("rejected sample appeared in history")
		}
	}
}

// TestGeofenceDayScenario walks one full working day: on-time start, an
// inside ping, an exit that opens a violation, a second outside ping that
// must not open another, re-entry that closes it, and day end.
func TestGeofenceDayScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StartDay(ctx, "emp-001"); err != nil {
		t.Fatalf("StartDay: %v", err)
	}
	f.pub.reset()

	// 09:05 inside.
	f.advance(5 * time.Minute)
	result, err := f.svc.Ingest(ctx, f.sample("emp-001", insideLat, f.now))
	if err != nil {
		t.Fatalf("inside sample: %v", err)
	}
	if result.Exited || result.Reentered {
		t.Error("first inside sample reported a transition")
	}

	// 09:30 outside: exit, violation opens.
	f.advance(25 * time.Minute)
	result, err = f.svc.Ingest(ctx, f.sample("emp-001", outsideLat, f.now))
	if err != nil {
		t.Fatalf("outside sample: %v", err)
	}
	if !result.Exited {
		t.Fatal("exit transition not detected")
	}
	open := result.Session.OpenViolation()
	if open == nil {
		t.Fatal("no open violation after exit")
	}
	if !open.ExitedAt.Equal(f.now) {
		t.Errorf("ExitedAt = %v, want %v", open.ExitedAt, f.now)
	}
	if open.DistanceAtExit <= 100 {
		t.Errorf("DistanceAtExit = %v, want > 100", open.DistanceAtExit)
	}
	firstViolationID := open.ID

	// 09:45 still outside: no transition, no second violation.
	f.advance(15 * time.Minute)
	result, err = f.svc.Ingest(ctx, f.sample("emp-001", outsideLat+0.001, f.now))
	if err != nil {
		t.Fatalf("second outside sample: %v", err)
	}
	if result.Exited || result.Reentered {
		t.Error("outside-to-outside sample reported a transition")
	}
	if len(result.Session.Violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(result.Session.Violations))
	}

	// 10:00 back inside: violation closes.
	f.advance(15 * time.Minute)
	result, err = f.svc.Ingest(ctx, f.sample("emp-001", insideLat, f.now))
	if err != nil {
		t.Fatalf("re-entry sample: %v", err)
	}
	if !result.Reentered {
		t.Fatal("re-entry transition not detected")
	}
	if result.Session.OpenViolation() != nil {
		t.Error("violation still open after re-entry")
	}
	closed := result.Session.Violations[0]
	if closed.ID != firstViolationID {
		t.Error("re-entry closed a different violation")
	}
	if closed.ReenteredAt == nil || !closed.ReenteredAt.Equal(f.now) {
		t.Errorf("ReenteredAt = %v, want %v", closed.ReenteredAt, f.now)
	}

	// 17:00 end day.
	f.now = time.Date(2026, 8, 29, 17, 0, 0, 0, time.UTC)
	session, err := f.svc.EndDay(ctx, "emp-001")
	if err != nil {
		t.Fatalf("EndDay: %v", err)
	}
	if session.Status() != models.StatusCompleted {
		t.Errorf("final status = %s, want completed", session.Status())
	}
	if got := session.HoursWorked(f.now); got != 8 {
		t.Errorf("HoursWorked = %v, want 8", got)
	}

	want := []events.Type{
		events.TypeLocationUpdate,
		events.TypeLocationUpdate, events.TypeGeofenceExit,
		events.TypeLocationUpdate,
		events.TypeLocationUpdate, events.TypeGeofenceEnter,
	}
	got := f.pub.types()
	if len(got) != len(want) {
		t.Fatalf("published %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFirstSampleOutsideOpensViolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StartDay(ctx, "emp-001"); err != nil {
		t.Fatalf("StartDay: %v", err)
	}

	f.advance(time.Minute)
	result, err := f.svc.Ingest(ctx, f.sample("emp-001", outsideLat, f.now))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !result.Exited {
		t.Error("first outside sample did not register as an exit")
	}
	if result.Session.OpenViolation() == nil {
		t.Error("first outside sample did not open a violation")
	}
}

func TestArchivedSessionCloseViolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StartDay(ctx, "emp-001"); err != nil {
		t.Fatalf("StartDay: %v", err)
	}

	f.advance(time.Minute)
	if _, err := f.svc.Ingest(ctx, f.sample("emp-001", outsideLat, f.now)); err != nil {
		t.Fatalf("outside sample: %v", err)
	}

	f.advance(time.Minute)
	if _, err := f.svc.EndDay(ctx, "emp-001"); err != nil {
		t.Fatalf("EndDay: %v", err)
	}

	// An outside sample after archival is rejected outright.
	f.advance(time.Minute)
	if _, err := f.svc.Ingest(ctx, f.sample("emp-001", outsideLat, f.now)); !errors.Is(err, ErrInvalidSample) {
		t.Errorf("outside sample into archived session = %v, want ErrInvalidSample", err)
	}

	// A re-delivered inside sample captured before the exit must not close
	// the violation backwards in time.
	stale := f.now.Add(-10 * time.Minute)
	if _, err := f.svc.Ingest(ctx, f.sample("emp-001", insideLat, stale)); !errors.Is(err, ErrInvalidSample) {
		t.Errorf("stale inside sample into archived session = %v, want ErrInvalidSample", err)
	}

	// An inside sample may still close the open violation, without
	// touching history.
	f.advance(time.Minute)
	result, err := f.svc.Ingest(ctx, f.sample("emp-001", insideLat, f.now))
	if err != nil {
		t.Fatalf("re-entry into archived session: %v", err)
	}
	if !result.Reentered {
		t.Error("archived re-entry not flagged")
	}
	if result.Session.OpenViolation() != nil {
		t.Error("violation still open")
	}
	closed := result.Session.Violations[0]
	if closed.ReenteredAt == nil || !closed.ReenteredAt.After(closed.ExitedAt) {
		t.Errorf("violation interval %v to %v runs backwards", closed.ExitedAt, closed.ReenteredAt)
	}
	if len(result.Session.LocationHistory) != 1 {
		t.Errorf("archived session history grew to %d samples", len(result.Session.LocationHistory))
	}

	// With no open violation left, even inside samples are rejected.
	f.advance(time.Minute)
	if _, err := f.svc.Ingest(ctx, f.sample("emp-001", insideLat, f.now)); !errors.Is(err, ErrInvalidSample) {
		t.Errorf("inside sample into fully closed session = %v, want ErrInvalidSample", err)
	}
}

func TestPerEmployeeIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{"emp-001", "emp-002"} {
		if _, err := f.svc.StartDay(ctx, id); err != nil {
			t.Fatalf("StartDay(%s): %v", id, err)
		}
	}

	f.advance(time.Minute)
	if _, err := f.svc.Ingest(ctx, f.sample("emp-001", outsideLat, f.now)); err != nil {
		t.Fatalf("emp-001 sample: %v", err)
	}

	rows, _, err := f.svc.LiveView(ctx, LiveFilter{})
	if err != nil {
		t.Fatalf("LiveView: %v", err)
	}
	for _, row := range rows {
		switch row.Employee.ID {
		case "emp-001":
			if !row.OpenViolation {
				t.Error("emp-001 should have an open violation")
			}
		case "emp-002":
			if row.OpenViolation || row.LastSample != nil {
				t.Error("emp-002 state leaked from emp-001")
			}
		}
	}
}

func TestConcurrentIngestSerialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StartDay(ctx, "emp-001"); err != nil {
		t.Fatalf("StartDay: %v", err)
	}

	base := f.now
	var wg sync.WaitGroup
	accepted := make(chan struct{}, 50)
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw := f.sample("emp-001", insideLat, base.Add(time.Duration(i)*time.Second))
			if _, err := f.svc.Ingest(ctx, raw); err == nil {
				accepted <- struct{}{}
			}
		}(i)
	}
	wg.Wait()
	close(accepted)

	var n int
	for range accepted {
		n++
	}
	if n == 0 {
		t.Fatal("no samples accepted")
	}

	// However the races resolved, recorded history must be strictly
	// increasing in capture time.
	rows, _, err := f.svc.LiveView(ctx, LiveFilter{})
	if err != nil {
		t.Fatalf("LiveView: %v", err)
	}
	for _, row := range rows {
		if row.Employee.ID != "emp-001" {
			continue
		}
		if len(row.Violations) != 0 {
			t.Errorf("inside-only samples produced violations: %d", len(row.Violations))
		}
	}
}
