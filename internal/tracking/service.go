// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

// Package tracking is the attendance core: sample ingestion, geofence
// evaluation, violation lifecycle, the day state machine and the live
// statistics projection.
//
// Every mutation for one employee is serialized through a per-employee
// lock, persisted first and only then published. Observers therefore
// never see an event for state that was not durably recorded.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/blackholeinfiverse51/workflow-blackhole/internal/config"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/events"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/geo"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/logging"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/metrics"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/models"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/roster"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/store"
)

// Geocoder decorates coordinates with a best-effort address. It never
// fails; nil disables enrichment entirely.
type Geocoder interface {
	Resolve(ctx context.Context, lat, lon float64) *models.Address
}

// RawSample is an unvalidated location ping as received from a device.
type RawSample struct {
	EmployeeID     string    `json:"employee_id" validate:"required"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters" validate:"gte=0"`
	CapturedAt     time.Time `json:"captured_at" validate:"required"`
}

// IngestResult describes what an accepted sample did to the session.
type IngestResult struct {
	Sample  models.LocationSample     `json:"sample"`
	Session *models.AttendanceSession `json:"session"`

	// Exited and Reentered flag a geofence membership transition caused
	// by this sample. At most one of them is set.
	Exited    bool `json:"exited"`
	Reentered bool `json:"reentered"`
}

// Service owns all attendance state transitions.
type Service struct {
	cfg       *config.Config
	store     *store.Store
	roster    *roster.Directory
	publisher events.Publisher
	geocoder  Geocoder
	validate  *validator.Validate
	locks     *keyedMutex

	// now is replaceable by tests for deterministic clocks.
	now func() time.Time
}

// New creates the tracking service. geocoder may be nil.
func New(cfg *config.Config, st *store.Store, dir *roster.Directory, pub events.Publisher, geocoder Geocoder) *Service {
	return &Service{
		cfg:       cfg,
		store:     st,
		roster:    dir,
		publisher: pub,
		geocoder:  geocoder,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// officeCoordinate returns the configured office reference point.
func (s *Service) officeCoordinate() models.Coordinate {
	return models.Coordinate{
		Latitude:  s.cfg.Office.Latitude,
		Longitude: s.cfg.Office.Longitude,
	}
}

// Ingest validates and records one location sample, evaluates the
// geofence, updates the violation lifecycle and publishes the resulting
// events. Rejected samples leave no trace beyond a metric and a log line.
func (s *Service) Ingest(ctx context.Context, raw RawSample) (*IngestResult, error) {
	if err := s.validate.Struct(raw); err != nil {
		metrics.SamplesRejected.WithLabelValues("fields").Inc()
		return nil, invalidSample("missing required fields", err)
	}

	employee, err := s.roster.Resolve(raw.EmployeeID)
	if err != nil {
		metrics.SamplesRejected.WithLabelValues("unknown_employee").Inc()
		return nil, err
	}

	unlock := s.locks.lock(raw.EmployeeID)
	defer unlock()

	if err := geo.Validate(models.Coordinate{Latitude: raw.Latitude, Longitude: raw.Longitude}); err != nil {
		metrics.SamplesRejected.WithLabelValues("coordinates").Inc()
		return nil, invalidSample("coordinate out of range", err)
	}

	now := s.now()
	if raw.CapturedAt.After(now.Add(s.cfg.Tracking.ClockSkewTolerance)) {
		metrics.SamplesRejected.WithLabelValues("future").Inc()
		return nil, invalidSample(fmt.Sprintf("captured_at %s is in the future", raw.CapturedAt.Format(time.RFC3339)), nil)
	}

	if raw.AccuracyMeters > s.cfg.Tracking.MaxAccuracyMeters {
		metrics.SamplesRejected.WithLabelValues("accuracy").Inc()
		return nil, invalidSample(fmt.Sprintf("accuracy %.1fm exceeds limit %.1fm", raw.AccuracyMeters, s.cfg.Tracking.MaxAccuracyMeters), nil)
	}

	date := raw.CapturedAt.Format(models.SessionDateFormat)
	session, err := s.store.GetSession(ctx, date, raw.EmployeeID)
	if errors.Is(err, store.ErrSessionNotFound) {
		metrics.SamplesRejected.WithLabelValues("no_session").Inc()
		return nil, invalidSample("no attendance session for "+date, nil)
	}
	if err != nil {
		return nil, err
	}

	if last := session.LastSample(); last != nil && !raw.CapturedAt.After(last.CapturedAt) {
		metrics.SamplesRejected.WithLabelValues("out_of_order").Inc()
		return nil, invalidSample("captured_at not after last recorded sample", nil)
	}

	distance, err := geo.Distance(models.Coordinate{Latitude: raw.Latitude, Longitude: raw.Longitude}, s.officeCoordinate())
	if err != nil {
		metrics.SamplesRejected.WithLabelValues("coordinates").Inc()
		return nil, invalidSample("coordinate out of range", err)
	}
	inside := geo.InsidePerimeter(distance, s.cfg.Office.GeofenceRadiusMeters)

	sample := models.LocationSample{
		EmployeeID:         raw.EmployeeID,
		Latitude:           raw.Latitude,
		Longitude:          raw.Longitude,
		AccuracyMeters:     raw.AccuracyMeters,
		CapturedAt:         raw.CapturedAt,
		DistanceFromOffice: distance,
		InsideGeofence:     inside,
	}

	if session.Archived() {
		return s.ingestIntoArchived(ctx, employee, session, sample)
	}

	if !session.LiveTrackingEnabled {
		metrics.SamplesRejected.WithLabelValues("tracking_disabled").Inc()
		return nil, invalidSample("live tracking is disabled for this session", nil)
	}

	// Membership before any sample defaults to inside: the perimeter is
	// where a working day is expected to begin.
	prevInside := true
	if last := session.LastSample(); last != nil {
		prevInside = last.InsideGeofence
	}

	session.LocationHistory = append(session.LocationHistory, sample)

	result := &IngestResult{Sample: sample, Session: session}
	var violation *models.GeofenceViolation

	switch {
	case prevInside && !inside:
		result.Exited = true
		if open := session.OpenViolation(); open != nil {
			// Keep the existing violation authoritative; log and move on.
			logging.Warn().
				Str("employee_id", raw.EmployeeID).
				Str("violation_id", open.ID).
				Msg(ErrViolationAlreadyOpen.Error())
			violation = open
		} else {
			session.Violations = append(session.Violations, models.GeofenceViolation{
				ID:             uuid.New().String(),
				EmployeeID:     raw.EmployeeID,
				SessionID:      session.ID,
				ExitedAt:       raw.CapturedAt,
				DistanceAtExit: distance,
			})
			violation = &session.Violations[len(session.Violations)-1]
		}

	case !prevInside && inside:
		result.Reentered = true
		if open := session.OpenViolation(); open != nil {
			t := raw.CapturedAt
			open.ReenteredAt = &t
			violation = open
		}
	}

	if err := s.store.PutSession(ctx, session); err != nil {
		metrics.StoreErrors.WithLabelValues("put_session").Inc()
		return nil, err
	}

	metrics.SamplesIngested.Inc()
	switch {
	case result.Exited:
		metrics.GeofenceTransitions.WithLabelValues("exit").Inc()
		if violation != nil && violation.IsOpen() && violation.ExitedAt.Equal(raw.CapturedAt) {
			metrics.ViolationsOpened.Inc()
		}
	case result.Reentered:
		metrics.GeofenceTransitions.WithLabelValues("enter").Inc()
		if violation != nil {
			metrics.ViolationsClosed.Inc()
		}
	}

	s.publishSampleEvents(ctx, employee, sample, result, violation)
	s.enrichAddressAsync(session.Date, sample)

	return result, nil
}

// ingestIntoArchived handles the one mutation an archived session still
// accepts: a late re-entry sample closing an open violation. Everything
// else is rejected without touching history.
func (s *Service) ingestIntoArchived(ctx context.Context, employee models.Employee, session *models.AttendanceSession, sample models.LocationSample) (*IngestResult, error) {
	open := session.OpenViolation()
	if open == nil || !sample.InsideGeofence {
		metrics.SamplesRejected.WithLabelValues("archived").Inc()
		return nil, invalidSample("session is archived", nil)
	}

	// The closing sample still respects capture-time ordering: it must be
	// newer than everything recorded and than the exit it closes, or the
	// violation interval would run backwards.
	if last := session.LastSample(); last != nil && !sample.CapturedAt.After(last.CapturedAt) {
		metrics.SamplesRejected.WithLabelValues("out_of_order").Inc()
		return nil, invalidSample("captured_at not after last recorded sample", nil)
	}
	if !sample.CapturedAt.After(open.ExitedAt) {
		metrics.SamplesRejected.WithLabelValues("out_of_order").Inc()
		return nil, invalidSample("captured_at not after violation exit", nil)
	}

	t := sample.CapturedAt
	open.ReenteredAt = &t

	if err := s.store.PutSession(ctx, session); err != nil {
		metrics.StoreErrors.WithLabelValues("put_session").Inc()
		return nil, err
	}

	metrics.ViolationsClosed.Inc()
	metrics.GeofenceTransitions.WithLabelValues("enter").Inc()

	result := &IngestResult{Sample: sample, Session: session, Reentered: true}
	s.publishSampleEvents(ctx, employee, sample, result, open)
	return result, nil
}

// publishSampleEvents emits location-update and, on a transition, the
// matching geofence event. Called only after a successful persist.
// Publish failures are logged, never surfaced: the state change already
// happened and the stream carries no durability promise.
func (s *Service) publishSampleEvents(ctx context.Context, employee models.Employee, sample models.LocationSample, result *IngestResult, violation *models.GeofenceViolation) {
	location := &events.LocationPayload{
		Latitude:           sample.Latitude,
		Longitude:          sample.Longitude,
		DistanceFromOffice: sample.DistanceFromOffice,
		InsideGeofence:     sample.InsideGeofence,
	}

	s.publish(ctx, &events.Event{
		ID:           uuid.New().String(),
		Type:         events.TypeLocationUpdate,
		EmployeeID:   employee.ID,
		EmployeeName: employee.Name,
		Timestamp:    sample.CapturedAt,
		Location:     location,
	})

	var transition events.Type
	switch {
	case result.Exited:
		transition = events.TypeGeofenceExit
	case result.Reentered:
		transition = events.TypeGeofenceEnter
	default:
		return
	}

	event := &events.Event{
		ID:           uuid.New().String(),
		Type:         transition,
		EmployeeID:   employee.ID,
		EmployeeName: employee.Name,
		Timestamp:    sample.CapturedAt,
		Location:     location,
	}
	if violation != nil {
		event.Violation = &events.ViolationPayload{
			ViolationID:    violation.ID,
			ExitedAt:       violation.ExitedAt,
			ReenteredAt:    violation.ReenteredAt,
			DistanceAtExit: violation.DistanceAtExit,
		}
	}
	s.publish(ctx, event)
}

// publish sends one event to the bus, logging failure instead of
// propagating it.
func (s *Service) publish(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logging.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to publish event")
	}
}

// enrichAddressAsync resolves the sample's address off the ingest path
// and decorates the stored session. Best effort: a failure leaves the
// previous address in place.
func (s *Service) enrichAddressAsync(date string, sample models.LocationSample) {
	if s.geocoder == nil || !s.cfg.Geocode.Enabled {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		addr := s.geocoder.Resolve(ctx, sample.Latitude, sample.Longitude)
		if addr == nil {
			return
		}

		unlock := s.locks.lock(sample.EmployeeID)
		defer unlock()

		session, err := s.store.GetSession(ctx, date, sample.EmployeeID)
		if err != nil {
			return
		}
		// Skip if a newer sample arrived while the lookup ran.
		last := session.LastSample()
		if last == nil || !last.CapturedAt.Equal(sample.CapturedAt) {
			return
		}

		session.LastKnownAddress = addr
		if err := s.store.PutSession(ctx, session); err != nil {
			metrics.StoreErrors.WithLabelValues("put_session").Inc()
			logging.Warn().Err(err).Str("employee_id", sample.EmployeeID).Msg("failed to persist address enrichment")
		}
	}()
}

// StartDay begins the working day: creates (or completes) today's session
// with the start timestamp, derives lateness against the configured
// cutoff and enables live tracking. Publishes tracking-started.
func (s *Service) StartDay(ctx context.Context, employeeID string) (*models.AttendanceSession, error) {
	employee, err := s.roster.Resolve(employeeID)
	if err != nil {
		metrics.RejectedTransitions.WithLabelValues("start").Inc()
		return nil, err
	}

	unlock := s.locks.lock(employeeID)
	defer unlock()

	now := s.now()
	date := now.Format(models.SessionDateFormat)

	session, err := s.store.GetSession(ctx, date, employeeID)
	if errors.Is(err, store.ErrSessionNotFound) {
		session = s.newSession(employeeID, date)
	} else if err != nil {
		return nil, err
	}

	switch {
	case session.IsLeave:
		metrics.RejectedTransitions.WithLabelValues("start").Inc()
		return nil, invalidTransition("employee is on leave today")
	case session.Archived():
		metrics.RejectedTransitions.WithLabelValues("start").Inc()
		return nil, invalidTransition("day already ended")
	case session.StartDayTime != nil:
		metrics.RejectedTransitions.WithLabelValues("start").Inc()
		return nil, invalidTransition("day already started")
	}

	session.StartDayTime = &now
	session.IsLate = now.After(s.cfg.Tracking.LateCutoffFor(now))
	session.LiveTrackingEnabled = true

	if err := s.store.PutSession(ctx, session); err != nil {
		metrics.StoreErrors.WithLabelValues("put_session").Inc()
		return nil, err
	}

	metrics.DayTransitions.WithLabelValues("start").Inc()
	s.publish(ctx, &events.Event{
		ID:           uuid.New().String(),
		Type:         events.TypeTrackingStarted,
		EmployeeID:   employee.ID,
		EmployeeName: employee.Name,
		Timestamp:    now,
	})

	logging.Info().
		Str("employee_id", employeeID).
		Bool("late", session.IsLate).
		Msg("day started")
	return session, nil
}

// EndDay completes the working day and disables tracking. The session
// becomes archived: read-only except for closing an open violation.
func (s *Service) EndDay(ctx context.Context, employeeID string) (*models.AttendanceSession, error) {
	if _, err := s.roster.Resolve(employeeID); err != nil {
		metrics.RejectedTransitions.WithLabelValues("end").Inc()
		return nil, err
	}

	unlock := s.locks.lock(employeeID)
	defer unlock()

	now := s.now()
	date := now.Format(models.SessionDateFormat)

	session, err := s.store.GetSession(ctx, date, employeeID)
	if errors.Is(err, store.ErrSessionNotFound) {
		metrics.RejectedTransitions.WithLabelValues("end").Inc()
		return nil, invalidTransition("day was never started")
	}
	if err != nil {
		return nil, err
	}

	switch {
	case session.StartDayTime == nil:
		metrics.RejectedTransitions.WithLabelValues("end").Inc()
		return nil, invalidTransition("day was never started")
	case session.Archived():
		metrics.RejectedTransitions.WithLabelValues("end").Inc()
		return nil, invalidTransition("day already ended")
	}

	session.EndDayTime = &now
	session.LiveTrackingEnabled = false

	if err := s.store.PutSession(ctx, session); err != nil {
		metrics.StoreErrors.WithLabelValues("put_session").Inc()
		return nil, err
	}

	metrics.DayTransitions.WithLabelValues("end").Inc()
	logging.Info().Str("employee_id", employeeID).Msg("day ended")
	return session, nil
}

// MarkLeave records the employee as on leave for today and disables
// tracking. Rejected once the day has been completed or leave is already
// set.
func (s *Service) MarkLeave(ctx context.Context, employeeID string) (*models.AttendanceSession, error) {
	if _, err := s.roster.Resolve(employeeID); err != nil {
		metrics.RejectedTransitions.WithLabelValues("leave").Inc()
		return nil, err
	}

	unlock := s.locks.lock(employeeID)
	defer unlock()

	now := s.now()
	date := now.Format(models.SessionDateFormat)

	session, err := s.store.GetSession(ctx, date, employeeID)
	if errors.Is(err, store.ErrSessionNotFound) {
		session = s.newSession(employeeID, date)
	} else if err != nil {
		return nil, err
	}

	switch {
	case session.IsLeave:
		metrics.RejectedTransitions.WithLabelValues("leave").Inc()
		return nil, invalidTransition("leave already recorded")
	case session.Archived():
		metrics.RejectedTransitions.WithLabelValues("leave").Inc()
		return nil, invalidTransition("day already ended")
	}

	session.IsLeave = true
	session.LiveTrackingEnabled = false

	if err := s.store.PutSession(ctx, session); err != nil {
		metrics.StoreErrors.WithLabelValues("put_session").Inc()
		return nil, err
	}

	metrics.DayTransitions.WithLabelValues("leave").Inc()
	logging.Info().Str("employee_id", employeeID).Msg("leave recorded")
	return session, nil
}

// StopTracking disables live tracking without ending the day. Idempotent:
// stopping an employee with no session or with tracking already off is a
// no-op.
func (s *Service) StopTracking(ctx context.Context, employeeID string) error {
	if _, err := s.roster.Resolve(employeeID); err != nil {
		metrics.RejectedTransitions.WithLabelValues("stop_tracking").Inc()
		return err
	}

	unlock := s.locks.lock(employeeID)
	defer unlock()

	date := s.now().Format(models.SessionDateFormat)
	session, err := s.store.GetSession(ctx, date, employeeID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if !session.LiveTrackingEnabled {
		return nil
	}

	session.LiveTrackingEnabled = false
	if err := s.store.PutSession(ctx, session); err != nil {
		metrics.StoreErrors.WithLabelValues("put_session").Inc()
		return err
	}

	metrics.DayTransitions.WithLabelValues("stop_tracking").Inc()
	logging.Info().Str("employee_id", employeeID).Msg("live tracking stopped")
	return nil
}

// newSession creates an empty session document for the given day.
func (s *Service) newSession(employeeID, date string) *models.AttendanceSession {
	return &models.AttendanceSession{
		ID:         uuid.New().String(),
		EmployeeID: employeeID,
		Date:       date,
	}
}
