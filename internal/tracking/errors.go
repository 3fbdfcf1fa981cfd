// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

package tracking

import (
	"errors"
	"fmt"
)

// Sentinel errors for sample ingestion and attendance lifecycle commands.
var (
	// ErrInvalidSample indicates a rejected location sample. Rejected
	// samples are never recorded and never produce events.
	ErrInvalidSample = errors.New("invalid location sample")

	// ErrViolationAlreadyOpen indicates an exit transition while a
	// violation is already open. The existing violation stays
	// authoritative; no second one is opened.
	ErrViolationAlreadyOpen = errors.New("violation already open")

	// ErrInvalidStateTransition indicates a lifecycle command that the
	// session's current state does not permit.
	ErrInvalidStateTransition = errors.New("invalid attendance state transition")
)

// invalidSample wraps a rejection reason with the ErrInvalidSample
// sentinel. cause may be nil.
func invalidSample(reason string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%s: %w", reason, errors.Join(ErrInvalidSample, cause))
	}
	return fmt.Errorf("%s: %w", reason, ErrInvalidSample)
}

// invalidTransition wraps a lifecycle rejection with the sentinel.
func invalidTransition(detail string) error {
	return fmt.Errorf("%s: %w", detail, ErrInvalidStateTransition)
}
