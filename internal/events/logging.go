// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

package events

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/blackholeinfiverse51/workflow-blackhole/internal/logging"
)

// zerologAdapter implements watermill.LoggerAdapter on the global zerolog
// logger so Watermill internals log through the same pipeline as the rest
// of the application.
type zerologAdapter struct {
	fields watermill.LogFields
}

// NewLoggerAdapter returns a watermill.LoggerAdapter backed by zerolog.
func NewLoggerAdapter() watermill.LoggerAdapter {
	return &zerologAdapter{}
}

func (a *zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	event := logging.Error().Err(err)
	for k, v := range a.fields.Add(fields) {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

func (a *zerologAdapter) Info(msg string, fields watermill.LogFields) {
	event := logging.Info()
	for k, v := range a.fields.Add(fields) {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

func (a *zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	event := logging.Debug()
	for k, v := range a.fields.Add(fields) {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

func (a *zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	// Watermill trace output is too chatty for production; map to debug.
	a.Debug(msg, fields)
}

func (a *zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zerologAdapter{fields: a.fields.Add(fields)}
}
