// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

// Package metrics provides Prometheus instrumentation for the tracking
// engine: sample ingestion, geofence transitions, violation lifecycle,
// attendance lifecycle, alerting, websocket fan-out and the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	SamplesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_samples_ingested_total",
			Help: "Total number of accepted location samples",
		},
	)

	SamplesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_samples_rejected_total",
			Help: "Total number of rejected location samples",
		},
		[]string{"reason"}, // "coordinates", "future", "out_of_order", "accuracy", "no_session", "tracking_disabled", "archived"
	)

	// Geofence metrics
	GeofenceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geofence_transitions_total",
			Help: "Total number of geofence membership transitions",
		},
		[]string{"direction"}, // "exit", "enter"
	)

	ViolationsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geofence_violations_opened_total",
			Help: "Total number of geofence violations opened",
		},
	)

	ViolationsClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geofence_violations_closed_total",
			Help: "Total number of geofence violations closed by re-entry",
		},
	)

	// Attendance lifecycle metrics
	DayTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_day_transitions_total",
			Help: "Total number of attendance lifecycle transitions",
		},
		[]string{"kind"}, // "start", "end", "leave", "stop_tracking"
	)

	RejectedTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_rejected_transitions_total",
			Help: "Total number of rejected attendance lifecycle commands",
		},
		[]string{"kind"},
	)

	// Alert metrics
	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_sent_total",
			Help: "Total number of alerts dispatched",
		},
		[]string{"severity"},
	)

	// WebSocket metrics
	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Current number of connected dashboard observers",
		},
	)

	BroadcastDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_broadcast_drops_total",
			Help: "Total number of events dropped for slow or full observers",
		},
	)

	// Store metrics
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Total number of persistence failures",
		},
		[]string{"operation"},
	)

	// Reverse geocode metrics
	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_lookups_total",
			Help: "Total number of reverse-geocode lookups by provider and outcome",
		},
		[]string{"provider", "outcome"}, // provider: "nominatim", "bigdatacloud", "coordinate"; outcome: "ok", "error"
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)
