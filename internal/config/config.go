// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

// Package config provides layered configuration loading via Koanf v2.
//
// Precedence, highest wins: environment variables > YAML config file >
// built-in defaults. Environment variable names map onto nested koanf
// paths with the section prefix, e.g. OFFICE_GEOFENCE_RADIUS_METERS ->
// office.geofence_radius_meters and SERVER_PORT -> server.port.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Office   OfficeConfig   `koanf:"office"`
	Tracking TrackingConfig `koanf:"tracking"`
	Geocode  GeocodeConfig  `koanf:"geocode"`
	Store    StoreConfig    `koanf:"store"`
	Roster   RosterConfig   `koanf:"roster"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// OfficeConfig defines the authorized work perimeter: the reference office
// coordinate and the geofence radius around it.
type OfficeConfig struct {
	Latitude             float64 `koanf:"latitude"`
	Longitude            float64 `koanf:"longitude"`
	GeofenceRadiusMeters float64 `koanf:"geofence_radius_meters"`
}

// TrackingConfig tunes sample acceptance and attendance derivation.
type TrackingConfig struct {
	// MaxAccuracyMeters rejects low-confidence fixes above this radius.
	MaxAccuracyMeters float64 `koanf:"max_accuracy_meters"`

	// ClockSkewTolerance is how far into the future a capturedAt may lie
	// before the sample is rejected as invalid.
	ClockSkewTolerance time.Duration `koanf:"clock_skew_tolerance"`

	// LateCutoff is the wall-clock time ("HH:MM", server-local) after
	// which a day start is recorded as late.
	LateCutoff string `koanf:"late_cutoff"`

	// HoursPrecision is the number of decimals for reported hour totals.
	HoursPrecision int `koanf:"hours_precision"`

	// ObserverBuffer is the per-observer send buffer; events beyond it
	// are dropped for that observer rather than blocking ingestion.
	ObserverBuffer int `koanf:"observer_buffer"`
}

// GeocodeConfig configures the optional reverse-geocode enrichment.
type GeocodeConfig struct {
	Enabled           bool          `koanf:"enabled"`
	NominatimURL      string        `koanf:"nominatim_url"`
	BigDataCloudURL   string        `koanf:"bigdatacloud_url"`
	UserAgent         string        `koanf:"user_agent"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
}

// StoreConfig configures the BadgerDB document store.
type StoreConfig struct {
	Path string `koanf:"path"`

	// InMemory runs Badger without disk persistence. Used by tests.
	InMemory bool `koanf:"in_memory"`
}

// RosterConfig points at the employee directory file.
type RosterConfig struct {
	Path string `koanf:"path"`
}

// APIConfig holds HTTP surface tuning.
type APIConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    5001,
			Timeout: 30 * time.Second,
		},
		Office: OfficeConfig{
			Latitude:             0.0,
			Longitude:            0.0,
			GeofenceRadiusMeters: 100,
		},
		Tracking: TrackingConfig{
			MaxAccuracyMeters:  100,
			ClockSkewTolerance: 60 * time.Second,
			LateCutoff:         "09:15",
			HoursPrecision:     1,
			ObserverBuffer:     256,
		},
		Geocode: GeocodeConfig{
			Enabled:           true,
			NominatimURL:      "https://nominatim.openstreetmap.org/reverse",
			BigDataCloudURL:   "https://api.bigdatacloud.net/data/reverse-geocode-client",
			UserAgent:         "Infiverse Attendance System",
			Timeout:           5 * time.Second,
			RequestsPerSecond: 1,
		},
		Store: StoreConfig{
			Path:     "/data/attendance",
			InMemory: false,
		},
		Roster: RosterConfig{
			Path: "roster.yaml",
		},
		API: APIConfig{
			CORSOrigins:       []string{},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Office.Latitude < -90 || c.Office.Latitude > 90 {
		return fmt.Errorf("office.latitude %v out of range [-90, 90]", c.Office.Latitude)
	}
	if c.Office.Longitude < -180 || c.Office.Longitude > 180 {
		return fmt.Errorf("office.longitude %v out of range [-180, 180]", c.Office.Longitude)
	}
	if c.Office.GeofenceRadiusMeters <= 0 {
		return fmt.Errorf("office.geofence_radius_meters must be positive, got %v", c.Office.GeofenceRadiusMeters)
	}
	if c.Tracking.MaxAccuracyMeters <= 0 {
		return fmt.Errorf("tracking.max_accuracy_meters must be positive, got %v", c.Tracking.MaxAccuracyMeters)
	}
	if c.Tracking.ClockSkewTolerance < 0 {
		return fmt.Errorf("tracking.clock_skew_tolerance must not be negative")
	}
	if c.Tracking.HoursPrecision < 0 || c.Tracking.HoursPrecision > 6 {
		return fmt.Errorf("tracking.hours_precision %d out of range [0, 6]", c.Tracking.HoursPrecision)
	}
	if c.Tracking.ObserverBuffer < 1 {
		return fmt.Errorf("tracking.observer_buffer must be at least 1")
	}
	if _, _, err := c.Tracking.LateCutoffClock(); err != nil {
		return err
	}
	if c.Store.Path == "" && !c.Store.InMemory {
		return fmt.Errorf("store.path is required unless store.in_memory is set")
	}
	return nil
}

// LateCutoffClock parses the late cutoff into hour and minute components.
func (t TrackingConfig) LateCutoffClock() (hour, minute int, err error) {
	parts := strings.SplitN(t.LateCutoff, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("tracking.late_cutoff %q must be HH:MM", t.LateCutoff)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("tracking.late_cutoff %q has invalid hour", t.LateCutoff)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("tracking.late_cutoff %q has invalid minute", t.LateCutoff)
	}
	return hour, minute, nil
}

// LateCutoffFor anchors the configured cutoff on the calendar day of ts,
// in ts's location. A day start strictly after this instant is late.
func (t TrackingConfig) LateCutoffFor(ts time.Time) time.Time {
	hour, minute, err := t.LateCutoffClock()
	if err != nil {
		// Validate() rejects malformed cutoffs at load time; fall back
		// to never-late rather than panicking on a zero-value config.
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 23, 59, 59, 0, ts.Location())
	}
	return time.Date(ts.Year(), ts.Month(), ts.Day(), hour, minute, 0, 0, ts.Location())
}
