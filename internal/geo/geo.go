// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

// Package geo provides pure geodesic computation: great-circle distance on
// a spherical-Earth approximation and the circular-perimeter membership
// test. No state, no side effects.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/blackholeinfiverse51/workflow-blackhole/internal/models"
)

// earthRadiusMeters is the mean Earth radius of the spherical approximation.
const earthRadiusMeters = 6371000.0

// ErrInvalidCoordinate indicates a latitude outside [-90, 90] or a
// longitude outside [-180, 180].
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Validate checks that c is a well-formed WGS84 coordinate.
func Validate(c models.Coordinate) error {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return fmt.Errorf("%w: NaN component", ErrInvalidCoordinate)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidCoordinate, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// Distance returns the great-circle distance between a and b in meters
// using the haversine formula. Deterministic and symmetric:
// Distance(a, b) == Distance(b, a), Distance(a, a) == 0.
func Distance(a, b models.Coordinate) (float64, error) {
	if err := Validate(a); err != nil {
		return 0, err
	}
	if err := Validate(b); err != nil {
		return 0, err
	}

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	// Clamp against floating-point drift before Asin.
	c := 2 * math.Asin(math.Min(1, math.Sqrt(h)))
	return earthRadiusMeters * c, nil
}

// InsidePerimeter reports whether a point at the given distance from the
// office coordinate lies within the configured geofence radius. The
// boundary itself counts as inside.
func InsidePerimeter(distanceMeters, radiusMeters float64) bool {
	return distanceMeters <= radiusMeters
}
