// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

// Package geocode resolves coordinates to best-effort human-readable
// addresses for display. Provider chain: OpenStreetMap Nominatim, then
// BigDataCloud, then the raw coordinate pair formatted as a string.
//
// Resolution is decoration only. It runs off the ingest path, never
// blocks a sample, and Resolve never fails; the worst case is a
// coordinate string.
package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/blackholeinfiverse51/workflow-blackhole/internal/config"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/logging"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/metrics"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/models"
)

// Resolver performs reverse-geocode lookups with per-provider circuit
// breakers. A tripped primary skips straight to the fallback instead of
// burning the request timeout on every sample.
type Resolver struct {
	cfg     config.GeocodeConfig
	client  *http.Client
	primary *gobreaker.CircuitBreaker[*models.Address]
	backup  *gobreaker.CircuitBreaker[*models.Address]

	// limiter keeps Nominatim usage inside its published fair-use rate.
	limiter *rate.Limiter
}

// New creates a resolver from configuration.
func New(cfg config.GeocodeConfig) *Resolver {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	breakerSettings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}
	}

	return &Resolver{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		primary: gobreaker.NewCircuitBreaker[*models.Address](breakerSettings("nominatim")),
		backup:  gobreaker.NewCircuitBreaker[*models.Address](breakerSettings("bigdatacloud")),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Resolve returns a human-readable address for the coordinate. It never
// returns an error: on total provider failure the formatted coordinate
// pair is the address.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) *models.Address {
	if addr, err := r.primary.Execute(func() (*models.Address, error) {
		return r.lookupNominatim(ctx, lat, lon)
	}); err == nil {
		metrics.GeocodeLookups.WithLabelValues("nominatim", "ok").Inc()
		return addr
	} else {
		metrics.GeocodeLookups.WithLabelValues("nominatim", "error").Inc()
		logging.Debug().Err(err).Msg("nominatim lookup failed, trying fallback")
	}

	if addr, err := r.backup.Execute(func() (*models.Address, error) {
		return r.lookupBigDataCloud(ctx, lat, lon)
	}); err == nil {
		metrics.GeocodeLookups.WithLabelValues("bigdatacloud", "ok").Inc()
		return addr
	} else {
		metrics.GeocodeLookups.WithLabelValues("bigdatacloud", "error").Inc()
		logging.Debug().Err(err).Msg("bigdatacloud lookup failed, using coordinate string")
	}

	metrics.GeocodeLookups.WithLabelValues("coordinate", "ok").Inc()
	return &models.Address{FullAddress: FormatCoordinate(lat, lon)}
}

// FormatCoordinate is the last-resort address: the raw pair as a string.
func FormatCoordinate(lat, lon float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}

// nominatimResponse is the subset of the Nominatim reverse response the
// resolver consumes.
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		HouseNumber   string `json:"house_number"`
		Road          string `json:"road"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		County        string `json:"county"`
		State         string `json:"state"`
		Postcode      string `json:"postcode"`
		Country       string `json:"country"`
	} `json:"address"`
}

func (r *Resolver) lookupNominatim(ctx context.Context, lat, lon float64) (*models.Address, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.NominatimURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build nominatim request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim status %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode nominatim response: %w", err)
	}

	addr := body.Address
	full := joinParts(addr.HouseNumber, addr.Road, firstOf(addr.Suburb, addr.Neighbourhood),
		firstOf(addr.City, addr.Town, addr.Village), addr.State, addr.Postcode, addr.Country)
	if full == "" {
		full = body.DisplayName
	}
	if full == "" {
		full = FormatCoordinate(lat, lon)
	}

	return &models.Address{
		FullAddress: full,
		Area:        firstOf(addr.Suburb, addr.Neighbourhood),
		City:        firstOf(addr.City, addr.Town, addr.Village, addr.County),
		State:       addr.State,
		Country:     addr.Country,
		Pincode:     addr.Postcode,
	}, nil
}

// bigDataCloudResponse is the subset of the BigDataCloud client response
// the resolver consumes.
type bigDataCloudResponse struct {
	Locality             string `json:"locality"`
	City                 string `json:"city"`
	PrincipalSubdivision string `json:"principalSubdivision"`
	CountryName          string `json:"countryName"`
	Postcode             string `json:"postcode"`
}

func (r *Resolver) lookupBigDataCloud(ctx context.Context, lat, lon float64) (*models.Address, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%f", lat))
	q.Set("longitude", fmt.Sprintf("%f", lon))
	q.Set("localityLanguage", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BigDataCloudURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build bigdatacloud request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bigdatacloud request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bigdatacloud status %d", resp.StatusCode)
	}

	var body bigDataCloudResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode bigdatacloud response: %w", err)
	}

	full := joinParts(body.Locality, body.CountryName)
	if full == "" {
		full = FormatCoordinate(lat, lon)
	}

	return &models.Address{
		FullAddress: full,
		Area:        firstOf(body.Locality, body.City),
		City:        firstOf(body.City, body.Locality),
		State:       body.PrincipalSubdivision,
		Country:     body.CountryName,
		Pincode:     body.Postcode,
	}, nil
}

// joinParts joins non-empty parts with ", ".
func joinParts(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += p
	}
	return out
}

// firstOf returns the first non-empty string.
func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
