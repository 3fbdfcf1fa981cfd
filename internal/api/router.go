// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router assembles the HTTP routing table.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router from the handler set and middleware factory.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	return &Router{handler: handler, chiMiddleware: mw}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order. CORS is global
	// so OPTIONS preflight requests are handled everywhere.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(RequestLogging)

	// Health endpoints get permissive rate limiting so monitoring can
	// probe frequently.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Core attendance endpoints.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(PrometheusMetrics)

		r.Route("/attendance", func(r chi.Router) {
			r.Post("/samples", router.handler.IngestSample)
			r.Post("/day/start", router.handler.StartDay)
			r.Post("/day/end", router.handler.EndDay)
			r.Post("/leave", router.handler.MarkLeave)
			r.Post("/{employeeID}/stop-tracking", router.handler.StopTracking)
			r.Get("/live", router.handler.LiveView)
			r.Get("/stats", router.handler.Stats)
			r.Get("/export", router.handler.ExportCSV)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Post("/", router.handler.CreateAlert)
			r.Get("/{employeeID}", router.handler.AlertHistory)
		})

		r.Get("/ws", router.handler.WebSocket)
	})

	// Prometheus scrape endpoint, outside the rate-limited API tree.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
