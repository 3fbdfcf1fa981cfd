// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

// Command server runs the attendance tracking service: HTTP API,
// websocket fan-out, geofence evaluation and the BadgerDB session store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/blackholeinfiverse51/workflow-blackhole/internal/alerts"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/api"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/config"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/events"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/geocode"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/logging"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/roster"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/store"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/tracking"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close store")
		}
	}()

	directory, err := roster.Load(cfg.Roster.Path)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	bus := events.NewBus(cfg.Tracking.ObserverBuffer)
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close event bus")
		}
	}()

	hub := websocket.NewHub(cfg.Tracking.ObserverBuffer)
	bridge := events.NewBridge(bus, hub)

	var geocoder tracking.Geocoder
	if cfg.Geocode.Enabled {
		geocoder = geocode.New(cfg.Geocode)
	}

	svc := tracking.New(cfg, st, directory, bus, geocoder)
	dispatcher := alerts.NewDispatcher(st, directory, bus)

	handler := api.NewHandler(svc, dispatcher, hub, cfg.API.CORSOrigins)
	router := api.NewRouter(handler, api.NewChiMiddleware(cfg.API))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor := suture.New("workflow-blackhole", suture.Spec{
		EventHook: (&sutureslog.Handler{Logger: logging.NewSlogLogger()}).MustHook(),
	})
	supervisor.Add(hub)
	supervisor.Add(bridge)
	supervisorErr := supervisor.ServeBackground(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", server.Addr).
			Int("employees", len(directory.List())).
			Msg("attendance server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		stop()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("http server shutdown failed")
	}

	// The supervisor stops via context cancellation; wait for its services
	// to drain before closing the store.
	if err := <-supervisorErr; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor exited with error")
	}

	logging.Info().Msg("shutdown complete")
	return nil
}
