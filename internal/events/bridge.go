// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

package events

import (
	"context"

	"github.com/blackholeinfiverse51/workflow-blackhole/internal/logging"
)

// Broadcaster is the observer-facing fan-out the bridge forwards into.
// The websocket hub implements it.
type Broadcaster interface {
	BroadcastEvent(event *Event)
}

// Bridge drains the event bus into a Broadcaster. It runs as a supervised
// service: Serve blocks until the context is canceled or the bus closes,
// acking every message regardless of outcome. A malformed event is logged
// and dropped, never redelivered.
type Bridge struct {
	bus *Bus
	hub Broadcaster
}

// NewBridge wires the bus to an observer fan-out.
func NewBridge(bus *Bus, hub Broadcaster) *Bridge {
	return &Bridge{bus: bus, hub: hub}
}

// Serve implements suture.Service.
func (b *Bridge) Serve(ctx context.Context) error {
	msgs, err := b.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	logging.Info().Str("component", "event-bridge").Msg("event bridge started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "event-bridge").Msg("event bridge stopped")
			return ctx.Err()

		case msg, ok := <-msgs:
			if !ok {
				logging.Info().Str("component", "event-bridge").Msg("event channel closed")
				return nil
			}

			event, err := Unmarshal(msg.Payload)
			if err != nil {
				logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping undecodable event")
				msg.Ack()
				continue
			}

			b.hub.BroadcastEvent(event)
			msg.Ack()
		}
	}
}

// String names the service for supervisor logs.
func (b *Bridge) String() string {
	return "event-bridge"
}
