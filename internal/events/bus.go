// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Publisher is the narrow interface mutation code depends on. The tracking
// service and alert dispatcher publish through it; tests substitute a
// recording implementation.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Bus is the in-process pub/sub channel carrying attendance events from
// mutations to observer bridges. Built on Watermill's gochannel pubsub:
// no broker, no durability, matching the at-most-once live-dashboard
// delivery contract.
type Bus struct {
	ch *gochannel.GoChannel
}

// NewBus creates the event channel. bufferSize bounds the per-subscriber
// output channel; a subscriber that stops draining loses events instead of
// stalling publishers.
func NewBus(bufferSize int) *Bus {
	if bufferSize < 1 {
		bufferSize = 256
	}
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(bufferSize),
	}, NewLoggerAdapter())
	return &Bus{ch: ch}
}

// Publish validates, serializes and publishes an event. The event ID
// doubles as the Watermill message UUID.
func (b *Bus) Publish(ctx context.Context, event *Event) error {
	data, err := Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage(event.ID, data)
	msg.SetContext(ctx)
	if err := b.ch.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	return nil
}

// Subscribe returns a stream of raw messages on the attendance topic.
// Each subscriber gets an independent buffered channel.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	msgs, err := b.ch.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", Topic, err)
	}
	return msgs, nil
}

// Close shuts the channel down; pending messages are dropped.
func (b *Bus) Close() error {
	return b.ch.Close()
}
