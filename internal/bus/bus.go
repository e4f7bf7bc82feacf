// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package bus defines the typed event taxonomy the Scheduler consumes and
// emits, and the pub/sub transport it travels over.
package bus

import "context"

// Message is an opaque event payload. Concrete events are the Event*
// structs declared in events.go.
type Message interface{}

// Handler applies an event/message within a context.
type Handler func(ctx context.Context, msg Message) error

// Subscriber receives messages published to the topic it was subscribed
// to (Bus.Subscribe), or to several topics when built by SubscribeAll.
type Subscriber interface {
	// C returns a read-only message channel.
	C() <-chan Message
	// Close unsubscribes.
	Close() error
}

// Bus is the event transport abstraction between the Scheduler and its
// collaborators (Playlist, Fragment Loader, Transmux, Buffer Sink, ABR).
// An in-memory implementation is provided by MemoryBus; a production
// deployment may swap in a durable transport without touching the
// Scheduler.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}
