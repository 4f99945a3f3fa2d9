// Package eventbus provides event-driven communication between the API,
// scheduler and workers.
package eventbus

import (
	"context"

	"github.com/netpilot/netpilot/pkg/events"
)

// Event is any payload with a declared event type.
type Event interface {
	GetType() events.EventType
}

// EventHandler processes one decoded event.
type EventHandler func(ctx context.Context, event any) error

// EventBus publishes and subscribes execution lifecycle events.
type EventBus interface {
	Publish(ctx context.Context, key string, event Event) error
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
	Close() error
	GenerateID() string
}
