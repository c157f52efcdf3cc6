// Package eventbus provides event-driven communication between the session
// coordinator, the workflow orchestrator, and any external observers.
package eventbus

import (
	"context"

	"github.com/chatback/chatback/pkg/events"
)

// Event is any session lifecycle event carrying its own type tag.
type Event interface {
	GetType() events.EventType
}

// EventPublisher emits lifecycle events keyed by session so consumers can
// partition per session.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber registers per-type handlers, then consumes the stream.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event interface{}) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
