// Package events provides the in-process bus that record mutations are
// announced on. Event names take the form "<Class>.<operation>".
package events

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Operations published by the mutation pipeline.
const (
	OpCreate  = "create"
	OpUpdate  = "update"
	OpDestroy = "destroy"
)

// Event represents a published event.
type Event struct {
	// Name is the event name (e.g., "Post.create").
	Name string

	// Class is the class whose record changed.
	Class string

	// Operation is create, update or destroy.
	Operation string

	// ID of the affected record.
	ID any

	// Data is the client-visible payload of the operation.
	Data map[string]any

	// Meta contains caller metadata (client, sdk and app versions).
	Meta map[string]any
}

// Name builds the event name for a class and operation.
func Name(class, operation string) string {
	return class + "." + operation
}

// Handler is a function that processes an event.
type Handler func(ctx context.Context, event Event) error

// Bus is a simple publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event.
// Supports wildcard subscriptions:
//   - "Post.create" - exact match
//   - "Post.*" - all Post events
//   - "*" - all events
func (b *Bus) Subscribe(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Publish emits an event to all matching handlers, synchronously and in
// registration order (exact, then class wildcard, then global wildcard).
// Handler errors and panics are logged and do not stop delivery.
func (b *Bus) Publish(ctx context.Context, event Event) {
	matched := b.match(event.Name)

	b.logger.Debug().
		Str("event", event.Name).
		Int("handlers", len(matched)).
		Msg("event emitted")

	for _, handler := range matched {
		if err := b.call(ctx, handler, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Msg("event handler error")
		}
	}
}

// PublishAsync emits an event asynchronously.
func (b *Bus) PublishAsync(ctx context.Context, event Event) {
	go b.Publish(context.WithoutCancel(ctx), event)
}

// HasSubscribers checks if any handlers are registered for an event.
func (b *Bus) HasSubscribers(event string) bool {
	return len(b.match(event)) > 0
}

func (b *Bus) match(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []Handler
	matched = append(matched, b.handlers[name]...)
	if class, _, ok := strings.Cut(name, "."); ok {
		matched = append(matched, b.handlers[class+".*"]...)
	}
	matched = append(matched, b.handlers["*"]...)
	return matched
}

func (b *Bus) call(ctx context.Context, handler Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}
