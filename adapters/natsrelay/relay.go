// Package natsrelay forwards record events from the in-process bus to NATS.
// Every event is published on "<prefix>.<Class>.<operation>" as JSON.
package natsrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/artpar/warpmodel/core/events"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "warpmodel"

// Publisher is the part of *nats.Conn the relay uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Message is the JSON body of a relayed event.
type Message struct {
	Class     string         `json:"className"`
	Operation string         `json:"operation"`
	ID        any            `json:"id"`
	Data      map[string]any `json:"data,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	Time      time.Time      `json:"time"`
}

// Relay publishes bus events to NATS.
type Relay struct {
	pub    Publisher
	prefix string
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a relay over pub. An empty prefix uses DefaultPrefix.
func New(pub Publisher, prefix string, logger zerolog.Logger) *Relay {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Relay{pub: pub, prefix: prefix, now: time.Now, logger: logger}
}

// Connect dials the NATS server at url with reconnects enabled.
func Connect(url, name string, logger zerolog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

// Subject returns the subject an event of class and operation is published on.
func (r *Relay) Subject(class, operation string) string {
	return r.prefix + "." + class + "." + operation
}

// Subscribe relays every event published on bus.
func (r *Relay) Subscribe(bus *events.Bus) {
	bus.Subscribe("*", r.Handle)
}

// Handle publishes one event.
func (r *Relay) Handle(_ context.Context, e events.Event) error {
	data, err := json.Marshal(Message{
		Class:     e.Class,
		Operation: e.Operation,
		ID:        e.ID,
		Data:      e.Data,
		Meta:      e.Meta,
		Time:      r.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Name, err)
	}

	subject := r.Subject(e.Class, e.Operation)
	if err := r.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	r.logger.Debug().Str("subject", subject).Msg("event relayed")
	return nil
}
