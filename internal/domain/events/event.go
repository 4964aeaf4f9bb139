package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event
type Event interface {
	ID() uuid.UUID
	AggregateID() uuid.UUID
	AggregateType() string
	EventType() string
	Version() int
	CreatedAt() time.Time
}

// BaseEvent provides common event functionality. Fields are exported so the
// envelope survives JSON encoding on the wire.
type BaseEvent struct {
	EventID       uuid.UUID         `json:"id"`
	Aggregate     uuid.UUID         `json:"aggregate_id"`
	AggregateKind string            `json:"aggregate_type"`
	Type          string            `json:"event_type"`
	EventVersion  int               `json:"version"`
	Timestamp     time.Time         `json:"created_at"`
	Meta          map[string]string `json:"metadata,omitempty"`
}

// NewBaseEvent creates a new base event
func NewBaseEvent(aggregateID uuid.UUID, aggregateType, eventType string, version int) BaseEvent {
	return BaseEvent{
		EventID:       uuid.New(),
		Aggregate:     aggregateID,
		AggregateKind: aggregateType,
		Type:          eventType,
		EventVersion:  version,
		Timestamp:     time.Now().UTC(),
	}
}

func (e BaseEvent) ID() uuid.UUID          { return e.EventID }
func (e BaseEvent) AggregateID() uuid.UUID { return e.Aggregate }
func (e BaseEvent) AggregateType() string  { return e.AggregateKind }
func (e BaseEvent) EventType() string      { return e.Type }
func (e BaseEvent) Version() int           { return e.EventVersion }
func (e BaseEvent) CreatedAt() time.Time   { return e.Timestamp }

// WithMetadata returns a copy of the event carrying an extra metadata entry
func (e BaseEvent) WithMetadata(key, value string) BaseEvent {
	meta := make(map[string]string, len(e.Meta)+1)
	for k, v := range e.Meta {
		meta[k] = v
	}
	meta[key] = value
	e.Meta = meta
	return e
}

// Publisher sends events to an external sink
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Envelope wraps an event with its metadata for transport
type Envelope struct {
	ID            string            `json:"id"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	EventType     string            `json:"event_type"`
	EventVersion  int               `json:"event_version"`
	OccurredAt    time.Time         `json:"occurred_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Data          Event             `json:"data"`
}

// NewEnvelope wraps event for publishing
func NewEnvelope(event Event) Envelope {
	env := Envelope{
		ID:            event.ID().String(),
		AggregateID:   event.AggregateID().String(),
		AggregateType: event.AggregateType(),
		EventType:     event.EventType(),
		EventVersion:  event.Version(),
		OccurredAt:    event.CreatedAt(),
		Data:          event,
	}
	if m, ok := event.(interface{ Metadata() map[string]string }); ok {
		env.Metadata = m.Metadata()
	}
	return env
}

// Metadata returns the event metadata
func (e BaseEvent) Metadata() map[string]string { return e.Meta }
