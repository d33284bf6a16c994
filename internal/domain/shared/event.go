package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents an immutable fact recorded against one stream.
// The per-stream version is not part of the event itself; the event store
// assigns it at append time.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	Stream() StreamID
	TenantID() uuid.UUID
	// SchemaVersion is the version of the event payload schema, starting at 1.
	// It lets downstream consumers handle payload evolution.
	SchemaVersion() int
}

// BaseDomainEvent provides common fields for all domain events
type BaseDomainEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"event_type"`
	Timestamp time.Time `json:"occurred_at"`
	StreamID  StreamID  `json:"-"`
	Schema    int       `json:"schema_version"`
}

// EventID returns the unique event identifier
func (e *BaseDomainEvent) EventID() uuid.UUID {
	return e.ID
}

// EventType returns the type of the event
func (e *BaseDomainEvent) EventType() string {
	return e.Type
}

// OccurredAt returns when the event occurred
func (e *BaseDomainEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// Stream returns the id of the stream this event belongs to
func (e *BaseDomainEvent) Stream() StreamID {
	return e.StreamID
}

// TenantID returns the tenant that owns the event's stream
func (e *BaseDomainEvent) TenantID() uuid.UUID {
	return e.StreamID.TenantID
}

// SchemaVersion returns the schema version of the event payload.
// Returns 1 if no version was set, for compatibility with unversioned events.
func (e *BaseDomainEvent) SchemaVersion() int {
	if e.Schema == 0 {
		return 1
	}
	return e.Schema
}

// NewBaseDomainEvent creates a new base domain event with schema version 1
func NewBaseDomainEvent(eventType string, stream StreamID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		StreamID:  stream,
		Schema:    1,
	}
}

// RehydrateBaseDomainEvent rebuilds the base event from persisted fields,
// validating them the same way the live construction path does. There is no
// raw-assignment hydration path that skips these checks.
func RehydrateBaseDomainEvent(id uuid.UUID, eventType string, occurredAt time.Time, stream StreamID, schemaVersion int) (BaseDomainEvent, error) {
	if id == uuid.Nil {
		return BaseDomainEvent{}, NewDomainError("INVALID_EVENT", "Event ID cannot be empty")
	}
	if eventType == "" {
		return BaseDomainEvent{}, NewDomainError("INVALID_EVENT", "Event type cannot be empty")
	}
	if occurredAt.IsZero() {
		return BaseDomainEvent{}, NewDomainError("INVALID_EVENT", "Event timestamp cannot be zero")
	}
	if _, err := NewStreamID(stream.TenantID, stream.Kind, stream.Key); err != nil {
		return BaseDomainEvent{}, err
	}
	if schemaVersion < 1 {
		schemaVersion = 1
	}
	return BaseDomainEvent{
		ID:        id,
		Type:      eventType,
		Timestamp: occurredAt,
		StreamID:  stream,
		Schema:    schemaVersion,
	}, nil
}

// ValidateEventShape checks the structural fields every event must carry
// before it may be persisted against the given stream
func ValidateEventShape(event DomainEvent, stream StreamID) error {
	if event == nil {
		return NewDomainError("INVALID_EVENT", "Event cannot be nil")
	}
	if event.EventID() == uuid.Nil {
		return NewDomainError("INVALID_EVENT", "Event ID cannot be empty")
	}
	if event.EventType() == "" {
		return NewDomainError("INVALID_EVENT", "Event type cannot be empty")
	}
	if event.OccurredAt().IsZero() {
		return NewDomainError("INVALID_EVENT", "Event timestamp cannot be zero")
	}
	if !event.Stream().Equal(stream) {
		return ErrStreamMismatch
	}
	if event.TenantID() != stream.TenantID {
		return NewDomainError("INVALID_EVENT", "Event tenant does not match the stream tenant")
	}
	return nil
}
