package eventstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Envelope is the persisted and published wire shape of one stored event.
// occurred_at serializes as ISO-8601; monetary fields inside the payload
// carry both major-unit and string-encoded minor-unit representations (see
// valueobject.Money), so downstream readers of either vintage stay safe.
type Envelope struct {
	ID            uuid.UUID         `json:"id"`
	AggregateID   string            `json:"aggregate_id"`
	StreamKind    shared.StreamKind `json:"stream_kind"`
	StreamKey     string            `json:"stream_key"`
	TenantID      uuid.UUID         `json:"tenant_id"`
	Version       int64             `json:"version"`
	EventType     string            `json:"event_type"`
	OccurredAt    time.Time         `json:"occurred_at"`
	SchemaVersion int               `json:"schema_version"`
	Payload       json.RawMessage   `json:"payload"`
}

// Serializer handles JSON serialization of domain events through a type
// registry, so stores and publishers can round-trip events without knowing
// their concrete types.
type Serializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type // eventType -> Go type
}

// NewSerializer creates a serializer with the ledger's event types already
// registered
func NewSerializer() *Serializer {
	s := &Serializer{
		registry: make(map[string]reflect.Type),
	}
	s.registerLedgerEvents()
	return s
}

// Register registers an event type for deserialization. The eventType must
// match what EventType() returns on the event.
func (s *Serializer) Register(eventType string, eventInstance shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := reflect.TypeOf(eventInstance)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s.registry[eventType] = t
}

// IsRegistered checks if an event type is registered
func (s *Serializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registry[eventType]
	return ok
}

// Serialize wraps an event and its store-assigned version into an envelope
func (s *Serializer) Serialize(event shared.DomainEvent, version int64) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	stream := event.Stream()
	return json.Marshal(Envelope{
		ID:            event.EventID(),
		AggregateID:   stream.String(),
		StreamKind:    stream.Kind,
		StreamKey:     stream.Key,
		TenantID:      event.TenantID(),
		Version:       version,
		EventType:     event.EventType(),
		OccurredAt:    event.OccurredAt().UTC(),
		SchemaVersion: event.SchemaVersion(),
		Payload:       payload,
	})
}

// Deserialize rebuilds a stored event from its envelope. The event's base
// fields go through the same validating rehydration constructor as live
// construction; there is no raw-assignment path skipping those checks.
func (s *Serializer) Deserialize(data []byte) (StoredEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return StoredEvent{}, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}
	event, err := s.DeserializeEnvelope(env)
	if err != nil {
		return StoredEvent{}, err
	}
	return StoredEvent{Version: env.Version, Event: event}, nil
}

// DeserializeEnvelope rebuilds the domain event from an already-decoded
// envelope
func (s *Serializer) DeserializeEnvelope(env Envelope) (shared.DomainEvent, error) {
	s.mu.RLock()
	t, ok := s.registry[env.EventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}

	stream, err := shared.NewStreamID(env.TenantID, env.StreamKind, env.StreamKey)
	if err != nil {
		return nil, fmt.Errorf("invalid stream in envelope for event %s: %w", env.ID, err)
	}
	base, err := shared.RehydrateBaseDomainEvent(env.ID, env.EventType, env.OccurredAt, stream, env.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid envelope for event %s: %w", env.ID, err)
	}

	eventPtr := reflect.New(t)
	if err := json.Unmarshal(env.Payload, eventPtr.Interface()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
	}

	baseField := eventPtr.Elem().FieldByName("BaseDomainEvent")
	if !baseField.IsValid() || !baseField.CanSet() {
		return nil, fmt.Errorf("event type %s does not embed BaseDomainEvent", env.EventType)
	}
	baseField.Set(reflect.ValueOf(base))

	event, ok := eventPtr.Interface().(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("deserialized object does not implement DomainEvent")
	}
	return event, nil
}

// registerLedgerEvents registers the closed event sets of both ledger
// aggregates
func (s *Serializer) registerLedgerEvents() {
	s.Register("AccountCreated", &ledger.AccountCreatedEvent{})
	s.Register("AccountDeactivated", &ledger.AccountDeactivatedEvent{})
	s.Register("AccountReactivated", &ledger.AccountReactivatedEvent{})
	s.Register("JournalEntryCreated", &ledger.JournalEntryCreatedEvent{})
	s.Register("JournalEntryApproved", &ledger.JournalEntryApprovedEvent{})
	s.Register("JournalEntryPosted", &ledger.JournalEntryPostedEvent{})
	s.Register("JournalEntryReversed", &ledger.JournalEntryReversedEvent{})
}
