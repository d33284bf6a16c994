package shared

import "fmt"

// AggregateRoot is the base interface for all event-sourced aggregate roots
type AggregateRoot interface {
	Stream() StreamID
	// Version is the version of the last persisted event; 0 for a fresh aggregate.
	Version() int64
	// ExpectedVersion is what must be passed to the event store on append.
	ExpectedVersion() int64
	UncommittedEvents() []DomainEvent
	MarkCommitted(committedVersion int64) error
}

// EventSourcedAggregate provides version tracking, uncommitted-event buffering
// and replay-based reconstruction for aggregate roots. Domain aggregates embed
// it and route both live and replayed events through a single apply function,
// so state transitions have exactly one code path.
type EventSourcedAggregate struct {
	stream      StreamID
	version     int64
	uncommitted []DomainEvent
}

// NewEventSourcedAggregate creates an empty aggregate at version 0
func NewEventSourcedAggregate(stream StreamID) EventSourcedAggregate {
	return EventSourcedAggregate{
		stream:      stream,
		uncommitted: make([]DomainEvent, 0),
	}
}

// Stream returns the id of the stream this aggregate is a projection of
func (a *EventSourcedAggregate) Stream() StreamID {
	return a.stream
}

// Version returns the version of the last persisted event
func (a *EventSourcedAggregate) Version() int64 {
	return a.version
}

// ExpectedVersion is the stream version the event store must currently be at
// for this aggregate's uncommitted events to append cleanly
func (a *EventSourcedAggregate) ExpectedVersion() int64 {
	return a.version
}

// NextVersion is the version the stream will be at once the uncommitted
// buffer is flushed. It is always current version + buffered event count;
// aggregates never compute it any other way.
func (a *EventSourcedAggregate) NextVersion() int64 {
	return a.version + int64(len(a.uncommitted))
}

// UncommittedEvents exposes the buffer of events not yet persisted
func (a *EventSourcedAggregate) UncommittedEvents() []DomainEvent {
	return a.uncommitted
}

// Raise validates the event against the aggregate's stream, applies it and
// buffers it for persistence. The version does not advance here; it only
// advances on commit.
func (a *EventSourcedAggregate) Raise(event DomainEvent, apply func(DomainEvent) error) error {
	if err := ValidateEventShape(event, a.stream); err != nil {
		return err
	}
	if err := apply(event); err != nil {
		return err
	}
	a.uncommitted = append(a.uncommitted, event)
	return nil
}

// LoadFromHistory folds persisted events through the apply function and sets
// the aggregate's version. Every replayed event must belong to this
// aggregate's stream; a mismatch is a contract violation, not user input.
func (a *EventSourcedAggregate) LoadFromHistory(events []DomainEvent, version int64, apply func(DomainEvent) error) error {
	if version < int64(len(events)) {
		return NewDomainError("INVALID_HISTORY", fmt.Sprintf("Stream version %d is lower than the %d events replayed", version, len(events)))
	}
	for _, event := range events {
		if err := ValidateEventShape(event, a.stream); err != nil {
			return err
		}
		if err := apply(event); err != nil {
			return err
		}
	}
	a.version = version
	a.uncommitted = a.uncommitted[:0]
	return nil
}

// MarkCommitted clears the uncommitted buffer after a successful append and
// advances the version to what the store reports. The store's committed
// version must equal NextVersion; anything else means the orchestrator and
// the store disagree about the stream and the aggregate must be discarded.
func (a *EventSourcedAggregate) MarkCommitted(committedVersion int64) error {
	if committedVersion != a.NextVersion() {
		return NewDomainError("VERSION_DRIFT", fmt.Sprintf("Committed version %d does not match expected %d", committedVersion, a.NextVersion()))
	}
	a.version = committedVersion
	a.uncommitted = a.uncommitted[:0]
	return nil
}
