// Package eventstore provides the append-only, versioned event log that is
// the ledger's single source of truth. Streams are keyed by (tenant, kind,
// key); appends are guarded by optimistic concurrency checks that are atomic
// per stream. The store never retries a conflict itself; retry policy
// belongs to the caller.
package eventstore

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
)

// StoredEvent pairs a domain event with the per-stream version the store
// assigned to it at append time.
type StoredEvent struct {
	Version int64
	Event   shared.DomainEvent
}

// Store is the event store contract. Both operations may block on durable
// storage; callers must treat them as long-latency I/O.
type Store interface {
	// Append atomically appends events to the stream, assigning each a
	// successive version, and returns the stream's new version. It fails
	// with shared.ErrConcurrencyConflict when the stream's current version
	// differs from expectedVersion, and with a shape error before anything
	// is persisted when an event is structurally invalid for the stream.
	Append(ctx context.Context, stream shared.StreamID, events []shared.DomainEvent, expectedVersion int64) (int64, error)

	// Events returns the stream's events with version greater than
	// fromVersion, in version order. An absent stream yields an empty
	// result, not an error. Tenant isolation is enforced by key
	// composition; there is no filter a caller could bypass.
	Events(ctx context.Context, stream shared.StreamID, fromVersion int64) ([]StoredEvent, error)
}

// DomainEvents unwraps stored events for aggregate replay
func DomainEvents(stored []StoredEvent) []shared.DomainEvent {
	events := make([]shared.DomainEvent, len(stored))
	for i, s := range stored {
		events[i] = s.Event
	}
	return events
}

// CurrentVersion derives the stream version implied by a full replay.
// Versions are contiguous from 1, so it is fromVersion plus the event count.
func CurrentVersion(fromVersion int64, stored []StoredEvent) int64 {
	return fromVersion + int64(len(stored))
}

// validateAppend runs the structural checks shared by all store
// implementations. It fails fast before any persistence happens.
func validateAppend(stream shared.StreamID, events []shared.DomainEvent, expectedVersion int64) error {
	if _, err := shared.NewStreamID(stream.TenantID, stream.Kind, stream.Key); err != nil {
		return err
	}
	if len(events) == 0 {
		return shared.NewDomainError("INVALID_APPEND", "Cannot append zero events")
	}
	if expectedVersion < 0 {
		return shared.NewDomainError("INVALID_APPEND", fmt.Sprintf("Expected version cannot be negative, got %d", expectedVersion))
	}
	for _, event := range events {
		if err := shared.ValidateEventShape(event, stream); err != nil {
			return err
		}
	}
	return nil
}

// concurrencyConflict builds the caller-facing conflict error with both
// versions, so orchestrators can log and decide whether to reload and retry
func concurrencyConflict(stream shared.StreamID, expected, current int64) error {
	return fmt.Errorf("%w: stream %s is at version %d, append expected %d",
		shared.ErrConcurrencyConflict, stream.String(), current, expected)
}
