package event

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/eventstore"
)

// BusSink delivers outbox entries to an in-process event bus by rebuilding
// the domain event from its envelope payload. It lets in-process projections
// run behind the outbox's retry semantics instead of the fire-and-forget
// direct publish.
type BusSink struct {
	bus        shared.EventPublisher
	serializer *eventstore.Serializer
}

// NewBusSink creates a sink delivering to the given bus
func NewBusSink(bus shared.EventPublisher, serializer *eventstore.Serializer) *BusSink {
	return &BusSink{bus: bus, serializer: serializer}
}

var _ EnvelopeSink = (*BusSink)(nil)

// Send implements EnvelopeSink
func (s *BusSink) Send(ctx context.Context, entry *shared.OutboxEntry) error {
	stored, err := s.serializer.Deserialize(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to rebuild event %s from outbox payload: %w", entry.EventID, err)
	}
	return s.bus.Publish(ctx, stored.Event)
}
