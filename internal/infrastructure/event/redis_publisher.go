package event

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisStream is the Redis Streams key committed ledger events are
// published to
const DefaultRedisStream = "ledger:events"

// EnvelopeSink delivers one staged outbox entry to an external consumer. The
// payload is the serialized event envelope; sinks forward it opaquely.
type EnvelopeSink interface {
	Send(ctx context.Context, entry *shared.OutboxEntry) error
}

// RedisStreamPublisher delivers outbox entries to a Redis stream via XADD.
// Consumers read with consumer groups and use the event id for
// deduplication; the stream version gives them a per-aggregate ordering key.
type RedisStreamPublisher struct {
	client redis.UniversalClient
	stream string
}

// NewRedisStreamPublisher creates a publisher on the given stream key; an
// empty key selects DefaultRedisStream
func NewRedisStreamPublisher(client redis.UniversalClient, stream string) *RedisStreamPublisher {
	if stream == "" {
		stream = DefaultRedisStream
	}
	return &RedisStreamPublisher{client: client, stream: stream}
}

var _ EnvelopeSink = (*RedisStreamPublisher)(nil)

// Send implements EnvelopeSink
func (p *RedisStreamPublisher) Send(ctx context.Context, entry *shared.OutboxEntry) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_id":   entry.EventID.String(),
			"event_type": entry.EventType,
			"tenant_id":  entry.TenantID.String(),
			"stream_id":  entry.StreamID,
			"version":    entry.StreamVersion,
			"payload":    entry.Payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish event %s to redis stream %s: %w", entry.EventID, p.stream, err)
	}
	return nil
}
