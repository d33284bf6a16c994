package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/eventstore"
	"github.com/erp/ledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteOutbox(t *testing.T) *GormOutboxRepository {
	t.Helper()
	db, err := persistence.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewGormOutboxRepository(db.DB)
	require.NoError(t, repo.AutoMigrate())
	return repo
}

func stagedEntries(t *testing.T, tenantID uuid.UUID, codes ...string) []*shared.OutboxEntry {
	t.Helper()
	serializer := eventstore.NewSerializer()
	events := accountEvents(t, tenantID, codes...)
	entries := make([]*shared.OutboxEntry, len(events))
	for i, ev := range events {
		version := int64(i + 1)
		payload, err := serializer.Serialize(ev, version)
		require.NoError(t, err)
		entries[i] = shared.NewOutboxEntry(ev, version, payload)
	}
	return entries
}

func TestGormOutboxRepository(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("save and fetch pending oldest first", func(t *testing.T) {
		repo := newSQLiteOutbox(t)
		entries := stagedEntries(t, tenantID, "1000", "2000", "3000")
		entries[0].CreatedAt = entries[0].CreatedAt.Add(-time.Minute)
		require.NoError(t, repo.Save(ctx, entries...))

		pending, err := repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 3)
		assert.Equal(t, entries[0].EventID, pending[0].EventID)
		assert.Equal(t, shared.OutboxStatusPending, pending[0].Status)
		assert.Equal(t, int64(1), pending[0].StreamVersion)
	})

	t.Run("fetch honors the limit", func(t *testing.T) {
		repo := newSQLiteOutbox(t)
		require.NoError(t, repo.Save(ctx, stagedEntries(t, tenantID, "1000", "2000", "3000")...))

		pending, err := repo.FetchPending(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, pending, 2)
	})

	t.Run("failed entries come back only after their backoff", func(t *testing.T) {
		repo := newSQLiteOutbox(t)
		entries := stagedEntries(t, tenantID, "1000")
		require.NoError(t, repo.Save(ctx, entries...))

		entry := entries[0]
		entry.MarkFailed("broker unavailable")
		require.Equal(t, shared.OutboxStatusFailed, entry.Status)
		require.NoError(t, repo.Update(ctx, entry))

		// Backoff still pending
		pending, err := repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		// Backoff elapsed
		past := time.Now().Add(-time.Second)
		entry.NextRetryAt = &past
		require.NoError(t, repo.Update(ctx, entry))

		pending, err = repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})

	t.Run("claiming moves entries to processing exactly once", func(t *testing.T) {
		repo := newSQLiteOutbox(t)
		entries := stagedEntries(t, tenantID, "1000", "2000")
		require.NoError(t, repo.Save(ctx, entries...))

		ids := []uuid.UUID{entries[0].ID, entries[1].ID}
		claimed, err := repo.MarkProcessing(ctx, ids)
		require.NoError(t, err)
		require.Len(t, claimed, 2)
		for _, entry := range claimed {
			assert.Equal(t, shared.OutboxStatusProcessing, entry.Status)
		}

		// A second claim finds nothing in a claimable status
		again, err := repo.MarkProcessing(ctx, ids)
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("sent entries age out of the table", func(t *testing.T) {
		repo := newSQLiteOutbox(t)
		entries := stagedEntries(t, tenantID, "1000", "2000")
		require.NoError(t, repo.Save(ctx, entries...))

		old := entries[0]
		old.MarkSent()
		past := time.Now().Add(-48 * time.Hour)
		old.ProcessedAt = &past
		require.NoError(t, repo.Update(ctx, old))

		deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[shared.OutboxStatusPending])
		assert.Zero(t, counts[shared.OutboxStatusSent])
	})
}

type capturingSink struct {
	entries []*shared.OutboxEntry
	err     error
}

func (s *capturingSink) Send(ctx context.Context, entry *shared.OutboxEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func TestOutboxProcessor_Delivery(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	config := DefaultOutboxProcessorConfig()

	t.Run("delivers claimed entries and marks them sent", func(t *testing.T) {
		repo := newSQLiteOutbox(t)
		require.NoError(t, repo.Save(ctx, stagedEntries(t, tenantID, "1000", "2000")...))

		sink := &capturingSink{}
		processor := NewOutboxProcessor(repo, sink, config, nil)
		processor.processBatch(ctx)

		assert.Len(t, sink.entries, 2)
		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts[shared.OutboxStatusSent])

		pending, err := repo.FetchPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("failed deliveries schedule a retry", func(t *testing.T) {
		repo := newSQLiteOutbox(t)
		require.NoError(t, repo.Save(ctx, stagedEntries(t, tenantID, "1000")...))

		sink := &capturingSink{err: errors.New("broker down")}
		processor := NewOutboxProcessor(repo, sink, config, nil)
		processor.processBatch(ctx)

		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[shared.OutboxStatusFailed])
	})

	t.Run("entries past their retry budget go dead", func(t *testing.T) {
		repo := newSQLiteOutbox(t)
		entries := stagedEntries(t, tenantID, "1000")
		entries[0].MaxRetries = 1
		require.NoError(t, repo.Save(ctx, entries...))

		sink := &capturingSink{err: errors.New("broker down")}
		processor := NewOutboxProcessor(repo, sink, config, nil)
		processor.processBatch(ctx)

		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[shared.OutboxStatusDead])
	})

	t.Run("start and stop drain cleanly", func(t *testing.T) {
		repo := newSQLiteOutbox(t)
		require.NoError(t, repo.Save(ctx, stagedEntries(t, tenantID, "1000")...))

		fast := config
		fast.PollInterval = 5 * time.Millisecond
		fast.CleanupEnabled = false

		sink := &capturingSink{}
		processor := NewOutboxProcessor(repo, sink, fast, nil)
		require.NoError(t, processor.Start(ctx))
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, processor.Stop(ctx))

		counts, err := repo.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[shared.OutboxStatusSent])
	})
}

func TestBusSink(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	serializer := eventstore.NewSerializer()

	t.Run("rebuilds the event and hands it to the bus", func(t *testing.T) {
		bus := NewInMemoryEventBus(nil)
		handler := &recordingHandler{}
		bus.Subscribe(handler, "AccountCreated")

		sink := NewBusSink(bus, serializer)
		entries := stagedEntries(t, tenantID, "1000")
		require.NoError(t, sink.Send(ctx, entries[0]))

		require.Len(t, handler.seen(), 1)
		assert.Equal(t, entries[0].EventID, handler.seen()[0].EventID())
	})

	t.Run("corrupt payloads fail without reaching the bus", func(t *testing.T) {
		bus := NewInMemoryEventBus(nil)
		handler := &recordingHandler{}
		bus.Subscribe(handler)

		sink := NewBusSink(bus, serializer)
		entries := stagedEntries(t, tenantID, "1000")
		entries[0].Payload = []byte("not an envelope")
		require.Error(t, sink.Send(ctx, entries[0]))
		assert.Empty(t, handler.seen())
	})
}
