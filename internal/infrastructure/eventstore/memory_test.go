package eventstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chartEvents(t *testing.T, tenantID uuid.UUID, codes ...string) []shared.DomainEvent {
	t.Helper()
	chart, err := ledger.NewChartOfAccounts(tenantID)
	require.NoError(t, err)
	for _, code := range codes {
		require.NoError(t, chart.CreateAccount(code, "Account "+code, ledger.AccountTypeAsset, "", true, ledger.SpecialAccountNone, uuid.New()))
	}
	return chart.UncommittedEvents()
}

func TestMemoryStore_Append(t *testing.T) {
	ctx := context.Background()

	t.Run("first append starts the stream at version 1", func(t *testing.T) {
		store := NewMemoryStore()
		tenantID := uuid.New()
		stream := shared.ChartOfAccountsStream(tenantID)

		committed, err := store.Append(ctx, stream, chartEvents(t, tenantID, "1000", "2000"), 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), committed)

		stored, err := store.Events(ctx, stream, 0)
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Equal(t, int64(1), stored[0].Version)
		assert.Equal(t, int64(2), stored[1].Version)
	})

	t.Run("subsequent appends continue the version sequence", func(t *testing.T) {
		store := NewMemoryStore()
		tenantID := uuid.New()
		stream := shared.ChartOfAccountsStream(tenantID)

		_, err := store.Append(ctx, stream, chartEvents(t, tenantID, "1000"), 0)
		require.NoError(t, err)
		committed, err := store.Append(ctx, stream, chartEvents(t, tenantID, "2000"), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), committed)
	})

	t.Run("stale expected version conflicts and writes nothing", func(t *testing.T) {
		store := NewMemoryStore()
		tenantID := uuid.New()
		stream := shared.ChartOfAccountsStream(tenantID)

		_, err := store.Append(ctx, stream, chartEvents(t, tenantID, "1000"), 0)
		require.NoError(t, err)

		_, err = store.Append(ctx, stream, chartEvents(t, tenantID, "2000"), 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
		assert.Contains(t, err.Error(), "at version 1, append expected 0")

		stored, err := store.Events(ctx, stream, 0)
		require.NoError(t, err)
		assert.Len(t, stored, 1)
	})

	t.Run("structural validation fails fast", func(t *testing.T) {
		store := NewMemoryStore()
		tenantID := uuid.New()
		stream := shared.ChartOfAccountsStream(tenantID)

		_, err := store.Append(ctx, stream, nil, 0)
		assert.Error(t, err)

		_, err = store.Append(ctx, stream, chartEvents(t, tenantID, "1000"), -1)
		assert.Error(t, err)
	})

	t.Run("an event for another stream is rejected", func(t *testing.T) {
		store := NewMemoryStore()
		tenantID := uuid.New()
		stream := shared.ChartOfAccountsStream(tenantID)

		foreign := chartEvents(t, uuid.New(), "1000")
		_, err := store.Append(ctx, stream, foreign, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrStreamMismatch))

		stored, err := store.Events(ctx, stream, 0)
		require.NoError(t, err)
		assert.Empty(t, stored)
	})
}

func TestMemoryStore_Events(t *testing.T) {
	ctx := context.Background()

	t.Run("absent stream yields an empty result", func(t *testing.T) {
		store := NewMemoryStore()
		stored, err := store.Events(ctx, shared.ChartOfAccountsStream(uuid.New()), 0)
		require.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("fromVersion filters already-seen events", func(t *testing.T) {
		store := NewMemoryStore()
		tenantID := uuid.New()
		stream := shared.ChartOfAccountsStream(tenantID)

		_, err := store.Append(ctx, stream, chartEvents(t, tenantID, "1000", "2000", "3000"), 0)
		require.NoError(t, err)

		stored, err := store.Events(ctx, stream, 2)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.Equal(t, int64(3), stored[0].Version)
	})

	t.Run("tenants never see each other's streams", func(t *testing.T) {
		store := NewMemoryStore()
		tenantA := uuid.New()
		tenantB := uuid.New()

		_, err := store.Append(ctx, shared.ChartOfAccountsStream(tenantA), chartEvents(t, tenantA, "1000"), 0)
		require.NoError(t, err)

		stored, err := store.Events(ctx, shared.ChartOfAccountsStream(tenantB), 0)
		require.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("different streams append independently", func(t *testing.T) {
		store := NewMemoryStore()
		tenantID := uuid.New()

		// Expected version 0 holds for each stream separately
		_, err := store.Append(ctx, shared.ChartOfAccountsStream(tenantID), chartEvents(t, tenantID, "1000"), 0)
		require.NoError(t, err)

		other := uuid.New()
		_, err = store.Append(ctx, shared.ChartOfAccountsStream(other), chartEvents(t, other, "1000"), 0)
		require.NoError(t, err)
	})
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	// Exactly one of N racing appends at the same expected version wins
	store := NewMemoryStore()
	tenantID := uuid.New()
	stream := shared.ChartOfAccountsStream(tenantID)
	ctx := context.Background()

	const racers = 8
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		code := fmt.Sprintf("%d000", i+1)
		go func() {
			_, err := store.Append(ctx, stream, chartEvents(t, tenantID, code), 0)
			results <- err
		}()
	}

	var wins, conflicts int
	for i := 0; i < racers; i++ {
		if err := <-results; err == nil {
			wins++
		} else {
			require.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)

	stored, err := store.Events(ctx, stream, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
