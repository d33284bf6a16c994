package eventstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializer_RoundTrip(t *testing.T) {
	serializer := NewSerializer()
	tenantID := uuid.New()

	t.Run("account created event", func(t *testing.T) {
		original := ledger.NewAccountCreatedEvent(tenantID, ledger.Account{
			Code:           "1000",
			Name:           "Cash",
			Type:           ledger.AccountTypeAsset,
			PostingAllowed: true,
			Active:         true,
		}, uuid.New())

		data, err := serializer.Serialize(original, 7)
		require.NoError(t, err)

		stored, err := serializer.Deserialize(data)
		require.NoError(t, err)
		assert.Equal(t, int64(7), stored.Version)

		event, ok := stored.Event.(*ledger.AccountCreatedEvent)
		require.True(t, ok)
		assert.Equal(t, original.EventID(), event.EventID())
		assert.Equal(t, "AccountCreated", event.EventType())
		assert.Equal(t, tenantID, event.TenantID())
		assert.Equal(t, original.Stream(), event.Stream())
		assert.Equal(t, "1000", event.AccountCode)
		assert.Equal(t, "Cash", event.AccountName)
		assert.True(t, event.PostingAllowed)
		assert.True(t, original.OccurredAt().UTC().Equal(event.OccurredAt()))
	})

	t.Run("journal entry event keeps monetary precision", func(t *testing.T) {
		userID := uuid.New()
		entryID := uuid.New()
		usd := valueobject.USD
		debit, err := ledger.NewJournalLine("1000", valueobject.MustMoney(100050, usd), valueobject.Zero(usd), "cash in", "")
		require.NoError(t, err)
		credit, err := ledger.NewJournalLine("4000", valueobject.Zero(usd), valueobject.MustMoney(100050, usd), "", "")
		require.NoError(t, err)

		entry, err := ledger.NewJournalEntry(tenantID, entryID, "INV-001", "Invoice", time.Now().UTC(), userID, []ledger.JournalLine{debit, credit})
		require.NoError(t, err)

		data, err := serializer.Serialize(entry.UncommittedEvents()[0], 1)
		require.NoError(t, err)

		stored, err := serializer.Deserialize(data)
		require.NoError(t, err)
		event, ok := stored.Event.(*ledger.JournalEntryCreatedEvent)
		require.True(t, ok)
		assert.Equal(t, entryID, event.JournalEntryID)
		require.Len(t, event.Lines, 2)
		assert.Equal(t, int64(100050), event.Lines[0].Debit.MinorUnits())
		assert.Equal(t, usd, event.Lines[0].Currency())
		assert.Equal(t, "cash in", event.Lines[0].Description)
	})
}

func TestSerializer_EnvelopeShape(t *testing.T) {
	serializer := NewSerializer()
	tenantID := uuid.New()
	event := ledger.NewAccountCreatedEvent(tenantID, ledger.Account{
		Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset, Active: true,
	}, uuid.New())

	data, err := serializer.Serialize(event, 3)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, event.EventID(), env.ID)
	assert.Equal(t, tenantID, env.TenantID)
	assert.Equal(t, int64(3), env.Version)
	assert.Equal(t, "AccountCreated", env.EventType)
	assert.Equal(t, shared.StreamKindChartOfAccounts, env.StreamKind)
	assert.Equal(t, 1, env.SchemaVersion)
	assert.NotEmpty(t, env.Payload)
}

func TestSerializer_Errors(t *testing.T) {
	serializer := NewSerializer()

	t.Run("unknown event type", func(t *testing.T) {
		tenantID := uuid.New()
		env := Envelope{
			ID:            uuid.New(),
			StreamKind:    shared.StreamKindChartOfAccounts,
			StreamKey:     tenantID.String(),
			TenantID:      tenantID,
			Version:       1,
			EventType:     "SomethingElse",
			OccurredAt:    time.Now().UTC(),
			SchemaVersion: 1,
			Payload:       json.RawMessage(`{}`),
		}
		data, err := json.Marshal(env)
		require.NoError(t, err)
		_, err = serializer.Deserialize(data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown event type")
	})

	t.Run("malformed envelope", func(t *testing.T) {
		_, err := serializer.Deserialize([]byte("not json"))
		assert.Error(t, err)
	})

	t.Run("ledger event types are registered", func(t *testing.T) {
		for _, eventType := range []string{
			"AccountCreated", "AccountDeactivated", "AccountReactivated",
			"JournalEntryCreated", "JournalEntryApproved", "JournalEntryPosted", "JournalEntryReversed",
		} {
			assert.True(t, serializer.IsRegistered(eventType), eventType)
		}
	})
}
