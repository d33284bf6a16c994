package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func debitLine(t *testing.T, account string, minor int64, currency valueobject.Currency) JournalLine {
	t.Helper()
	line, err := NewJournalLine(account, valueobject.MustMoney(minor, currency), valueobject.Zero(currency), "", "")
	require.NoError(t, err)
	return line
}

func creditLine(t *testing.T, account string, minor int64, currency valueobject.Currency) JournalLine {
	t.Helper()
	line, err := NewJournalLine(account, valueobject.Zero(currency), valueobject.MustMoney(minor, currency), "", "")
	require.NoError(t, err)
	return line
}

func balancedLines(t *testing.T) []JournalLine {
	t.Helper()
	return []JournalLine{
		debitLine(t, "1000", 100000, valueobject.USD),
		creditLine(t, "2000", 100000, valueobject.USD),
	}
}

func TestNewJournalLine(t *testing.T) {
	t.Run("exactly one side must be positive", func(t *testing.T) {
		usd := valueobject.USD
		_, err := NewJournalLine("1000", valueobject.MustMoney(100, usd), valueobject.MustMoney(100, usd), "", "")
		assert.Error(t, err)

		_, err = NewJournalLine("1000", valueobject.Zero(usd), valueobject.Zero(usd), "", "")
		assert.Error(t, err)

		_, err = NewJournalLine("1000", valueobject.MustMoney(-100, usd), valueobject.Zero(usd), "", "")
		assert.Error(t, err)
	})

	t.Run("sides must share a currency", func(t *testing.T) {
		_, err := NewJournalLine("1000", valueobject.MustMoney(100, valueobject.USD), valueobject.Zero(valueobject.EUR), "", "")
		assert.Error(t, err)
	})

	t.Run("reversed swaps the sides", func(t *testing.T) {
		line := debitLine(t, "1000", 500, valueobject.USD)
		reversed := line.Reversed()
		assert.False(t, reversed.IsDebit())
		assert.Equal(t, int64(500), reversed.Credit.MinorUnits())
		assert.Equal(t, int64(0), reversed.Debit.MinorUnits())
	})
}

func TestValidateLines(t *testing.T) {
	t.Run("balanced two-line entry passes", func(t *testing.T) {
		assert.NoError(t, ValidateLines(balancedLines(t)))
	})

	t.Run("unbalanced entry reports exact totals", func(t *testing.T) {
		lines := []JournalLine{
			debitLine(t, "1000", 100000, valueobject.USD),
			creditLine(t, "2000", 50000, valueobject.USD),
		}
		err := ValidateLines(lines)
		require.Error(t, err)
		assert.Equal(t, "Journal entry is not balanced. Debit: 1000.00, Credit: 500.00, Difference: 500.00", err.Error())
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("fewer than two lines fails", func(t *testing.T) {
		assert.Error(t, ValidateLines(nil))
		assert.Error(t, ValidateLines([]JournalLine{debitLine(t, "1000", 100, valueobject.USD)}))
	})

	t.Run("needs at least one debit and one credit", func(t *testing.T) {
		err := ValidateLines([]JournalLine{
			debitLine(t, "1000", 100, valueobject.USD),
			debitLine(t, "2000", 100, valueobject.USD),
		})
		assert.Error(t, err)
	})

	t.Run("duplicate account codes fail", func(t *testing.T) {
		err := ValidateLines([]JournalLine{
			debitLine(t, "1000", 100, valueobject.USD),
			creditLine(t, "1000", 100, valueobject.USD),
		})
		assert.Error(t, err)
	})

	t.Run("mixed currencies fail", func(t *testing.T) {
		err := ValidateLines([]JournalLine{
			debitLine(t, "1000", 100, valueobject.USD),
			creditLine(t, "2000", 100, valueobject.EUR),
		})
		assert.Error(t, err)
	})
}

func TestNewJournalEntry(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	t.Run("creates a draft with one buffered event", func(t *testing.T) {
		entryID := uuid.New()
		entry, err := NewJournalEntry(tenantID, entryID, "INV-001", "Opening invoice", time.Now().UTC(), userID, balancedLines(t))
		require.NoError(t, err)

		assert.Equal(t, JournalEntryStatusDraft, entry.Status())
		assert.Equal(t, entryID, entry.EntryID())
		assert.Equal(t, tenantID, entry.TenantID())
		assert.Equal(t, int64(100000), entry.TotalDebit().MinorUnits())
		assert.Equal(t, int64(100000), entry.TotalCredit().MinorUnits())

		events := entry.UncommittedEvents()
		require.Len(t, events, 1)
		assert.Equal(t, "JournalEntryCreated", events[0].EventType())
		assert.Equal(t, int64(0), entry.ExpectedVersion())
	})

	t.Run("unbalanced lines are rejected at construction", func(t *testing.T) {
		lines := []JournalLine{
			debitLine(t, "1000", 100000, valueobject.USD),
			creditLine(t, "2000", 99999, valueobject.USD),
		}
		_, err := NewJournalEntry(tenantID, uuid.New(), "INV-002", "bad", time.Now().UTC(), userID, lines)
		assert.Error(t, err)
	})

	t.Run("required fields", func(t *testing.T) {
		lines := balancedLines(t)
		now := time.Now().UTC()
		_, err := NewJournalEntry(uuid.Nil, uuid.New(), "R", "D", now, userID, lines)
		assert.Error(t, err)
		_, err = NewJournalEntry(tenantID, uuid.Nil, "R", "D", now, userID, lines)
		assert.Error(t, err)
		_, err = NewJournalEntry(tenantID, uuid.New(), "", "D", now, userID, lines)
		assert.Error(t, err)
		_, err = NewJournalEntry(tenantID, uuid.New(), "R", "", now, userID, lines)
		assert.Error(t, err)
		_, err = NewJournalEntry(tenantID, uuid.New(), "R", "D", time.Time{}, userID, lines)
		assert.Error(t, err)
		_, err = NewJournalEntry(tenantID, uuid.New(), "R", "D", now, uuid.Nil, lines)
		assert.Error(t, err)
	})
}

func TestJournalEntry_Workflow(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	newDraft := func(t *testing.T) *JournalEntry {
		t.Helper()
		entry, err := NewJournalEntry(tenantID, uuid.New(), "INV-001", "Invoice", time.Now().UTC(), userID, balancedLines(t))
		require.NoError(t, err)
		return entry
	}

	t.Run("draft to approved to posted to reversed", func(t *testing.T) {
		entry := newDraft(t)

		require.NoError(t, entry.Approve(userID))
		assert.Equal(t, JournalEntryStatusApproved, entry.Status())

		require.NoError(t, entry.Post(userID))
		assert.Equal(t, JournalEntryStatusPosted, entry.Status())

		reversalID := uuid.New()
		require.NoError(t, entry.MarkReversed(reversalID, "correction", userID))
		assert.Equal(t, JournalEntryStatusReversed, entry.Status())
		assert.Equal(t, reversalID, entry.ReversedBy())

		events := entry.UncommittedEvents()
		require.Len(t, events, 4)
		assert.Equal(t, "JournalEntryCreated", events[0].EventType())
		assert.Equal(t, "JournalEntryApproved", events[1].EventType())
		assert.Equal(t, "JournalEntryPosted", events[2].EventType())
		assert.Equal(t, "JournalEntryReversed", events[3].EventType())
	})

	t.Run("skipping approval fails", func(t *testing.T) {
		entry := newDraft(t)
		err := entry.Post(userID)
		require.Error(t, err)

		var transition *InvalidStateTransitionError
		require.ErrorAs(t, err, &transition)
		assert.Equal(t, JournalEntryStatusDraft, transition.From)
		assert.Equal(t, JournalEntryStatusPosted, transition.To)
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
	})

	t.Run("approving twice fails", func(t *testing.T) {
		entry := newDraft(t)
		require.NoError(t, entry.Approve(userID))
		assert.Error(t, entry.Approve(userID))
	})

	t.Run("reversing a draft fails", func(t *testing.T) {
		entry := newDraft(t)
		assert.Error(t, entry.MarkReversed(uuid.New(), "too early", userID))
	})
}

func TestNewReversalEntry(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	postedEntry := func(t *testing.T) *JournalEntry {
		t.Helper()
		entry, err := NewJournalEntry(tenantID, uuid.New(), "INV-001", "Invoice", time.Now().UTC(), userID, balancedLines(t))
		require.NoError(t, err)
		require.NoError(t, entry.Approve(userID))
		require.NoError(t, entry.Post(userID))
		return entry
	}

	t.Run("swaps debit and credit and links the original", func(t *testing.T) {
		original := postedEntry(t)
		reversalID := uuid.New()

		reversal, err := NewReversalEntry(original, reversalID, "wrong amount", userID)
		require.NoError(t, err)

		assert.Equal(t, reversalID, reversal.EntryID())
		assert.Equal(t, original.EntryID(), reversal.ReversalOf())
		assert.Equal(t, "REV-INV-001", reversal.Reference())
		assert.Equal(t, JournalEntryStatusDraft, reversal.Status())

		lines := reversal.Lines()
		require.Len(t, lines, 2)
		assert.False(t, lines[0].IsDebit())
		assert.Equal(t, int64(100000), lines[0].Credit.MinorUnits())
		assert.True(t, lines[1].IsDebit())
		assert.Equal(t, int64(100000), lines[1].Debit.MinorUnits())

		// The reversal itself is a valid, postable entry
		require.NoError(t, reversal.Approve(userID))
		require.NoError(t, reversal.Post(userID))
	})

	t.Run("only posted entries can be reversed", func(t *testing.T) {
		draft, err := NewJournalEntry(tenantID, uuid.New(), "INV-002", "Draft", time.Now().UTC(), userID, balancedLines(t))
		require.NoError(t, err)

		_, err = NewReversalEntry(draft, uuid.New(), "no", userID)
		assert.Error(t, err)
	})
}

func TestLoadJournalEntry(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	t.Run("replay rebuilds workflow state", func(t *testing.T) {
		entryID := uuid.New()
		original, err := NewJournalEntry(tenantID, entryID, "INV-001", "Invoice", time.Now().UTC(), userID, balancedLines(t))
		require.NoError(t, err)
		require.NoError(t, original.Approve(userID))
		require.NoError(t, original.Post(userID))

		events := original.UncommittedEvents()
		replayed, err := LoadJournalEntry(tenantID, entryID, events, int64(len(events)))
		require.NoError(t, err)

		assert.Equal(t, JournalEntryStatusPosted, replayed.Status())
		assert.Equal(t, int64(3), replayed.Version())
		assert.Equal(t, original.TotalDebit().MinorUnits(), replayed.TotalDebit().MinorUnits())
		assert.Len(t, replayed.Lines(), 2)
		assert.Empty(t, replayed.UncommittedEvents())
	})

	t.Run("version lower than replayed events fails", func(t *testing.T) {
		entryID := uuid.New()
		original, err := NewJournalEntry(tenantID, entryID, "INV-001", "Invoice", time.Now().UTC(), userID, balancedLines(t))
		require.NoError(t, err)

		_, err = LoadJournalEntry(tenantID, entryID, original.UncommittedEvents(), 0)
		assert.Error(t, err)
	})
}

func TestJournalEntry_MarkCommitted(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	entry, err := NewJournalEntry(tenantID, uuid.New(), "INV-001", "Invoice", time.Now().UTC(), userID, balancedLines(t))
	require.NoError(t, err)
	require.NoError(t, entry.Approve(userID))

	t.Run("wrong committed version is rejected", func(t *testing.T) {
		assert.Error(t, entry.MarkCommitted(1))
	})

	t.Run("matching committed version advances and clears the buffer", func(t *testing.T) {
		require.NoError(t, entry.MarkCommitted(2))
		assert.Equal(t, int64(2), entry.Version())
		assert.Empty(t, entry.UncommittedEvents())
	})
}
