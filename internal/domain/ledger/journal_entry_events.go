package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// JournalEntryEvent is the closed set of events a journal-entry stream can
// carry; the unexported marker keeps the fold exhaustive.
type JournalEntryEvent interface {
	shared.DomainEvent
	isJournalEntryEvent()
}

// JournalEntryCreatedEvent is raised when a draft entry is recorded
type JournalEntryCreatedEvent struct {
	shared.BaseDomainEvent
	JournalEntryID uuid.UUID     `json:"journal_entry_id"`
	Reference      string        `json:"reference"`
	Description    string        `json:"description"`
	PostingDate    time.Time     `json:"posting_date"`
	Lines          []JournalLine `json:"lines"`
	ReversalOf     uuid.UUID     `json:"reversal_of,omitempty"`
	CreatedBy      uuid.UUID     `json:"created_by"`
}

// EventType returns the event type name
func (e *JournalEntryCreatedEvent) EventType() string {
	return "JournalEntryCreated"
}

func (e *JournalEntryCreatedEvent) isJournalEntryEvent() {}

// NewJournalEntryCreatedEvent creates a new JournalEntryCreatedEvent scoped
// to the journal-entry-{id} stream
func NewJournalEntryCreatedEvent(entry *JournalEntry) *JournalEntryCreatedEvent {
	return &JournalEntryCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("JournalEntryCreated", shared.JournalEntryStream(entry.tenantID, entry.entryID)),
		JournalEntryID:  entry.entryID,
		Reference:       entry.reference,
		Description:     entry.description,
		PostingDate:     entry.postingDate,
		Lines:           entry.lines,
		ReversalOf:      entry.reversalOf,
		CreatedBy:       entry.createdBy,
	}
}

// JournalEntryApprovedEvent is raised when a draft entry is approved
type JournalEntryApprovedEvent struct {
	shared.BaseDomainEvent
	JournalEntryID uuid.UUID `json:"journal_entry_id"`
	ApprovedBy     uuid.UUID `json:"approved_by"`
	ApprovedAt     time.Time `json:"approved_at"`
}

// EventType returns the event type name
func (e *JournalEntryApprovedEvent) EventType() string {
	return "JournalEntryApproved"
}

func (e *JournalEntryApprovedEvent) isJournalEntryEvent() {}

// NewJournalEntryApprovedEvent creates a new JournalEntryApprovedEvent
func NewJournalEntryApprovedEvent(entry *JournalEntry, approvedBy uuid.UUID) *JournalEntryApprovedEvent {
	return &JournalEntryApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("JournalEntryApproved", shared.JournalEntryStream(entry.tenantID, entry.entryID)),
		JournalEntryID:  entry.entryID,
		ApprovedBy:      approvedBy,
		ApprovedAt:      time.Now().UTC(),
	}
}

// JournalEntryPostedEvent is raised when an approved entry becomes part of
// the books. Totals are included for projection consumers.
type JournalEntryPostedEvent struct {
	shared.BaseDomainEvent
	JournalEntryID uuid.UUID         `json:"journal_entry_id"`
	TotalDebit     valueobject.Money `json:"total_debit"`
	TotalCredit    valueobject.Money `json:"total_credit"`
	PostedBy       uuid.UUID         `json:"posted_by"`
	PostedAt       time.Time         `json:"posted_at"`
}

// EventType returns the event type name
func (e *JournalEntryPostedEvent) EventType() string {
	return "JournalEntryPosted"
}

func (e *JournalEntryPostedEvent) isJournalEntryEvent() {}

// NewJournalEntryPostedEvent creates a new JournalEntryPostedEvent
func NewJournalEntryPostedEvent(entry *JournalEntry, totalDebit, totalCredit valueobject.Money, postedBy uuid.UUID) *JournalEntryPostedEvent {
	return &JournalEntryPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("JournalEntryPosted", shared.JournalEntryStream(entry.tenantID, entry.entryID)),
		JournalEntryID:  entry.entryID,
		TotalDebit:      totalDebit,
		TotalCredit:     totalCredit,
		PostedBy:        postedBy,
		PostedAt:        time.Now().UTC(),
	}
}

// JournalEntryReversedEvent is raised on the original entry when a
// compensating entry has been posted against it. The original stream is
// never rewritten; this event is the only trace of the reversal on it.
type JournalEntryReversedEvent struct {
	shared.BaseDomainEvent
	JournalEntryID  uuid.UUID `json:"journal_entry_id"`
	ReversalEntryID uuid.UUID `json:"reversal_entry_id"`
	Reason          string    `json:"reason"`
	ReversedBy      uuid.UUID `json:"reversed_by"`
	ReversedAt      time.Time `json:"reversed_at"`
}

// EventType returns the event type name
func (e *JournalEntryReversedEvent) EventType() string {
	return "JournalEntryReversed"
}

func (e *JournalEntryReversedEvent) isJournalEntryEvent() {}

// NewJournalEntryReversedEvent creates a new JournalEntryReversedEvent
func NewJournalEntryReversedEvent(entry *JournalEntry, reversalEntryID uuid.UUID, reason string, reversedBy uuid.UUID) *JournalEntryReversedEvent {
	return &JournalEntryReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("JournalEntryReversed", shared.JournalEntryStream(entry.tenantID, entry.entryID)),
		JournalEntryID:  entry.entryID,
		ReversalEntryID: reversalEntryID,
		Reason:          reason,
		ReversedBy:      reversedBy,
		ReversedAt:      time.Now().UTC(),
	}
}
