package ledger

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// JournalEntryStatus represents the posting workflow state of an entry
type JournalEntryStatus string

const (
	JournalEntryStatusDraft    JournalEntryStatus = "DRAFT"
	JournalEntryStatusApproved JournalEntryStatus = "APPROVED"
	JournalEntryStatusPosted   JournalEntryStatus = "POSTED"
	JournalEntryStatusReversed JournalEntryStatus = "REVERSED"
)

// IsValid checks if the status is a valid JournalEntryStatus
func (s JournalEntryStatus) IsValid() bool {
	switch s {
	case JournalEntryStatusDraft, JournalEntryStatusApproved,
		JournalEntryStatusPosted, JournalEntryStatusReversed:
		return true
	}
	return false
}

// String returns the string representation of JournalEntryStatus
func (s JournalEntryStatus) String() string {
	return string(s)
}

// CanTransitionTo returns true for the legal workflow edges:
// DRAFT -> APPROVED -> POSTED -> REVERSED
func (s JournalEntryStatus) CanTransitionTo(to JournalEntryStatus) bool {
	switch s {
	case JournalEntryStatusDraft:
		return to == JournalEntryStatusApproved
	case JournalEntryStatusApproved:
		return to == JournalEntryStatusPosted
	case JournalEntryStatusPosted:
		return to == JournalEntryStatusReversed
	}
	return false
}

// JournalEntry is the aggregate owning one double-entry posting. Its state is
// fully derived from the journal-entry-{id} stream; posting is append-only
// and reversal is a compensating operation, never a mutation of history.
type JournalEntry struct {
	shared.EventSourcedAggregate
	entryID     uuid.UUID
	tenantID    uuid.UUID
	reference   string
	description string
	postingDate time.Time
	createdBy   uuid.UUID
	lines       []JournalLine
	status      JournalEntryStatus
	reversalOf  uuid.UUID
	reversedBy  uuid.UUID

	// cached minor-unit sums, maintained by apply and re-derived at posting
	totalDebitMinor  int64
	totalCreditMinor int64
	currency         valueobject.Currency
}

// NewJournalEntry records a new draft entry. Lines must already be
// individually valid and collectively balanced; the structural checks here
// are the aggregate's own guarantee, independent of command validation.
func NewJournalEntry(tenantID, entryID uuid.UUID, reference, description string, postingDate time.Time, createdBy uuid.UUID, lines []JournalLine) (*JournalEntry, error) {
	entry, err := newEmptyJournalEntry(tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if reference == "" {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Journal entry reference cannot be empty")
	}
	if description == "" {
		return nil, shared.NewDomainError("INVALID_DESCRIPTION", "Journal entry description cannot be empty")
	}
	if postingDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_POSTING_DATE", "Journal entry posting date cannot be zero")
	}
	if createdBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "Journal entry creator cannot be empty")
	}
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}

	entry.reference = reference
	entry.description = description
	entry.postingDate = postingDate
	entry.createdBy = createdBy
	entry.lines = lines
	if err := entry.Raise(NewJournalEntryCreatedEvent(entry), entry.apply); err != nil {
		return nil, err
	}
	return entry, nil
}

// NewReversalEntry builds the compensating draft for a posted original:
// same lines with debit and credit swapped, linked by ReversalOf.
func NewReversalEntry(original *JournalEntry, reversalEntryID uuid.UUID, reason string, requestedBy uuid.UUID) (*JournalEntry, error) {
	if original.status != JournalEntryStatusPosted {
		return nil, &InvalidStateTransitionError{From: original.status, To: JournalEntryStatusReversed}
	}
	entry, err := newEmptyJournalEntry(original.tenantID, reversalEntryID)
	if err != nil {
		return nil, err
	}
	lines := make([]JournalLine, len(original.lines))
	for i, line := range original.lines {
		lines[i] = line.Reversed()
	}
	entry.reference = fmt.Sprintf("REV-%s", original.reference)
	entry.description = fmt.Sprintf("Reversal of %s: %s", original.reference, reason)
	entry.postingDate = time.Now().UTC()
	entry.createdBy = requestedBy
	entry.lines = lines
	entry.reversalOf = original.entryID
	if err := entry.Raise(NewJournalEntryCreatedEvent(entry), entry.apply); err != nil {
		return nil, err
	}
	return entry, nil
}

// LoadJournalEntry reconstructs the entry by folding its persisted events
func LoadJournalEntry(tenantID, entryID uuid.UUID, events []shared.DomainEvent, version int64) (*JournalEntry, error) {
	entry, err := newEmptyJournalEntry(tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if err := entry.LoadFromHistory(events, version, entry.apply); err != nil {
		return nil, err
	}
	return entry, nil
}

func newEmptyJournalEntry(tenantID, entryID uuid.UUID) (*JournalEntry, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if entryID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ENTRY_ID", "Journal entry ID cannot be empty")
	}
	return &JournalEntry{
		EventSourcedAggregate: shared.NewEventSourcedAggregate(shared.JournalEntryStream(tenantID, entryID)),
		entryID:               entryID,
		tenantID:              tenantID,
	}, nil
}

// EntryID returns the journal entry id
func (j *JournalEntry) EntryID() uuid.UUID { return j.entryID }

// TenantID returns the owning tenant
func (j *JournalEntry) TenantID() uuid.UUID { return j.tenantID }

// Status returns the current workflow status
func (j *JournalEntry) Status() JournalEntryStatus { return j.status }

// Reference returns the entry reference
func (j *JournalEntry) Reference() string { return j.reference }

// Lines returns the entry's lines
func (j *JournalEntry) Lines() []JournalLine { return j.lines }

// ReversalOf returns the original entry id when this entry is a reversal
func (j *JournalEntry) ReversalOf() uuid.UUID { return j.reversalOf }

// ReversedBy returns the reversing entry id once the entry is REVERSED
func (j *JournalEntry) ReversedBy() uuid.UUID { return j.reversedBy }

// TotalDebit returns the cached debit total
func (j *JournalEntry) TotalDebit() valueobject.Money {
	m, _ := valueobject.NewMoney(j.totalDebitMinor, j.currency)
	return m
}

// TotalCredit returns the cached credit total
func (j *JournalEntry) TotalCredit() valueobject.Money {
	m, _ := valueobject.NewMoney(j.totalCreditMinor, j.currency)
	return m
}

// Approve moves a draft entry to APPROVED
func (j *JournalEntry) Approve(approvedBy uuid.UUID) error {
	if approvedBy == uuid.Nil {
		return shared.NewDomainError("INVALID_USER", "Approver cannot be empty")
	}
	if !j.status.CanTransitionTo(JournalEntryStatusApproved) {
		return &InvalidStateTransitionError{From: j.status, To: JournalEntryStatusApproved}
	}
	return j.Raise(NewJournalEntryApprovedEvent(j, approvedBy), j.apply)
}

// Post moves an approved entry to POSTED. Totals are re-derived from the
// lines and the balance, non-zero and per-line exclusivity invariants are
// re-asserted; a violation here means state was corrupted after command
// validation (for example by a broken conversion) and is not recoverable.
func (j *JournalEntry) Post(postedBy uuid.UUID) error {
	if postedBy == uuid.Nil {
		return shared.NewDomainError("INVALID_USER", "Poster cannot be empty")
	}
	if !j.status.CanTransitionTo(JournalEntryStatusPosted) {
		return &InvalidStateTransitionError{From: j.status, To: JournalEntryStatusPosted}
	}

	totalDebit, totalCredit, err := SumLines(j.lines)
	if err != nil {
		return fmt.Errorf("%w: %s", shared.ErrInvariantViolation, err)
	}
	for _, line := range j.lines {
		if err := line.Validate(); err != nil {
			return fmt.Errorf("%w: %s", shared.ErrInvariantViolation, err)
		}
	}
	if totalDebit.MinorUnits() != j.totalDebitMinor || totalCredit.MinorUnits() != j.totalCreditMinor {
		return fmt.Errorf("%w: cached totals diverged from line totals", shared.ErrInvariantViolation)
	}
	if !totalDebit.Equal(totalCredit) {
		return fmt.Errorf("%w: %s", shared.ErrInvariantViolation, (&UnbalancedEntryError{Debit: totalDebit, Credit: totalCredit}).Error())
	}
	if totalDebit.IsZero() {
		return fmt.Errorf("%w: journal entry total cannot be zero", shared.ErrInvariantViolation)
	}

	return j.Raise(NewJournalEntryPostedEvent(j, totalDebit, totalCredit, postedBy), j.apply)
}

// MarkReversed records that a compensating entry has been posted against
// this one. Only POSTED entries can be reversed.
func (j *JournalEntry) MarkReversed(reversalEntryID uuid.UUID, reason string, reversedBy uuid.UUID) error {
	if reversalEntryID == uuid.Nil {
		return shared.NewDomainError("INVALID_ENTRY_ID", "Reversal entry ID cannot be empty")
	}
	if !j.status.CanTransitionTo(JournalEntryStatusReversed) {
		return &InvalidStateTransitionError{From: j.status, To: JournalEntryStatusReversed}
	}
	return j.Raise(NewJournalEntryReversedEvent(j, reversalEntryID, reason, reversedBy), j.apply)
}

// ValidateLines asserts the double-entry invariants over a line set: at
// least two lines, at least one debit and one credit, no duplicate account
// codes, single currency, and debits equal to credits with a non-zero total.
// Command construction runs this before any aggregate exists; the aggregate
// runs it again when recording the entry.
func ValidateLines(lines []JournalLine) error {
	if len(lines) < 2 {
		return shared.NewDomainError("INVALID_LINES", "Journal entry must have at least two lines")
	}
	seen := make(map[string]struct{}, len(lines))
	hasDebit, hasCredit := false, false
	currency := lines[0].Currency()
	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return err
		}
		if line.Currency() != currency {
			return shared.NewDomainError("INVALID_LINES", fmt.Sprintf("All lines must share one currency; found %s and %s", currency, line.Currency()))
		}
		if _, dup := seen[line.AccountCode]; dup {
			return shared.NewDomainError("DUPLICATE_LINE_ACCOUNT", fmt.Sprintf("Account %q appears more than once in the entry", line.AccountCode))
		}
		seen[line.AccountCode] = struct{}{}
		if line.IsDebit() {
			hasDebit = true
		} else {
			hasCredit = true
		}
	}
	if !hasDebit || !hasCredit {
		return shared.NewDomainError("INVALID_LINES", "Journal entry must have at least one debit line and one credit line")
	}
	totalDebit, totalCredit, err := SumLines(lines)
	if err != nil {
		return err
	}
	if !totalDebit.Equal(totalCredit) {
		return &UnbalancedEntryError{Debit: totalDebit, Credit: totalCredit}
	}
	if totalDebit.IsZero() {
		return shared.NewDomainError("INVALID_LINES", "Journal entry total cannot be zero")
	}
	return nil
}

// apply folds one event into the entry's state; exhaustive over the sealed
// JournalEntryEvent set.
func (j *JournalEntry) apply(event shared.DomainEvent) error {
	switch e := event.(type) {
	case *JournalEntryCreatedEvent:
		j.reference = e.Reference
		j.description = e.Description
		j.postingDate = e.PostingDate
		j.createdBy = e.CreatedBy
		j.lines = e.Lines
		j.reversalOf = e.ReversalOf
		j.status = JournalEntryStatusDraft
		j.totalDebitMinor, j.totalCreditMinor = 0, 0
		if len(e.Lines) > 0 {
			j.currency = e.Lines[0].Currency()
		}
		for _, line := range e.Lines {
			j.totalDebitMinor += line.Debit.MinorUnits()
			j.totalCreditMinor += line.Credit.MinorUnits()
		}
	case *JournalEntryApprovedEvent:
		j.status = JournalEntryStatusApproved
	case *JournalEntryPostedEvent:
		j.status = JournalEntryStatusPosted
	case *JournalEntryReversedEvent:
		j.status = JournalEntryStatusReversed
		j.reversedBy = e.ReversalEntryID
	default:
		return shared.NewDomainError("UNKNOWN_EVENT", fmt.Sprintf("Event %q does not belong to a journal-entry stream", event.EventType()))
	}
	return nil
}
