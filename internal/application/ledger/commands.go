// Package ledger contains the application services that orchestrate the
// event-sourced ledger aggregates: command validation, currency conversion,
// posting and reversal. Services load aggregates from the event store,
// invoke domain behavior and append the resulting events with optimistic
// concurrency checks.
package ledger

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateAccountCommand is the validated request to add an account to a
// tenant's chart of accounts. Build it with NewCreateAccountCommand; a zero
// value is not usable.
type CreateAccountCommand struct {
	TenantID       uuid.UUID                `validate:"required"`
	UserID         uuid.UUID                `validate:"required"`
	AccountCode    string                   `validate:"required,max=20"`
	AccountName    string                   `validate:"required,max=100"`
	AccountType    ledger.AccountType       `validate:"required"`
	ParentCode     string                   `validate:"omitempty,max=20"`
	PostingAllowed bool                     `validate:"-"`
	Special        ledger.SpecialAccountTag `validate:"-"`
}

// NewCreateAccountCommand validates the raw input and builds the command
func NewCreateAccountCommand(tenantID, userID uuid.UUID, code, name string, accountType ledger.AccountType, parentCode string, postingAllowed bool, special ledger.SpecialAccountTag) (CreateAccountCommand, error) {
	cmd := CreateAccountCommand{
		TenantID:       tenantID,
		UserID:         userID,
		AccountCode:    code,
		AccountName:    name,
		AccountType:    accountType,
		ParentCode:     parentCode,
		PostingAllowed: postingAllowed,
		Special:        special,
	}
	if err := validate.Struct(cmd); err != nil {
		return CreateAccountCommand{}, shared.NewDomainError("INVALID_COMMAND", fmt.Sprintf("Invalid create account command: %v", err))
	}
	if !accountType.IsValid() {
		return CreateAccountCommand{}, shared.NewDomainError("INVALID_ACCOUNT_TYPE", fmt.Sprintf("Invalid account type: %s", accountType))
	}
	if !special.IsValid() {
		return CreateAccountCommand{}, shared.NewDomainError("INVALID_ACCOUNT_TAG", fmt.Sprintf("Invalid special account tag: %s", special))
	}
	return cmd, nil
}

// JournalLineInput is the raw, untrusted shape of one journal line as a
// caller submits it: major-unit decimal amounts and a currency code string.
type JournalLineInput struct {
	AccountCode  string          `validate:"required,max=20"`
	DebitAmount  decimal.Decimal `validate:"-"`
	CreditAmount decimal.Decimal `validate:"-"`
	CurrencyCode string          `validate:"required,len=3"`
	Description  string          `validate:"max=255"`
	Reference    string          `validate:"max=100"`
}

// PostJournalEntryCommand is the validated request to record and post a
// journal entry. Lines have passed per-line validation (exactly one positive
// side, known currency, no excess decimal places) and set-level validation
// (two or more lines, one currency, unique accounts, balanced). Build it
// with NewPostJournalEntryCommand.
type PostJournalEntryCommand struct {
	JournalEntryID uuid.UUID `validate:"required"`
	TenantID       uuid.UUID `validate:"required"`
	UserID         uuid.UUID `validate:"required"`
	Reference      string    `validate:"required,max=100"`
	Description    string    `validate:"required,max=255"`
	PostingDate    time.Time `validate:"required"`
	Lines          []ledger.JournalLine
}

// NewPostJournalEntryCommand validates the raw input and builds the command.
// This is the first of the two validation phases; the aggregate re-asserts
// the same invariants when the entry is recorded and again at posting.
func NewPostJournalEntryCommand(entryID, tenantID, userID uuid.UUID, reference, description string, postingDate time.Time, lineInputs []JournalLineInput) (PostJournalEntryCommand, error) {
	if len(lineInputs) < 2 {
		return PostJournalEntryCommand{}, shared.NewDomainError("INVALID_LINES", fmt.Sprintf("Journal entry must have at least 2 lines, got %d", len(lineInputs)))
	}

	lines := make([]ledger.JournalLine, 0, len(lineInputs))
	for i, input := range lineInputs {
		if err := validate.Struct(input); err != nil {
			return PostJournalEntryCommand{}, shared.NewDomainError("INVALID_LINE", fmt.Sprintf("Invalid journal line %d: %v", i+1, err))
		}
		line, err := buildLine(input)
		if err != nil {
			return PostJournalEntryCommand{}, err
		}
		lines = append(lines, line)
	}
	if err := ledger.ValidateLines(lines); err != nil {
		return PostJournalEntryCommand{}, err
	}

	cmd := PostJournalEntryCommand{
		JournalEntryID: entryID,
		TenantID:       tenantID,
		UserID:         userID,
		Reference:      reference,
		Description:    description,
		PostingDate:    postingDate,
		Lines:          lines,
	}
	if err := validate.StructExcept(cmd, "Lines"); err != nil {
		return PostJournalEntryCommand{}, shared.NewDomainError("INVALID_COMMAND", fmt.Sprintf("Invalid post journal entry command: %v", err))
	}
	return cmd, nil
}

// buildLine converts one raw line input into a domain line. Amounts with
// more fractional digits than the currency defines are rejected here, never
// rounded.
func buildLine(input JournalLineInput) (ledger.JournalLine, error) {
	currency, err := valueobject.ParseCurrency(input.CurrencyCode)
	if err != nil {
		return ledger.JournalLine{}, shared.NewDomainError("INVALID_CURRENCY", fmt.Sprintf("Journal line for account %q: %v", input.AccountCode, err))
	}
	debit, err := valueobject.NewMoneyFromDecimal(input.DebitAmount, currency)
	if err != nil {
		return ledger.JournalLine{}, shared.NewDomainError("INVALID_AMOUNT", fmt.Sprintf("Journal line for account %q: %v", input.AccountCode, err))
	}
	credit, err := valueobject.NewMoneyFromDecimal(input.CreditAmount, currency)
	if err != nil {
		return ledger.JournalLine{}, shared.NewDomainError("INVALID_AMOUNT", fmt.Sprintf("Journal line for account %q: %v", input.AccountCode, err))
	}
	return ledger.NewJournalLine(input.AccountCode, debit, credit, input.Description, input.Reference)
}

// ReverseJournalEntryCommand is the validated request to reverse a posted
// entry with a compensating entry
type ReverseJournalEntryCommand struct {
	TenantID        uuid.UUID `validate:"required"`
	UserID          uuid.UUID `validate:"required"`
	JournalEntryID  uuid.UUID `validate:"required"`
	ReversalEntryID uuid.UUID `validate:"required"`
	Reason          string    `validate:"required,max=255"`
}

// NewReverseJournalEntryCommand validates the raw input and builds the
// command. A zero reversalEntryID asks the service to assign one.
func NewReverseJournalEntryCommand(tenantID, userID, entryID, reversalEntryID uuid.UUID, reason string) (ReverseJournalEntryCommand, error) {
	if reversalEntryID == uuid.Nil {
		reversalEntryID = uuid.New()
	}
	cmd := ReverseJournalEntryCommand{
		TenantID:        tenantID,
		UserID:          userID,
		JournalEntryID:  entryID,
		ReversalEntryID: reversalEntryID,
		Reason:          reason,
	}
	if err := validate.Struct(cmd); err != nil {
		return ReverseJournalEntryCommand{}, shared.NewDomainError("INVALID_COMMAND", fmt.Sprintf("Invalid reverse journal entry command: %v", err))
	}
	if entryID == reversalEntryID {
		return ReverseJournalEntryCommand{}, shared.NewDomainError("INVALID_COMMAND", "Reversal entry ID cannot equal the original entry ID")
	}
	return cmd, nil
}
