package ledger

import (
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
)

// DuplicateAccountError reports an account code that already exists in the
// tenant's chart of accounts
type DuplicateAccountError struct {
	AccountCode string
}

// Error implements the error interface
func (e *DuplicateAccountError) Error() string {
	return fmt.Sprintf("Account code %q already exists in this chart of accounts", e.AccountCode)
}

// Unwrap maps the error into the shared taxonomy
func (e *DuplicateAccountError) Unwrap() error {
	return shared.ErrAlreadyExists
}

// InvalidStateTransitionError reports an illegal journal entry status change
type InvalidStateTransitionError struct {
	From JournalEntryStatus
	To   JournalEntryStatus
}

// Error implements the error interface
func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("Journal entry cannot transition from %s to %s", e.From, e.To)
}

// Unwrap maps the error into the shared taxonomy
func (e *InvalidStateTransitionError) Unwrap() error {
	return shared.ErrInvalidState
}

// UnbalancedEntryError reports a double-entry balance violation with the
// exact totals so callers can surface an actionable message
type UnbalancedEntryError struct {
	Debit  valueobject.Money
	Credit valueobject.Money
}

// Error implements the error interface
func (e *UnbalancedEntryError) Error() string {
	diff, err := e.Debit.Subtract(e.Credit)
	if err != nil {
		// Mixed-currency totals cannot happen past line validation
		return fmt.Sprintf("Journal entry is not balanced. Debit: %s, Credit: %s", e.Debit.FormatMajor(), e.Credit.FormatMajor())
	}
	return fmt.Sprintf("Journal entry is not balanced. Debit: %s, Credit: %s, Difference: %s",
		e.Debit.FormatMajor(), e.Credit.FormatMajor(), diff.Abs().FormatMajor())
}

// Unwrap maps the error into the shared taxonomy
func (e *UnbalancedEntryError) Unwrap() error {
	return shared.ErrInvalidInput
}

// ExchangeRateNotFoundError reports a missing rate for a currency pair on a
// given date. A posting that needs the rate aborts wholesale.
type ExchangeRateNotFoundError struct {
	From valueobject.Currency
	To   valueobject.Currency
	On   time.Time
}

// Error implements the error interface
func (e *ExchangeRateNotFoundError) Error() string {
	return fmt.Sprintf("No exchange rate from %s to %s on %s", e.From, e.To, e.On.Format("2006-01-02"))
}

// Unwrap maps the error into the shared taxonomy
func (e *ExchangeRateNotFoundError) Unwrap() error {
	return shared.ErrNotFound
}

// AccountsNotFoundError reports account codes referenced by a posting that do
// not exist in the tenant's chart of accounts
type AccountsNotFoundError struct {
	TenantScope string
	Codes       []string
}

// Error implements the error interface
func (e *AccountsNotFoundError) Error() string {
	return fmt.Sprintf("Accounts not found: %v", e.Codes)
}

// Unwrap maps the error into the shared taxonomy
func (e *AccountsNotFoundError) Unwrap() error {
	return shared.ErrNotFound
}
