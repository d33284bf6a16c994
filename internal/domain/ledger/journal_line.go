package ledger

import (
	"fmt"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
)

// JournalLine is one leg of a journal entry. Exactly one of Debit and Credit
// is strictly positive; the other is zero in the same currency.
type JournalLine struct {
	AccountCode string            `json:"account_code"`
	Debit       valueobject.Money `json:"debit"`
	Credit      valueobject.Money `json:"credit"`
	Description string            `json:"description,omitempty"`
	Reference   string            `json:"reference,omitempty"`
}

// NewJournalLine builds a validated line. Negative amounts and two-sided or
// empty lines are rejected here, before any aggregate is touched.
func NewJournalLine(accountCode string, debit, credit valueobject.Money, description, reference string) (JournalLine, error) {
	if accountCode == "" {
		return JournalLine{}, shared.NewDomainError("INVALID_LINE", "Journal line account code cannot be empty")
	}
	if debit.Currency() != credit.Currency() {
		return JournalLine{}, shared.NewDomainError("INVALID_LINE", fmt.Sprintf("Journal line for account %q mixes currencies %s and %s", accountCode, debit.Currency(), credit.Currency()))
	}
	if debit.IsNegative() || credit.IsNegative() {
		return JournalLine{}, shared.NewDomainError("INVALID_LINE", fmt.Sprintf("Journal line for account %q has a negative amount", accountCode))
	}
	if debit.IsPositive() == credit.IsPositive() {
		return JournalLine{}, shared.NewDomainError("INVALID_LINE", fmt.Sprintf("Journal line for account %q must have exactly one of debit or credit set", accountCode))
	}
	return JournalLine{
		AccountCode: accountCode,
		Debit:       debit,
		Credit:      credit,
		Description: description,
		Reference:   reference,
	}, nil
}

// IsDebit returns true when the line's positive side is the debit
func (l JournalLine) IsDebit() bool {
	return l.Debit.IsPositive()
}

// Amount returns the positive side of the line
func (l JournalLine) Amount() valueobject.Money {
	if l.IsDebit() {
		return l.Debit
	}
	return l.Credit
}

// Currency returns the line's currency
func (l JournalLine) Currency() valueobject.Currency {
	return l.Debit.Currency()
}

// Validate re-checks the per-line invariants. The aggregate runs this again
// at posting time as defense in depth against corruption introduced between
// command validation and persistence.
func (l JournalLine) Validate() error {
	_, err := NewJournalLine(l.AccountCode, l.Debit, l.Credit, l.Description, l.Reference)
	return err
}

// Reversed returns the compensating line with debit and credit swapped
func (l JournalLine) Reversed() JournalLine {
	return JournalLine{
		AccountCode: l.AccountCode,
		Debit:       l.Credit,
		Credit:      l.Debit,
		Description: l.Description,
		Reference:   l.Reference,
	}
}

// SumLines returns total debit and total credit across lines. All lines must
// share one currency; the zero totals take that currency.
func SumLines(lines []JournalLine) (debit, credit valueobject.Money, err error) {
	if len(lines) == 0 {
		return valueobject.Money{}, valueobject.Money{}, shared.NewDomainError("INVALID_LINE", "Journal entry has no lines")
	}
	currency := lines[0].Currency()
	debit = valueobject.Zero(currency)
	credit = valueobject.Zero(currency)
	for _, line := range lines {
		if debit, err = debit.Add(line.Debit); err != nil {
			return valueobject.Money{}, valueobject.Money{}, err
		}
		if credit, err = credit.Add(line.Credit); err != nil {
			return valueobject.Money{}, valueobject.Money{}, err
		}
	}
	return debit, credit, nil
}
