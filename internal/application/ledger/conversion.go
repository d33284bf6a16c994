package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// CurrencyConverter converts journal lines into the functional currency and
// repairs the rounding residue so converted entries stay balanced to the
// minor unit.
type CurrencyConverter struct {
	rates ledger.ExchangeRateProvider
}

// NewCurrencyConverter creates a converter over an exchange rate provider
func NewCurrencyConverter(rates ledger.ExchangeRateProvider) *CurrencyConverter {
	return &CurrencyConverter{rates: rates}
}

// ConvertAmount converts one amount to the target currency on a date.
// Same-currency conversion is the identity and never consults the provider.
// Rounding is half away from zero to the target currency's decimal places.
func (c *CurrencyConverter) ConvertAmount(ctx context.Context, amount valueobject.Money, target valueobject.Currency, on time.Time) (valueobject.Money, error) {
	if amount.Currency() == target {
		return amount, nil
	}
	rate, err := c.rates.Rate(ctx, amount.Currency(), target, on)
	if err != nil {
		return valueobject.Money{}, err
	}
	return convertWithRate(amount, rate, target)
}

// ConvertLines converts a balanced, single-currency line set to the target
// currency. Each line is rounded independently, so the converted totals can
// disagree by a few minor units; the residue is folded into the
// largest-magnitude line on the deficient side (first such line on a tie).
// The adjustment never flips a line's side and the result is balanced
// exactly, or the conversion fails.
func (c *CurrencyConverter) ConvertLines(ctx context.Context, lines []ledger.JournalLine, target valueobject.Currency, on time.Time) ([]ledger.JournalLine, error) {
	if len(lines) == 0 {
		return nil, shared.NewDomainError("INVALID_LINES", "Cannot convert an empty line set")
	}
	source := lines[0].Currency()
	if source == target {
		return lines, nil
	}
	rate, err := c.rates.Rate(ctx, source, target, on)
	if err != nil {
		return nil, err
	}
	if !rate.IsPositive() {
		return nil, shared.NewDomainError("INVALID_RATE", fmt.Sprintf("Exchange rate from %s to %s must be positive, got %s", source, target, rate))
	}

	converted := make([]ledger.JournalLine, len(lines))
	for i, line := range lines {
		if line.Currency() != source {
			return nil, shared.NewDomainError("INVALID_LINES", fmt.Sprintf("Journal line for account %q is in %s, expected %s", line.AccountCode, line.Currency(), source))
		}
		amount, err := convertWithRate(line.Amount(), rate, target)
		if err != nil {
			return nil, err
		}
		if amount.IsZero() {
			return nil, shared.NewDomainError("AMOUNT_TOO_SMALL", fmt.Sprintf("Journal line for account %q converts to zero in %s", line.AccountCode, target))
		}
		debit, credit := valueobject.Zero(target), valueobject.Zero(target)
		if line.IsDebit() {
			debit = amount
		} else {
			credit = amount
		}
		converted[i], err = ledger.NewJournalLine(line.AccountCode, debit, credit, line.Description, line.Reference)
		if err != nil {
			return nil, err
		}
	}

	if err := rebalance(converted, target); err != nil {
		return nil, err
	}
	return converted, nil
}

// convertWithRate multiplies in exact decimal space and rounds once, half
// away from zero, to the target currency's decimal places
func convertWithRate(amount valueobject.Money, rate decimal.Decimal, target valueobject.Currency) (valueobject.Money, error) {
	return valueobject.NewMoneyFromDecimalRounded(amount.Decimal().Mul(rate), target)
}

// rebalance folds the post-rounding residue into one line so that total
// debits equal total credits again. The residue goes to the side that came
// up short, onto that side's largest line; scanning in order and moving only
// on a strictly larger amount picks the first line on a tie, so the choice
// is deterministic for a given line order.
func rebalance(lines []ledger.JournalLine, target valueobject.Currency) error {
	debit, credit, err := ledger.SumLines(lines)
	if err != nil {
		return err
	}
	residue := debit.MinorUnits() - credit.MinorUnits()
	if residue == 0 {
		return nil
	}

	wantDebit := residue < 0
	idx := -1
	var max int64
	for i, line := range lines {
		if line.IsDebit() != wantDebit {
			continue
		}
		if amount := line.Amount().MinorUnits(); amount > max {
			max = amount
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: no %s line to absorb a %d minor-unit rounding residue",
			shared.ErrInvariantViolation, sideName(wantDebit), residue)
	}

	adjustment, err := valueobject.NewMoney(absInt64(residue), target)
	if err != nil {
		return err
	}
	adjusted := lines[idx]
	if wantDebit {
		adjusted.Debit = adjusted.Debit.MustAdd(adjustment)
	} else {
		adjusted.Credit = adjusted.Credit.MustAdd(adjustment)
	}
	if err := adjusted.Validate(); err != nil {
		return fmt.Errorf("%w: rounding adjustment corrupted the line for account %q: %v",
			shared.ErrInvariantViolation, adjusted.AccountCode, err)
	}
	lines[idx] = adjusted

	debit, credit, err = ledger.SumLines(lines)
	if err != nil {
		return err
	}
	if debit.MinorUnits() != credit.MinorUnits() {
		return fmt.Errorf("%w: converted entry still unbalanced after rebalancing, debit %s credit %s",
			shared.ErrInvariantViolation, debit, credit)
	}
	return nil
}

func sideName(debit bool) string {
	if debit {
		return "debit"
	}
	return "credit"
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
