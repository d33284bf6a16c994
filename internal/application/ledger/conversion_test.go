package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	domainledger "github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRates struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (s *stubRates) Rate(ctx context.Context, from, to valueobject.Currency, on time.Time) (decimal.Decimal, error) {
	s.calls++
	if s.err != nil {
		return decimal.Decimal{}, s.err
	}
	return s.rate, nil
}

func majorDebit(t *testing.T, account, amount string, currency valueobject.Currency) domainledger.JournalLine {
	t.Helper()
	m, err := valueobject.ParseMajor(amount, currency)
	require.NoError(t, err)
	line, err := domainledger.NewJournalLine(account, m, valueobject.Zero(currency), "", "")
	require.NoError(t, err)
	return line
}

func majorCredit(t *testing.T, account, amount string, currency valueobject.Currency) domainledger.JournalLine {
	t.Helper()
	m, err := valueobject.ParseMajor(amount, currency)
	require.NoError(t, err)
	line, err := domainledger.NewJournalLine(account, valueobject.Zero(currency), m, "", "")
	require.NoError(t, err)
	return line
}

func sumMinor(t *testing.T, lines []domainledger.JournalLine) (debit, credit int64) {
	t.Helper()
	d, c, err := domainledger.SumLines(lines)
	require.NoError(t, err)
	return d.MinorUnits(), c.MinorUnits()
}

func TestCurrencyConverter_ConvertAmount(t *testing.T) {
	now := time.Now().UTC()

	t.Run("same currency is the identity and skips the provider", func(t *testing.T) {
		rates := &stubRates{err: errors.New("should not be called")}
		converter := NewCurrencyConverter(rates)

		amount := valueobject.MustMoney(12345, valueobject.USD)
		got, err := converter.ConvertAmount(context.Background(), amount, valueobject.USD, now)
		require.NoError(t, err)
		assert.True(t, got.Equal(amount))
		assert.Zero(t, rates.calls)
	})

	t.Run("applies the rate with half-away-from-zero rounding", func(t *testing.T) {
		rates := &stubRates{rate: decimal.RequireFromString("0.925")}
		converter := NewCurrencyConverter(rates)

		// 10.10 USD * 0.925 = 9.3425 EUR rounds to 9.34
		got, err := converter.ConvertAmount(context.Background(), valueobject.MustMoney(1010, valueobject.USD), valueobject.EUR, now)
		require.NoError(t, err)
		assert.Equal(t, int64(934), got.MinorUnits())
		assert.Equal(t, valueobject.EUR, got.Currency())
	})

	t.Run("propagates provider errors", func(t *testing.T) {
		lookupErr := &domainledger.ExchangeRateNotFoundError{}
		rates := &stubRates{err: lookupErr}
		converter := NewCurrencyConverter(rates)

		_, err := converter.ConvertAmount(context.Background(), valueobject.MustMoney(100, valueobject.USD), valueobject.EUR, now)
		assert.Error(t, err)
	})
}

func TestCurrencyConverter_ConvertLines(t *testing.T) {
	now := time.Now().UTC()

	t.Run("same currency returns the lines untouched", func(t *testing.T) {
		rates := &stubRates{err: errors.New("should not be called")}
		converter := NewCurrencyConverter(rates)

		lines := []domainledger.JournalLine{
			majorDebit(t, "1000", "100.00", valueobject.USD),
			majorCredit(t, "4000", "100.00", valueobject.USD),
		}
		got, err := converter.ConvertLines(context.Background(), lines, valueobject.USD, now)
		require.NoError(t, err)
		assert.Equal(t, lines, got)
		assert.Zero(t, rates.calls)
	})

	t.Run("looks the rate up once per line set", func(t *testing.T) {
		rates := &stubRates{rate: decimal.RequireFromString("2")}
		converter := NewCurrencyConverter(rates)

		lines := []domainledger.JournalLine{
			majorDebit(t, "1000", "100.00", valueobject.USD),
			majorCredit(t, "4000", "60.00", valueobject.USD),
			majorCredit(t, "4100", "40.00", valueobject.USD),
		}
		got, err := converter.ConvertLines(context.Background(), lines, valueobject.EUR, now)
		require.NoError(t, err)
		assert.Equal(t, 1, rates.calls)
		debit, credit := sumMinor(t, got)
		assert.Equal(t, int64(20000), debit)
		assert.Equal(t, int64(20000), credit)
	})

	t.Run("folds the residue into the largest deficient-side line", func(t *testing.T) {
		// Each 10.00 debit picks up half a cent; the credits lose it.
		rates := &stubRates{rate: decimal.RequireFromString("1.0005")}
		converter := NewCurrencyConverter(rates)

		lines := []domainledger.JournalLine{
			majorDebit(t, "1000", "10.00", valueobject.USD),
			majorDebit(t, "1100", "10.00", valueobject.USD),
			majorDebit(t, "1200", "10.00", valueobject.USD),
			majorCredit(t, "4000", "25.00", valueobject.USD),
			majorCredit(t, "4100", "5.00", valueobject.USD),
		}
		got, err := converter.ConvertLines(context.Background(), lines, valueobject.EUR, now)
		require.NoError(t, err)

		// Debits round to 10.01 each (30.03); credits round to 25.01 and
		// 5.00 (30.01). The 2-cent residue lands on the 25.01 line.
		assert.Equal(t, int64(2503), got[3].Credit.MinorUnits())
		assert.Equal(t, int64(500), got[4].Credit.MinorUnits())
		debit, credit := sumMinor(t, got)
		assert.Equal(t, debit, credit)
		assert.Equal(t, int64(3003), debit)
	})

	t.Run("residue on the debit side lands on the largest debit line", func(t *testing.T) {
		rates := &stubRates{rate: decimal.RequireFromString("1.0005")}
		converter := NewCurrencyConverter(rates)

		lines := []domainledger.JournalLine{
			majorDebit(t, "1000", "30.00", valueobject.USD),
			majorCredit(t, "4000", "10.00", valueobject.USD),
			majorCredit(t, "4100", "10.00", valueobject.USD),
			majorCredit(t, "4200", "10.00", valueobject.USD),
		}
		got, err := converter.ConvertLines(context.Background(), lines, valueobject.EUR, now)
		require.NoError(t, err)

		// Debit 30.015 rounds to 30.02; credits 10.005 round to 10.01 each
		// (30.03). The missing cent goes onto the only debit line.
		assert.Equal(t, int64(3003), got[0].Debit.MinorUnits())
		debit, credit := sumMinor(t, got)
		assert.Equal(t, debit, credit)
	})

	t.Run("ties break on the first line in order", func(t *testing.T) {
		rates := &stubRates{rate: decimal.RequireFromString("1")}
		converter := NewCurrencyConverter(rates)

		lines := []domainledger.JournalLine{
			majorDebit(t, "1000", "100.00", valueobject.USD),
			majorCredit(t, "4000", "33.33", valueobject.USD),
			majorCredit(t, "4100", "33.33", valueobject.USD),
			majorCredit(t, "4200", "33.34", valueobject.USD),
		}
		got, err := converter.ConvertLines(context.Background(), lines, valueobject.JPY, now)
		require.NoError(t, err)

		// All three credits round to 33 against a 100 debit. The first of
		// the tied credits takes the residue.
		assert.Equal(t, int64(34), got[1].Credit.MinorUnits())
		assert.Equal(t, int64(33), got[2].Credit.MinorUnits())
		assert.Equal(t, int64(33), got[3].Credit.MinorUnits())
		debit, credit := sumMinor(t, got)
		assert.Equal(t, int64(100), debit)
		assert.Equal(t, int64(100), credit)
	})

	t.Run("adjustment never changes a line's side", func(t *testing.T) {
		rates := &stubRates{rate: decimal.RequireFromString("1.0005")}
		converter := NewCurrencyConverter(rates)

		lines := []domainledger.JournalLine{
			majorDebit(t, "1000", "10.00", valueobject.USD),
			majorDebit(t, "1100", "20.00", valueobject.USD),
			majorCredit(t, "4000", "30.00", valueobject.USD),
		}
		got, err := converter.ConvertLines(context.Background(), lines, valueobject.EUR, now)
		require.NoError(t, err)
		for i := range got {
			assert.Equal(t, lines[i].IsDebit(), got[i].IsDebit())
			require.NoError(t, got[i].Validate())
		}
	})

	t.Run("rejects lines that convert to zero", func(t *testing.T) {
		rates := &stubRates{rate: decimal.RequireFromString("0.1")}
		converter := NewCurrencyConverter(rates)

		lines := []domainledger.JournalLine{
			majorDebit(t, "1000", "0.01", valueobject.USD),
			majorCredit(t, "4000", "0.01", valueobject.USD),
		}
		_, err := converter.ConvertLines(context.Background(), lines, valueobject.JPY, now)
		require.Error(t, err)
		assert.Equal(t, "AMOUNT_TOO_SMALL", errorCode(t, err))
	})

	t.Run("rejects a non-positive rate", func(t *testing.T) {
		rates := &stubRates{rate: decimal.Zero}
		converter := NewCurrencyConverter(rates)

		lines := []domainledger.JournalLine{
			majorDebit(t, "1000", "100.00", valueobject.USD),
			majorCredit(t, "4000", "100.00", valueobject.USD),
		}
		_, err := converter.ConvertLines(context.Background(), lines, valueobject.EUR, now)
		require.Error(t, err)
		assert.Equal(t, "INVALID_RATE", errorCode(t, err))
	})

	t.Run("rejects mixed source currencies", func(t *testing.T) {
		rates := &stubRates{rate: decimal.RequireFromString("1.1")}
		converter := NewCurrencyConverter(rates)

		lines := []domainledger.JournalLine{
			majorDebit(t, "1000", "100.00", valueobject.USD),
			majorCredit(t, "4000", "100.00", valueobject.GBP),
		}
		_, err := converter.ConvertLines(context.Background(), lines, valueobject.EUR, now)
		require.Error(t, err)
		assert.Equal(t, "INVALID_LINES", errorCode(t, err))
	})

	t.Run("empty line set fails", func(t *testing.T) {
		converter := NewCurrencyConverter(&stubRates{rate: decimal.RequireFromString("1")})
		_, err := converter.ConvertLines(context.Background(), nil, valueobject.EUR, now)
		assert.Error(t, err)
	})
}

func TestRebalance_NoAbsorbingLine(t *testing.T) {
	// A residue with no line on the deficient side is an invariant
	// violation, not a silent repair.
	lines := []domainledger.JournalLine{
		majorDebit(t, "1000", "10.00", valueobject.USD),
		majorDebit(t, "1100", "5.00", valueobject.USD),
	}
	err := rebalance(lines, valueobject.USD)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvariantViolation))
}
