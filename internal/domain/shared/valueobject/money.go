package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	xcurrency "golang.org/x/text/currency"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	USD Currency = "USD" // US Dollar
	EUR Currency = "EUR" // Euro
	GBP Currency = "GBP" // British Pound
	CNY Currency = "CNY" // Chinese Yuan
	JPY Currency = "JPY" // Japanese Yen (no minor unit)
	KRW Currency = "KRW" // South Korean Won (no minor unit)
	HKD Currency = "HKD" // Hong Kong Dollar
)

// decimalOverrides wins over the ISO 4217 tables for codes where ledger
// policy differs from x/text metadata.
var decimalOverrides = map[Currency]int32{}

// ParseCurrency validates and normalizes a currency code
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("currency code must be 3 letters, got %q", code)
	}
	if _, err := xcurrency.ParseISO(code); err != nil {
		return "", fmt.Errorf("unknown currency code %q: %w", code, err)
	}
	return Currency(code), nil
}

// IsValid returns true if the code is a known ISO 4217 currency
func (c Currency) IsValid() bool {
	_, err := ParseCurrency(string(c))
	return err == nil
}

// String returns the string representation of the currency code
func (c Currency) String() string {
	return string(c)
}

// Decimals returns the number of minor-unit decimal places for the currency,
// e.g. 2 for USD, 0 for JPY. Unknown codes default to 2.
func (c Currency) Decimals() int32 {
	if d, ok := decimalOverrides[c]; ok {
		return d
	}
	unit, err := xcurrency.ParseISO(string(c))
	if err != nil {
		return 2
	}
	scale, _ := xcurrency.Standard.Rounding(unit)
	return int32(scale)
}

// Money is a value object representing a monetary amount as an integer count
// of the currency's minor units (cents for USD, yen for JPY). All arithmetic
// is integer arithmetic; decimal major-unit representations exist only at
// formatting and serialization boundaries.
// It is immutable - all operations return new Money instances.
type Money struct {
	minorUnits int64
	currency   Currency
}

// NewMoney creates Money from a minor-unit amount
func NewMoney(minorUnits int64, currency Currency) (Money, error) {
	if !currency.IsValid() {
		return Money{}, fmt.Errorf("invalid currency code %q", currency)
	}
	return Money{minorUnits: minorUnits, currency: currency}, nil
}

// MustMoney creates Money from a minor-unit amount, panicking on an invalid
// currency. For use with compile-time-known codes, mostly in tests.
func MustMoney(minorUnits int64, currency Currency) Money {
	m, err := NewMoney(minorUnits, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero-value Money in the specified currency
func Zero(currency Currency) Money {
	return Money{minorUnits: 0, currency: currency}
}

// NewMoneyFromDecimal converts an exact major-unit decimal to Money. The
// decimal must not carry more fractional digits than the currency defines;
// that is a validation error, never silently rounded.
func NewMoneyFromDecimal(amount decimal.Decimal, currency Currency) (Money, error) {
	if !currency.IsValid() {
		return Money{}, fmt.Errorf("invalid currency code %q", currency)
	}
	decimals := currency.Decimals()
	if !amount.Equal(amount.Round(decimals)) {
		return Money{}, fmt.Errorf("amount %s has more than %d decimal places for %s", amount.String(), decimals, currency)
	}
	return Money{minorUnits: amount.Shift(decimals).IntPart(), currency: currency}, nil
}

// NewMoneyFromDecimalRounded converts a major-unit decimal to Money, rounding
// half away from zero to the currency's decimal places. This is the rounding
// step of currency conversion; validation paths use NewMoneyFromDecimal.
func NewMoneyFromDecimalRounded(amount decimal.Decimal, currency Currency) (Money, error) {
	if !currency.IsValid() {
		return Money{}, fmt.Errorf("invalid currency code %q", currency)
	}
	return Money{minorUnits: amount.Round(currency.Decimals()).Shift(currency.Decimals()).IntPart(), currency: currency}, nil
}

// ParseMajor parses a major-unit decimal string ("1000.00") into Money
func ParseMajor(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string %q: %w", amount, err)
	}
	return NewMoneyFromDecimal(d, currency)
}

// MinorUnits returns the amount as an integer count of minor units
func (m Money) MinorUnits() int64 {
	return m.minorUnits
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// Decimal returns the major-unit decimal representation
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.minorUnits, -m.currency.Decimals())
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.minorUnits == 0
}

// IsPositive returns true if the amount is greater than zero
func (m Money) IsPositive() bool {
	return m.minorUnits > 0
}

// IsNegative returns true if the amount is less than zero
func (m Money) IsNegative() bool {
	return m.minorUnits < 0
}

// Add returns a new Money with the sum of both amounts.
// Returns error if currencies don't match.
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{minorUnits: m.minorUnits + other.minorUnits, currency: m.currency}, nil
}

// MustAdd adds two Money values, panics if currencies don't match
func (m Money) MustAdd(other Money) Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract returns a new Money with the difference.
// Returns error if currencies don't match.
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{minorUnits: m.minorUnits - other.minorUnits, currency: m.currency}, nil
}

// Negate returns a new Money with the sign reversed
func (m Money) Negate() Money {
	return Money{minorUnits: -m.minorUnits, currency: m.currency}
}

// Abs returns a new Money with the absolute value
func (m Money) Abs() Money {
	if m.minorUnits < 0 {
		return m.Negate()
	}
	return m
}

// Equal returns true if both Money values are equal (same amount and currency)
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.minorUnits == other.minorUnits
}

// GreaterThan returns true if this Money is greater than the other.
// Returns error if currencies don't match.
func (m Money) GreaterThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("cannot compare money with different currencies: %s and %s", m.currency, other.currency)
	}
	return m.minorUnits > other.minorUnits, nil
}

// LessThan returns true if this Money is less than the other.
// Returns error if currencies don't match.
func (m Money) LessThan(other Money) (bool, error) {
	if m.currency != other.currency {
		return false, fmt.Errorf("cannot compare money with different currencies: %s and %s", m.currency, other.currency)
	}
	return m.minorUnits < other.minorUnits, nil
}

// FormatMajor returns the major-unit decimal string, e.g. "1000.00" for
// 100000 USD minor units and "1000" for JPY
func (m Money) FormatMajor() string {
	return m.Decimal().StringFixed(m.currency.Decimals())
}

// String returns a string representation of the Money
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.FormatMajor(), m.currency)
}

// moneyJSON is the wire shape of Money. The amount is emitted twice: the
// legacy major-unit decimal string and the precision-safe minor-unit integer,
// string-encoded so JavaScript consumers never lose digits.
type moneyJSON struct {
	Amount      string   `json:"amount"`
	AmountMinor string   `json:"amount_minor"`
	Currency    Currency `json:"currency"`
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{
		Amount:      m.FormatMajor(),
		AmountMinor: strconv.FormatInt(m.minorUnits, 10),
		Currency:    m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The minor-unit field is
// authoritative when present; the major-unit field is parsed through the
// same validating path as live construction otherwise.
func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Currency == "" {
		return errors.New("money payload is missing currency")
	}
	if v.AmountMinor != "" {
		minor, err := strconv.ParseInt(v.AmountMinor, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid minor-unit amount %q: %w", v.AmountMinor, err)
		}
		parsed, err := NewMoney(minor, v.Currency)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	parsed, err := ParseMajor(v.Amount, v.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
