package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// ErrCurrencyMismatch indicates arithmetic across different currencies.
var ErrCurrencyMismatch = errors.New("money: currency mismatch")

// ErrInvalidCurrency indicates an unrecognised ISO 4217 code.
var ErrInvalidCurrency = errors.New("money: invalid currency code")

// Money is an exact amount in integer minor units tagged with its ISO 4217
// currency code. All ledger math happens on Money; decimals appear only at
// the presentation boundary.
type Money struct {
	Currency string
	Amount   int64
}

// New builds a Money value after validating the currency code.
func New(code string, amount int64) (Money, error) {
	if _, err := currency.ParseISO(code); err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return Money{Currency: code, Amount: amount}, nil
}

// MustNew is New for statically known codes; it panics on invalid input.
func MustNew(code string, amount int64) Money {
	m, err := New(code, amount)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m + other.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Currency: m.Currency, Amount: m.Amount + other.Amount}, nil
}

// Sub returns m - other.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Currency: m.Currency, Amount: m.Amount - other.Amount}, nil
}

// Negate flips the sign.
func (m Money) Negate() Money {
	return Money{Currency: m.Currency, Amount: -m.Amount}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive reports whether the amount is strictly positive.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// Scale returns the number of minor-unit digits for the currency, e.g. 2 for
// USD, 0 for JPY.
func Scale(code string) (int, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale, nil
}

// Decimal converts the minor-unit amount to a decimal in major units.
func (m Money) Decimal() (decimal.Decimal, error) {
	scale, err := Scale(m.Currency)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.New(m.Amount, -int32(scale)), nil
}

// FromDecimal converts a major-unit decimal to Money, rounding half away
// from zero to the currency's minor-unit scale.
func FromDecimal(code string, d decimal.Decimal) (Money, error) {
	scale, err := Scale(code)
	if err != nil {
		return Money{}, err
	}
	units := d.Shift(int32(scale)).Round(0)
	if !units.IsInteger() || units.Abs().GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return Money{}, fmt.Errorf("money: amount %s out of range for %s", d, code)
	}
	return Money{Currency: code, Amount: units.IntPart()}, nil
}

// String renders the amount in major units, e.g. "USD 12.30".
func (m Money) String() string {
	d, err := m.Decimal()
	if err != nil {
		return fmt.Sprintf("%s %d(minor)", m.Currency, m.Amount)
	}
	return fmt.Sprintf("%s %s", m.Currency, d.StringFixed(d.Exponent()*-1))
}
