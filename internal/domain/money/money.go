package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yungbote/escrow-backend/internal/domain/errs"
)

// Money is an immutable decimal amount in a single currency.
// Persisted through gorm as two columns (embedded with a prefix).
type Money struct {
	Amount   decimal.Decimal `gorm:"column:amount;type:numeric(20,4);not null" json:"amount"`
	Currency string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
}

// New builds a Money value. The currency is required; no default is applied here.
func New(amount decimal.Decimal, currency string) (Money, error) {
	code, err := normalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: amount, Currency: code}, nil
}

// Parse builds a Money value from a decimal string.
func Parse(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, errs.New(errs.ErrInvalidOperation, "invalid amount %q", amount)
	}
	return New(d, currency)
}

// MustParse is Parse for literals known to be valid.
func MustParse(amount, currency string) Money {
	m, err := Parse(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in currency.
func Zero(currency string) (Money, error) {
	return New(decimal.Zero, currency)
}

func normalizeCurrency(currency string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return "", errs.New(errs.ErrInvalidOperation, "currency must be a 3-letter code, got %q", currency)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", errs.New(errs.ErrInvalidOperation, "currency must be alphabetic, got %q", currency)
		}
	}
	return code, nil
}

func (m Money) sameCurrency(o Money, op string) error {
	if m.Currency != o.Currency {
		return errs.New(errs.ErrCurrencyMismatch, "%s %s and %s", op, m.Currency, o.Currency)
	}
	return nil
}

func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o, "add"); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.Currency}, nil
}

func (m Money) Subtract(o Money) (Money, error) {
	if err := m.sameCurrency(o, "subtract"); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(o.Amount), Currency: m.Currency}, nil
}

func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(factor), Currency: m.Currency}
}

func (m Money) Divide(divisor decimal.Decimal) (Money, error) {
	if divisor.IsZero() {
		return Money{}, errs.New(errs.ErrDivideByZero, "divide %s by zero", m)
	}
	return Money{Amount: m.Amount.Div(divisor), Currency: m.Currency}, nil
}

// Equals is true when both currency and numeric value match (1.50 equals 1.5).
func (m Money) Equals(o Money) bool {
	return m.Currency == o.Currency && m.Amount.Equal(o.Amount)
}

// Cmp compares amounts; currencies must match.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o, "compare"); err != nil {
		return 0, err
	}
	return m.Amount.Cmp(o.Amount), nil
}

func (m Money) GreaterThan(o Money) (bool, error) {
	c, err := m.Cmp(o)
	return c > 0, err
}

func (m Money) LessThan(o Money) (bool, error) {
	c, err := m.Cmp(o)
	return c < 0, err
}

func (m Money) IsZero() bool     { return m.Amount.IsZero() }
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// Neg flips the sign; used for signed adjustments.
func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}
