package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	CNY Currency = "CNY" // Chinese Yuan (default)
	USD Currency = "USD" // US Dollar
)

// DefaultCurrency is the default currency for the system
const DefaultCurrency = CNY

// Money is a value object representing monetary amounts
// It is immutable - all operations return new Money instances
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{
		amount:   amount,
		currency: currency,
	}, nil
}

// NewMoneyCNY creates Money in CNY (Chinese Yuan)
func NewMoneyCNY(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: CNY}
}

// NewMoneyCNYFromFloat creates Money in CNY from float64
func NewMoneyCNYFromFloat(amount float64) Money {
	return Money{amount: decimal.NewFromFloat(amount), currency: CNY}
}

// NewMoneyCNYFromString creates Money in CNY from string
func NewMoneyCNYFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return Money{amount: d, currency: CNY}, nil
}

// Zero returns a zero Money in the default currency
func Zero() Money {
	return Money{amount: decimal.Zero, currency: DefaultCurrency}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// Add returns a new Money with the sum of both amounts
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add %s to %s", other.currency, m.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Sub returns a new Money with the difference of both amounts
func (m Money) Sub(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract %s from %s", other.currency, m.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Mul returns a new Money multiplied by a decimal factor
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor), currency: m.currency}
}

// Round returns a new Money rounded to the given number of decimal places
func (m Money) Round(places int32) Money {
	return Money{amount: m.amount.Round(places), currency: m.currency}
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// Equals returns true if both amount and currency match
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String returns a human-readable representation
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}

// moneyJSON is the serialized form of Money
type moneyJSON struct {
	Amount   string   `json:"amount"`
	Currency Currency `json:"currency"`
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{
		Amount:   m.amount.String(),
		Currency: m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Money) UnmarshalJSON(data []byte) error {
	var mj moneyJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(mj.Amount)
	if err != nil {
		return fmt.Errorf("invalid money amount: %w", err)
	}
	m.amount = amount
	m.currency = mj.Currency
	return nil
}

// Value implements driver.Valuer for database storage
func (m Money) Value() (driver.Value, error) {
	return m.amount.String(), nil
}

// Scan implements sql.Scanner for database retrieval
// The currency defaults to CNY when scanning a bare amount
func (m *Money) Scan(value interface{}) error {
	if value == nil {
		m.amount = decimal.Zero
		m.currency = DefaultCurrency
		return nil
	}

	var amount decimal.Decimal
	var err error
	switch v := value.(type) {
	case string:
		amount, err = decimal.NewFromString(v)
	case []byte:
		amount, err = decimal.NewFromString(string(v))
	case float64:
		amount = decimal.NewFromFloat(v)
	case int64:
		amount = decimal.NewFromInt(v)
	default:
		return fmt.Errorf("cannot scan %T into Money", value)
	}
	if err != nil {
		return fmt.Errorf("invalid money value: %w", err)
	}

	m.amount = amount
	m.currency = DefaultCurrency
	return nil
}
