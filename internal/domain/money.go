/**
 * @description
 * Monetary values shared by the margin and dunning models.
 *
 * @dependencies
 * - github.com/shopspring/decimal: exact decimal arithmetic for amounts and rates.
 */
package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in a single ISO-4217 currency.
type Money struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
}

// NewMoney builds a Money value from a decimal string such as "49.90".
func NewMoney(amount string, currencyCode string) (Money, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return Money{Amount: value, CurrencyCode: NormalizeCurrencyCode(currencyCode)}, nil
}

// MustMoney is NewMoney for literals known to be valid.
func MustMoney(amount string, currencyCode string) Money {
	m, err := NewMoney(amount, currencyCode)
	if err != nil {
		panic(err)
	}
	return m
}

// NormalizeCurrencyCode upper-cases and trims a currency code.
func NormalizeCurrencyCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidCurrencyCode reports whether code has the ISO-4217 alphabetic shape.
func IsValidCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// SameCurrency reports whether both values are denominated in the same currency.
func (m Money) SameCurrency(other Money) bool {
	return m.CurrencyCode == other.CurrencyCode
}

// Normalized returns m with its currency code normalized.
func (m Money) Normalized() Money {
	m.CurrencyCode = NormalizeCurrencyCode(m.CurrencyCode)
	return m
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.CurrencyCode
}

// EnsureSameCurrency returns ErrCurrencyMismatch when a and b differ in currency.
func EnsureSameCurrency(a, b Money) error {
	if !a.SameCurrency(b) {
		return fmt.Errorf("%w: %q vs %q", ErrCurrencyMismatch, a.CurrencyCode, b.CurrencyCode)
	}
	return nil
}
