// Package money validates the monetary values that flow through the ledger.
// Amounts are decimals with at most two fractional digits; currencies are
// three-character codes. No ISO-4217 lookup is performed.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every amount carries.
const Scale = 2

var (
	// ErrInvalidAmount is returned for amounts that are not strictly positive,
	// exceed MaxAmount or carry more than Scale fractional digits.
	ErrInvalidAmount = errors.New("invalid amount")

	// MaxAmount is the largest value a NUMERIC(20,2) column holds.
	MaxAmount = decimal.RequireFromString("999999999999999999.99")

	// ErrInvalidCurrency is returned for currency codes that are not exactly three characters.
	ErrInvalidCurrency = errors.New("invalid currency")
)

// ParseUnchecked parses s without validating it. Input that is not a number
// yields zero, which ValidateAmount rejects, so callers can leave the
// ordering of validation errors to the service.
func ParseUnchecked(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ValidateAmount reports ErrInvalidAmount unless 0 < d <= MaxAmount with at
// most two decimals.
func ValidateAmount(d decimal.Decimal) error {
	if !d.IsPositive() || d.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	if !d.Equal(d.Truncate(Scale)) {
		return ErrInvalidAmount
	}
	return nil
}

// NormalizeCurrency upper-cases and trims code, rejecting anything that is not three characters.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len([]rune(code)) != 3 {
		return "", ErrInvalidCurrency
	}
	return code, nil
}

// Format renders d with exactly Scale fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
