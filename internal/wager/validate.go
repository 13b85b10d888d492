// Package wager validates bet amounts before a round may start.
package wager

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotNumeric   = errors.New("wager must be a number")
	ErrNotPositive  = errors.New("wager must be greater than zero")
	ErrBelowMinimum = errors.New("wager below minimum")
	ErrAboveMaximum = errors.New("wager above maximum")
	ErrTooPrecise   = errors.New("wager has too many decimal places")
	ErrOverBalance  = errors.New("insufficient balance")
)

// Rules are the numeric constraints for a bet. Zero-valued bounds are unset.
type Rules struct {
	Min      decimal.Decimal
	Max      decimal.Decimal
	Decimals int32
}

// DefaultRules mirror the settlement ledger: two decimal places, at least one point.
func DefaultRules() Rules {
	return Rules{
		Min:      decimal.NewFromInt(1),
		Decimals: 2,
	}
}

// Validator checks amounts against Rules.
type Validator struct {
	rules Rules
}

// NewValidator creates a validator for the given rules.
func NewValidator(rules Rules) *Validator {
	return &Validator{rules: rules}
}

// Rules returns the configured rules.
func (v *Validator) Rules() Rules {
	return v.rules
}

// Parse converts user input into a decimal amount and validates it.
func (v *Validator) Parse(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrNotNumeric
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	if err := v.Validate(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// Validate checks the numeric constraints only.
func (v *Validator) Validate(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNotPositive
	}
	if !v.rules.Min.IsZero() && amount.LessThan(v.rules.Min) {
		return fmt.Errorf("%w: %s < %s", ErrBelowMinimum, amount, v.rules.Min)
	}
	if !v.rules.Max.IsZero() && amount.GreaterThan(v.rules.Max) {
		return fmt.Errorf("%w: %s > %s", ErrAboveMaximum, amount, v.rules.Max)
	}
	if v.rules.Decimals > 0 && !amount.Equal(amount.Truncate(v.rules.Decimals)) {
		return fmt.Errorf("%w: at most %d", ErrTooPrecise, v.rules.Decimals)
	}
	return nil
}

// ValidateWithin additionally bounds the amount by an available balance.
// The balance comes from the external wallet; a nil balance skips the check.
func (v *Validator) ValidateWithin(amount decimal.Decimal, available *decimal.Decimal) error {
	if err := v.Validate(amount); err != nil {
		return err
	}
	if available != nil && amount.GreaterThan(*available) {
		return fmt.Errorf("%w: need %s, have %s", ErrOverBalance, amount, available.StringFixed(2))
	}
	return nil
}
