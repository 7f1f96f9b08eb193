// Package core holds the transaction domain model and summary computation.
//
// This file implements Amount, the monetary value type. Amounts travel over
// the wire either as JSON numbers or as quoted strings (the server
// serializes decimals as text), so decoding accepts both. Malformed wire
// amounts decode to an invalid zero value instead of failing the whole
// payload; summary availability wins over strict correctness of one record.
package core

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a fixed-point monetary value. The zero Amount is invalid and
// contributes nothing to arithmetic.
type Amount struct {
	dec   decimal.Decimal
	valid bool
}

// NewAmount wraps a decimal as a valid Amount.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{dec: d, valid: true}
}

// ParseAmount strictly parses a decimal string. Unlike UnmarshalJSON it
// reports malformed input, which is what draft validation needs.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Amount{}, ErrInvalidAmount
	}
	return NewAmount(d), nil
}

// Decimal returns the underlying value; zero when the amount is invalid.
func (a Amount) Decimal() decimal.Decimal {
	if !a.valid {
		return decimal.Zero
	}
	return a.dec
}

// Valid reports whether the amount carried a parseable value.
func (a Amount) Valid() bool { return a.valid }

// Positive reports whether the amount is valid and strictly positive.
func (a Amount) Positive() bool {
	return a.valid && a.dec.IsPositive()
}

// Equal compares two amounts by numeric value.
func (a Amount) Equal(b Amount) bool {
	return a.Decimal().Equal(b.Decimal())
}

// String renders the value with two decimal places.
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts a number, a quoted decimal string, or null. Any
// token that does not parse yields an invalid zero amount, not an error.
func (a *Amount) UnmarshalJSON(b []byte) error {
	tok := bytes.Trim(bytes.TrimSpace(b), `"`)
	if len(tok) == 0 || string(tok) == "null" {
		*a = Amount{}
		return nil
	}
	d, err := decimal.NewFromString(string(tok))
	if err != nil {
		*a = Amount{}
		return nil
	}
	*a = NewAmount(d)
	return nil
}
