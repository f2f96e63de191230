// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents so that sums are exact; decimal.Decimal is
// used at the edges for parsing, division and JSON rendering.
package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents caps a single record at one billion currency units, which
// keeps int64 cent sums exact for tens of millions of records.
const MaxAmountCents int64 = 1_000_000_000 * 100

var hundred = decimal.NewFromInt(100)

type Money struct {
	Cents int64
}

// NewMoneyFromDecimal rounds d half away from zero to whole cents.
func NewMoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Mul(hundred).Round(0).IntPart()}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return &ValidationError{Field: "amount", Message: "amount must be a positive number"}
	}
	if m.Cents > MaxAmountCents {
		return errAmountTooLarge
	}
	return nil
}

var errAmountTooLarge = &ValidationError{Field: "amount", Message: "amount too large (max 1000000000)"}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the shortest exact decimal form ("5", "12.5", "0.01").
func (m Money) String() string {
	return m.Decimal().String()
}

// StringFixed renders two decimal places ("5.00").
func (m Money) StringFixed() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Sub(o Money) Money {
	return Money{Cents: m.Cents - o.Cents}
}

// MarshalJSON writes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return &ValidationError{Field: "amount", Message: "amount must be a number"}
		}
		n = json.Number(s)
	}
	cents, err := ParseDecimalToCents(n.String())
	if err != nil {
		return err
	}
	m.Cents = cents
	return nil
}

// ParseDecimalToCents converts a decimal string to cents with half-up rounding.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. Zero,
// negative and non-numeric values are rejected.
//
// Examples:
//
//	ParseDecimalToCents("12.34")  -> 1234, nil
//	ParseDecimalToCents("12,34")  -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil
//	ParseDecimalToCents("1e2")    -> 10000, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ValidationError{Field: "amount", Message: "amount is required"}
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, &ValidationError{Field: "amount", Message: "amount must be a positive number"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Message: "amount must be a number"}
	}
	if d.Mul(hundred).GreaterThan(decimal.NewFromInt(MaxAmountCents)) {
		return 0, errAmountTooLarge
	}
	m := NewMoneyFromDecimal(d)
	if err := m.Validate(); err != nil {
		return 0, err
	}
	return m.Cents, nil
}

// ratio returns num/den as float64, or 0 when den is zero.
func ratio(num, den decimal.Decimal) float64 {
	if den.IsZero() {
		return 0
	}
	return num.DivRound(den, 8).InexactFloat64()
}

// percent returns num/den*100, or 0 when den is zero.
func percent(num, den decimal.Decimal) float64 {
	if den.IsZero() {
		return 0
	}
	return num.Mul(hundred).DivRound(den, 8).InexactFloat64()
}
