package core

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidAmount marks a monetary form input that could not be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseDecimalToCents converts a user-entered amount to cents with half-up
// rounding on the third decimal place.
//
// It accepts plain decimals with either separator (1234.56 or 1234,56) and
// Brazilian currency notation with an optional R$ prefix and thousands dots
// (R$ 1.234,56). Dots are thousands separators only when a decimal comma is
// present; otherwise a single dot is the decimal separator. The amount must
// be positive.
//
// Examples:
//
//	ParseDecimalToCents("12.34")       -> 1234, nil
//	ParseDecimalToCents("12,34")       -> 1234, nil
//	ParseDecimalToCents("R$ 1.234,56") -> 123456, nil
//	ParseDecimalToCents("12.345")      -> 1234, nil (rounds down)
//	ParseDecimalToCents("12.346")      -> 1235, nil (rounds up)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed
		return 0, ErrInvalidAmount
	}
	// With a decimal comma present, dots are thousands separators.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	// Split into integer and fractional part
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	// Convert integer part - check for overflow
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	// Take first two fractional digits; then half-up rounding on third
	var fracCents int64 = 0
	if len(fracPart) > 0 {
		d1 := int64(fracPart[0] - '0')
		fracCents = d1 * 10
		if len(fracPart) > 1 {
			d2 := int64(fracPart[1] - '0')
			fracCents += d2
			if len(fracPart) > 2 {
				if fracPart[2] >= '5' {
					fracCents++
				}
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// CentsToAmount returns the currency value of a cents count as a float64 for
// use in projections and display. Calculations that need exactness should
// stay in cents.
func CentsToAmount(cents int64) float64 {
	return float64(cents) / 100.0
}
