// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from user input
// and formatting them for display.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// CurrencyCode is printed in front of formatted amounts.
const CurrencyCode = "LKR"

// ParseAmount converts a decimal string to a positive amount rounded to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half away from zero on the third decimal place. Signs, exponents and zero are
// rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := parseNonNegative(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseEstimate is ParseAmount that also accepts zero and blank input, used
// for repair estimates where zero means the price is still pending.
func ParseEstimate(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return parseNonNegative(s)
}

func parseNonNegative(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// FormatAmount renders an amount as "LKR 1,234.50", with a leading minus for
// negative values.
func FormatAmount(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := CurrencyCode + " " + b.String() + frac
	if neg {
		return "-" + out
	}
	return out
}
