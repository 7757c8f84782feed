package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"0", "", false},
		{"1e3", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if !tc.ok {
			assert.ErrorIs(t, err, ErrInvalidAmount, tc.in)
			continue
		}
		if assert.NoError(t, err, tc.in) {
			assert.True(t, got.Equal(decimal.RequireFromString(tc.out)), "%q: got %s", tc.in, got)
		}
	}
}

func TestParseEstimate(t *testing.T) {
	d, err := ParseEstimate("")
	assert.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = ParseEstimate("0")
	assert.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseEstimate("-3")
	assert.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0":          "LKR 0.00",
		"12.5":       "LKR 12.50",
		"1234.5":     "LKR 1,234.50",
		"1234567.89": "LKR 1,234,567.89",
		"-999":       "-LKR 999.00",
		"-1000":      "-LKR 1,000.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatAmount(decimal.RequireFromString(in)), in)
	}
}
