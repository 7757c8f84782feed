package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the day-only form accepted from forms and the CLI.
const DateLayout = "2006-01-02"

// sheetsEpoch is day zero of spreadsheet serial dates.
var sheetsEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseTimestamp reads a stored or user-entered date. It accepts RFC3339 (with
// or without fractional seconds), a bare YYYY-MM-DD interpreted in loc, and
// spreadsheet serial numbers (days since 1899-12-30, fraction = time of day).
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrZeroDate
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FromSerial(f), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// FromSerial converts a spreadsheet serial date to a UTC instant.
func FromSerial(serial float64) time.Time {
	days := math.Floor(serial)
	secs := math.Round((serial - days) * 86400)
	return sheetsEpoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second)
}

// FormatTimestamp is the canonical stored form of a transaction date.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
