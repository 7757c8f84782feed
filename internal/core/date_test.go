package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	colombo := time.FixedZone("LKT", 5*3600+1800)

	got, err := ParseTimestamp("2025-05-31T18:30:00.123Z", nil)
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 5, 31, 18, 30, 0, 123000000, time.UTC)))

	got, err = ParseTimestamp("2025-05-31", colombo)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 5, 31, 0, 0, 0, 0, colombo), got)

	// 45000.5 is 2023-03-15 12:00 in spreadsheet serial form.
	got, err = ParseTimestamp("45000.5", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 3, 15, 12, 0, 0, 0, time.UTC), got)

	_, err = ParseTimestamp("", nil)
	assert.ErrorIs(t, err, ErrZeroDate)

	_, err = ParseTimestamp("yesterday", nil)
	assert.Error(t, err)
}

func TestFormatTimestampRoundTrip(t *testing.T) {
	when := time.Date(2025, 1, 2, 3, 4, 5, 6, time.FixedZone("X", 3600))
	got, err := ParseTimestamp(FormatTimestamp(when), nil)
	require.NoError(t, err)
	assert.True(t, when.Equal(got))
}
