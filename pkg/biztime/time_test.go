package biztime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	require.NoError(t, Init("Asia/Kolkata"))

	tests := []struct {
		name     string
		utcTime  time.Time
		expected string
	}{
		{
			name:     "UTC midnight converts to Kolkata 05:30",
			utcTime:  time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
			expected: "2024-01-07 05:30:00",
		},
		{
			name:     "UTC 20:00 rolls over to the next day",
			utcTime:  time.Date(2024, 1, 7, 20, 0, 0, 0, time.UTC),
			expected: "2024-01-08 01:30:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.utcTime))
		})
	}
}

func TestFormatOr(t *testing.T) {
	require.NoError(t, Init("Asia/Kolkata"))

	assert.Equal(t, "N/A", FormatOr(nil, "N/A"))
	zero := time.Time{}
	assert.Equal(t, "N/A", FormatOr(&zero, "N/A"))

	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-01 17:30:00", FormatOr(&ts, "N/A"))
}

func TestInit_UnknownZone(t *testing.T) {
	err := Init("Mars/Olympus_Mons")
	assert.Error(t, err)

	// The previous zone stays active.
	require.NoError(t, Init("Asia/Kolkata"))
	assert.Equal(t, "Asia/Kolkata", Location().String())
}

func TestDayRangeUTC(t *testing.T) {
	start, end, err := DayRangeUTC("2024-02-28")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), end)

	_, _, err = DayRangeUTC("28/02/2024")
	assert.Error(t, err)
}
