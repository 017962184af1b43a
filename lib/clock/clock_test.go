package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDay(t *testing.T) {
	t.Run("formats in UTC", func(t *testing.T) {
		ts := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)
		assert.Equal(t, "2025-03-10", Day(ts))
	})

	t.Run("converts local time to UTC first", func(t *testing.T) {
		// 23:30 on the 10th at UTC+2 is 21:30 UTC, still the 10th
		loc := time.FixedZone("EET", 2*60*60)
		assert.Equal(t, "2025-03-10", Day(time.Date(2025, 3, 10, 23, 30, 0, 0, loc)))

		// 01:30 on the 11th at UTC+2 is 23:30 UTC on the 10th
		assert.Equal(t, "2025-03-10", Day(time.Date(2025, 3, 11, 1, 30, 0, 0, loc)))
	})
}

func TestParseDay(t *testing.T) {
	ts, err := ParseDay("2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), ts)

	_, err = ParseDay("10.03.2025")
	require.Error(t, err)
}

func TestDayBounds(t *testing.T) {
	ts := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)
	start, end := DayBounds(ts)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), end)
	assert.True(t, ts.After(start) && ts.Before(end))
}
