package clock

import "time"

const dayFormat = "2006-01-02"

func Now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// Day returns the UTC calendar date of t, formatted YYYY-MM-DD.
// Attendance records are keyed by this value.
func Day(t time.Time) string {
	return t.UTC().Format(dayFormat)
}

// ParseDay parses a YYYY-MM-DD date into the UTC midnight of that day.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(dayFormat, s)
}

// DayBounds returns the inclusive UTC day range [from, to] covering t.
func DayBounds(t time.Time) (from, to time.Time) {
	u := t.UTC()
	from = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.Add(24*time.Hour - time.Nanosecond)
}
