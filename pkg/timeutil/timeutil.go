// Package timeutil provides calendar-date helpers for the Wordle bot.
// Scores are stored against naive calendar dates: a date is represented as
// midnight UTC regardless of the zone "today" was observed in.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// Clock returns the current time. Injected wherever "today" matters so tests
// can pin the week.
type Clock func() time.Time

// SystemClock returns a Clock reading the wall clock in loc.
func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return func() time.Time {
		return time.Now().In(loc)
	}
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// Date creates a calendar date (midnight UTC).
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CalendarDate drops the clock reading and zone of t, keeping the date as seen
// on the wall clock of t's own location.
func CalendarDate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// IsMidnight reports whether the wall clock of t reads exactly 00:00:00.
func IsMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// AddDays shifts a calendar date by n days.
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// MondayIndex returns the weekday with Monday as 0 and Sunday as 6.
func MondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// LastSunday returns the most recent Sunday strictly before the current week's
// Monday, i.e. the Sunday that closes the previous week. On a Sunday this is
// the Sunday one week earlier.
func LastSunday(today time.Time) time.Time {
	d := CalendarDate(today)
	return AddDays(d, -(MondayIndex(d) + 1))
}

// Common date formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTimestamp is the naive timestamp layout used by the legacy SQLite file.
	FormatTimestamp = "2006-01-02 15:04:05"
)

// FormatDateStr formats a calendar date as YYYY-MM-DD.
func FormatDateStr(t time.Time) string {
	return t.Format(FormatDate)
}

// NextDailyAt returns the first instant strictly after t whose wall clock in
// loc reads hour:minute:00 plus delay.
func NextDailyAt(t time.Time, hour, minute int, delay time.Duration, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc).Add(delay)
	if !next.After(t) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc).Add(delay)
	}
	return next
}
