package scheduler

import (
	"fmt"
	"time"

	"github.com/wordle-club/wordle-bot/pkg/timeutil"
)

// IntervalSchedule schedules a job to run at a fixed interval.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a new IntervalSchedule.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next scheduled time.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns the string representation of the schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}

// DailySchedule fires once a day at Hour:Minute plus Delay in Location.
// The delay keeps the daily post from landing a moment before midnight when
// clocks drift.
type DailySchedule struct {
	Hour     int
	Minute   int
	Delay    time.Duration
	Location *time.Location
}

// NewDailySchedule creates a DailySchedule.
func NewDailySchedule(hour, minute int, delay time.Duration, loc *time.Location) *DailySchedule {
	return &DailySchedule{Hour: hour, Minute: minute, Delay: delay, Location: loc}
}

// Next returns the first firing strictly after t.
func (s *DailySchedule) Next(t time.Time) time.Time {
	return timeutil.NextDailyAt(t, s.Hour, s.Minute, s.Delay, s.Location)
}

// String returns the string representation of the schedule.
func (s *DailySchedule) String() string {
	loc := "Local"
	if s.Location != nil {
		loc = s.Location.String()
	}
	return fmt.Sprintf("@daily %02d:%02d+%s %s", s.Hour, s.Minute, s.Delay, loc)
}
