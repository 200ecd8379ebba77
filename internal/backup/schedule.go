package backup

import (
	"fmt"
	"time"
)

// Frequency selects a FrequencyRule variant.
type Frequency string

const (
	FreqOnce    Frequency = "once"
	FreqHourly  Frequency = "hourly"
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqCustom  Frequency = "custom"
)

// ParseFrequency validates a raw frequency string.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(s) {
	case FreqOnce, FreqHourly, FreqDaily, FreqWeekly, FreqMonthly, FreqCustom:
		return Frequency(s), nil
	default:
		return "", fmt.Errorf("unknown frequency: %q", s)
	}
}

// FrequencyRule describes when a schedule entry fires. Which fields are
// meaningful depends on Frequency; AtHour/AtMinute apply to every variant
// except Hourly, which only uses AtMinute.
type FrequencyRule struct {
	Frequency Frequency

	AtHour   int
	AtMinute int

	// HourInterval fires every N hours, on hours divisible by N.
	HourInterval int
	// Weekday is the day a Weekly rule fires on.
	Weekday time.Weekday
	// DayOfMonth is the day a Monthly rule fires on, clamped to the last day
	// of shorter months.
	DayOfMonth int
	// Weekdays is the set of days a Custom rule fires on.
	Weekdays []time.Weekday
}

// Validate checks the rule's fields for the selected variant.
func (r FrequencyRule) Validate() error {
	if _, err := ParseFrequency(string(r.Frequency)); err != nil {
		return err
	}
	if r.AtHour < 0 || r.AtHour > 23 {
		return fmt.Errorf("hour out of range: %d", r.AtHour)
	}
	if r.AtMinute < 0 || r.AtMinute > 59 {
		return fmt.Errorf("minute out of range: %d", r.AtMinute)
	}
	switch r.Frequency {
	case FreqHourly:
		if r.HourInterval < 1 || r.HourInterval > 24 {
			return fmt.Errorf("hour interval out of range: %d", r.HourInterval)
		}
	case FreqWeekly:
		if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
			return fmt.Errorf("weekday out of range: %d", r.Weekday)
		}
	case FreqMonthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return fmt.Errorf("day of month out of range: %d", r.DayOfMonth)
		}
	case FreqCustom:
		if len(r.Weekdays) == 0 {
			return fmt.Errorf("custom frequency needs at least one weekday")
		}
		for _, d := range r.Weekdays {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("weekday out of range: %d", d)
			}
		}
	}
	return nil
}

// Next returns the smallest rule-valid timestamp strictly after the given
// time. It is a pure function of (rule, after): the scheduler feeds it the
// last completion time, which keeps repeated runs from drifting without
// accumulating systematic delay.
func (r FrequencyRule) Next(after time.Time) time.Time {
	switch r.Frequency {
	case FreqHourly:
		interval := r.HourInterval
		if interval < 1 {
			interval = 1
		}
		c := time.Date(after.Year(), after.Month(), after.Day(), after.Hour(), r.AtMinute, 0, 0, after.Location())
		if !c.After(after) {
			c = c.Add(time.Hour)
		}
		for c.Hour()%interval != 0 {
			c = c.Add(time.Hour)
		}
		return c

	case FreqWeekly:
		c := r.timeOfDayOn(after)
		days := (int(r.Weekday) - int(c.Weekday()) + 7) % 7
		c = c.AddDate(0, 0, days)
		if !c.After(after) {
			c = c.AddDate(0, 0, 7)
		}
		return c

	case FreqMonthly:
		c := r.monthlyOn(after.Year(), after.Month(), after.Location())
		if !c.After(after) {
			y, m := after.Year(), after.Month()+1
			if m > time.December {
				y, m = y+1, time.January
			}
			c = r.monthlyOn(y, m, after.Location())
		}
		return c

	case FreqCustom:
		if len(r.Weekdays) == 0 {
			break
		}
		for offset := 0; offset <= 7; offset++ {
			c := r.timeOfDayOn(after.AddDate(0, 0, offset))
			if c.After(after) && r.weekdayEnabled(c.Weekday()) {
				return c
			}
		}
	}

	// Once, Daily, and the empty-custom fallback: the configured time today,
	// or tomorrow if that has passed.
	c := r.timeOfDayOn(after)
	if !c.After(after) {
		c = c.AddDate(0, 0, 1)
	}
	return c
}

func (r FrequencyRule) timeOfDayOn(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), r.AtHour, r.AtMinute, 0, 0, t.Location())
}

func (r FrequencyRule) monthlyOn(year int, month time.Month, loc *time.Location) time.Time {
	day := r.DayOfMonth
	if last := daysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, r.AtHour, r.AtMinute, 0, 0, loc)
}

func (r FrequencyRule) weekdayEnabled(d time.Weekday) bool {
	for _, w := range r.Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ScheduleEntry is a named, persisted recurring job definition. The ID is
// assigned on create and immutable. LastRun/NextRun are nil until the entry
// has run or been scheduled; a nil NextRun on an enabled entry means "due
// immediately".
type ScheduleEntry struct {
	ID          string
	Name        string
	Source      string
	Destination string
	Mode        Mode
	Rule        FrequencyRule
	Enabled     bool
	LastRun     *time.Time
	NextRun     *time.Time
	// LastResult is "success", "error", or "cancelled" after a run; empty
	// before the first one.
	LastResult string
	CreatedAt  time.Time
}
