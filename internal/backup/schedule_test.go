package backup

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestFrequencyRule_Next(t *testing.T) {
	tests := []struct {
		name  string
		rule  FrequencyRule
		after time.Time
		want  time.Time
	}{
		{
			name:  "daily before configured time fires today",
			rule:  FrequencyRule{Frequency: FreqDaily, AtHour: 14, AtMinute: 30},
			after: date(2024, 1, 1, 10, 0),
			want:  date(2024, 1, 1, 14, 30),
		},
		{
			name:  "daily after configured time fires tomorrow",
			rule:  FrequencyRule{Frequency: FreqDaily, AtHour: 14, AtMinute: 30},
			after: date(2024, 1, 1, 15, 0),
			want:  date(2024, 1, 2, 14, 30),
		},
		{
			name:  "daily exactly at configured time fires tomorrow",
			rule:  FrequencyRule{Frequency: FreqDaily, AtHour: 14, AtMinute: 30},
			after: date(2024, 1, 1, 14, 30),
			want:  date(2024, 1, 2, 14, 30),
		},
		{
			name:  "once behaves like daily for the first fire",
			rule:  FrequencyRule{Frequency: FreqOnce, AtHour: 9, AtMinute: 0},
			after: date(2024, 1, 1, 10, 0),
			want:  date(2024, 1, 2, 9, 0),
		},
		{
			name:  "hourly every hour on the minute",
			rule:  FrequencyRule{Frequency: FreqHourly, HourInterval: 1, AtMinute: 15},
			after: date(2024, 1, 1, 10, 0),
			want:  date(2024, 1, 1, 10, 15),
		},
		{
			name:  "hourly minute already passed",
			rule:  FrequencyRule{Frequency: FreqHourly, HourInterval: 1, AtMinute: 15},
			after: date(2024, 1, 1, 10, 20),
			want:  date(2024, 1, 1, 11, 15),
		},
		{
			name:  "hourly interval aligns to divisible hours",
			rule:  FrequencyRule{Frequency: FreqHourly, HourInterval: 6, AtMinute: 0},
			after: date(2024, 1, 1, 10, 0),
			want:  date(2024, 1, 1, 12, 0),
		},
		{
			name:  "hourly interval crosses midnight",
			rule:  FrequencyRule{Frequency: FreqHourly, HourInterval: 6, AtMinute: 0},
			after: date(2024, 1, 1, 19, 0),
			want:  date(2024, 1, 2, 0, 0),
		},
		{
			// 2024-01-01 is a Monday. A weekly Monday rule evaluated just after
			// Monday's run lands on the following Monday.
			name:  "weekly same day already fired",
			rule:  FrequencyRule{Frequency: FreqWeekly, Weekday: time.Monday, AtHour: 9, AtMinute: 0},
			after: date(2024, 1, 1, 10, 0),
			want:  date(2024, 1, 8, 9, 0),
		},
		{
			name:  "weekly later in the week",
			rule:  FrequencyRule{Frequency: FreqWeekly, Weekday: time.Friday, AtHour: 9, AtMinute: 0},
			after: date(2024, 1, 1, 10, 0),
			want:  date(2024, 1, 5, 9, 0),
		},
		{
			name:  "weekly same day before configured time fires today",
			rule:  FrequencyRule{Frequency: FreqWeekly, Weekday: time.Monday, AtHour: 9, AtMinute: 0},
			after: date(2024, 1, 1, 8, 0),
			want:  date(2024, 1, 1, 9, 0),
		},
		{
			name:  "monthly later this month",
			rule:  FrequencyRule{Frequency: FreqMonthly, DayOfMonth: 15, AtHour: 3, AtMinute: 0},
			after: date(2024, 1, 10, 0, 0),
			want:  date(2024, 1, 15, 3, 0),
		},
		{
			name:  "monthly already passed rolls to next month",
			rule:  FrequencyRule{Frequency: FreqMonthly, DayOfMonth: 15, AtHour: 3, AtMinute: 0},
			after: date(2024, 1, 20, 0, 0),
			want:  date(2024, 2, 15, 3, 0),
		},
		{
			name:  "monthly day 31 clamps to leap february",
			rule:  FrequencyRule{Frequency: FreqMonthly, DayOfMonth: 31, AtHour: 0, AtMinute: 0},
			after: date(2024, 2, 1, 0, 0),
			want:  date(2024, 2, 29, 0, 0),
		},
		{
			name:  "monthly day 31 clamps to short april",
			rule:  FrequencyRule{Frequency: FreqMonthly, DayOfMonth: 31, AtHour: 0, AtMinute: 0},
			after: date(2024, 4, 1, 0, 0),
			want:  date(2024, 4, 30, 0, 0),
		},
		{
			name:  "monthly december rolls into january",
			rule:  FrequencyRule{Frequency: FreqMonthly, DayOfMonth: 5, AtHour: 8, AtMinute: 0},
			after: date(2024, 12, 10, 0, 0),
			want:  date(2025, 1, 5, 8, 0),
		},
		{
			// Mon 2024-01-01 10:00; mon/wed/fri at 09:00 -> Wed 09:00.
			name:  "custom picks the next enabled weekday",
			rule:  FrequencyRule{Frequency: FreqCustom, Weekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday}, AtHour: 9, AtMinute: 0},
			after: date(2024, 1, 1, 10, 0),
			want:  date(2024, 1, 3, 9, 0),
		},
		{
			name:  "custom fires same day when time has not passed",
			rule:  FrequencyRule{Frequency: FreqCustom, Weekdays: []time.Weekday{time.Monday}, AtHour: 23, AtMinute: 0},
			after: date(2024, 1, 1, 10, 0),
			want:  date(2024, 1, 1, 23, 0),
		},
		{
			name:  "custom single day wraps a full week",
			rule:  FrequencyRule{Frequency: FreqCustom, Weekdays: []time.Weekday{time.Monday}, AtHour: 9, AtMinute: 0},
			after: date(2024, 1, 1, 9, 30),
			want:  date(2024, 1, 8, 9, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rule.Next(tt.after)
			if !got.Equal(tt.want) {
				t.Errorf("Next(%v) = %v, want %v", tt.after, got, tt.want)
			}
			if !got.After(tt.after) {
				t.Errorf("Next(%v) = %v, not strictly after input", tt.after, got)
			}
		})
	}
}

func TestFrequencyRule_Next_IsStrictlyMonotonic(t *testing.T) {
	// Repeatedly feeding the result back in must always advance: the scheduler
	// relies on this to never fire the same instant twice.
	rules := []FrequencyRule{
		{Frequency: FreqDaily, AtHour: 2, AtMinute: 0},
		{Frequency: FreqHourly, HourInterval: 4, AtMinute: 30},
		{Frequency: FreqWeekly, Weekday: time.Sunday, AtHour: 1, AtMinute: 0},
		{Frequency: FreqMonthly, DayOfMonth: 31, AtHour: 0, AtMinute: 0},
		{Frequency: FreqCustom, Weekdays: []time.Weekday{time.Tuesday, time.Saturday}, AtHour: 12, AtMinute: 0},
	}

	for _, rule := range rules {
		t.Run(string(rule.Frequency), func(t *testing.T) {
			cur := date(2024, 1, 31, 23, 59)
			for i := 0; i < 50; i++ {
				next := rule.Next(cur)
				if !next.After(cur) {
					t.Fatalf("iteration %d: Next(%v) = %v, did not advance", i, cur, next)
				}
				cur = next
			}
		})
	}
}

func TestFrequencyRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rule    FrequencyRule
		wantErr bool
	}{
		{
			name: "valid daily",
			rule: FrequencyRule{Frequency: FreqDaily, AtHour: 23, AtMinute: 59},
		},
		{
			name:    "unknown frequency",
			rule:    FrequencyRule{Frequency: "fortnightly"},
			wantErr: true,
		},
		{
			name:    "hour out of range",
			rule:    FrequencyRule{Frequency: FreqDaily, AtHour: 24},
			wantErr: true,
		},
		{
			name:    "negative minute",
			rule:    FrequencyRule{Frequency: FreqDaily, AtMinute: -1},
			wantErr: true,
		},
		{
			name: "valid hourly interval",
			rule: FrequencyRule{Frequency: FreqHourly, HourInterval: 24},
		},
		{
			name:    "hourly interval zero",
			rule:    FrequencyRule{Frequency: FreqHourly, HourInterval: 0},
			wantErr: true,
		},
		{
			name:    "hourly interval too large",
			rule:    FrequencyRule{Frequency: FreqHourly, HourInterval: 25},
			wantErr: true,
		},
		{
			name: "valid monthly",
			rule: FrequencyRule{Frequency: FreqMonthly, DayOfMonth: 31},
		},
		{
			name:    "monthly day zero",
			rule:    FrequencyRule{Frequency: FreqMonthly, DayOfMonth: 0},
			wantErr: true,
		},
		{
			name:    "monthly day too large",
			rule:    FrequencyRule{Frequency: FreqMonthly, DayOfMonth: 32},
			wantErr: true,
		},
		{
			name: "valid custom",
			rule: FrequencyRule{Frequency: FreqCustom, Weekdays: []time.Weekday{time.Monday}},
		},
		{
			name:    "custom with no weekdays",
			rule:    FrequencyRule{Frequency: FreqCustom},
			wantErr: true,
		},
		{
			name:    "custom with invalid weekday",
			rule:    FrequencyRule{Frequency: FreqCustom, Weekdays: []time.Weekday{time.Weekday(7)}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseFrequency(t *testing.T) {
	for _, s := range []string{"once", "hourly", "daily", "weekly", "monthly", "custom"} {
		if _, err := ParseFrequency(s); err != nil {
			t.Errorf("ParseFrequency(%q) error = %v", s, err)
		}
	}
	if _, err := ParseFrequency("yearly"); err == nil {
		t.Error("ParseFrequency(\"yearly\") expected error")
	}
}
