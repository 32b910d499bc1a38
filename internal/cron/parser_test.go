package cron

import (
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		expr      string
		wantError bool
		field     string
	}{
		{name: "every minute", expr: "* * * * *"},
		{name: "daily at 9am", expr: "0 9 * * *"},
		{name: "range", expr: "0-15 9 * * *"},
		{name: "list", expr: "0,15,30,45 * * * *"},
		{name: "step", expr: "*/15 * * * *"},
		{name: "range with step", expr: "10-30/5 * * * *"},
		{name: "start with step", expr: "10/15 * * * *"},
		{name: "weekdays only", expr: "0 9 * * 1-5"},
		{name: "too few fields", expr: "* * * *", wantError: true, field: "expression"},
		{name: "too many fields", expr: "* * * * * *", wantError: true, field: "expression"},
		{name: "minute out of range", expr: "60 * * * *", wantError: true, field: "minute"},
		{name: "hour out of range", expr: "0 24 * * *", wantError: true, field: "hour"},
		{name: "day zero", expr: "0 0 0 * *", wantError: true, field: "day"},
		{name: "month out of range", expr: "0 0 * 13 *", wantError: true, field: "month"},
		{name: "weekday out of range", expr: "0 0 * * 7", wantError: true, field: "weekday"},
		{name: "garbage value", expr: "abc * * * *", wantError: true, field: "minute"},
		{name: "inverted range", expr: "30-10 * * * *", wantError: true, field: "minute"},
		{name: "zero step", expr: "*/0 * * * *", wantError: true, field: "minute"},
		{name: "empty list element", expr: "1,,2 * * * *", wantError: true, field: "minute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule, err := Parse(tt.expr)
			if tt.wantError {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got none", tt.expr)
				}
				parseErr, ok := err.(*ParseError)
				if !ok {
					t.Fatalf("Parse(%q) error = %T, want *ParseError", tt.expr, err)
				}
				if parseErr.Field != tt.field {
					t.Errorf("Parse(%q) error field = %q, want %q", tt.expr, parseErr.Field, tt.field)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.expr, err)
			}
			if schedule == nil {
				t.Fatal("Parse() returned nil schedule without error")
			}
		})
	}
}

func TestParse_FieldSets(t *testing.T) {
	schedule, err := Parse("*/15 9-17 1 6 1-5")
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	wantMinutes := []int{0, 15, 30, 45}
	gotMinutes := values(schedule.Minutes)
	if len(gotMinutes) != len(wantMinutes) {
		t.Fatalf("minutes = %v, want %v", gotMinutes, wantMinutes)
	}
	for i, v := range wantMinutes {
		if gotMinutes[i] != v {
			t.Errorf("minutes[%d] = %d, want %d", i, gotMinutes[i], v)
		}
	}

	if len(schedule.Hours) != 9 {
		t.Errorf("hours count = %d, want 9", len(schedule.Hours))
	}
	if !schedule.Days[1] || len(schedule.Days) != 1 {
		t.Errorf("days = %v, want {1}", values(schedule.Days))
	}
	if !schedule.Months[6] || len(schedule.Months) != 1 {
		t.Errorf("months = %v, want {6}", values(schedule.Months))
	}
	if len(schedule.Weekdays) != 5 || schedule.Weekdays[0] || schedule.Weekdays[6] {
		t.Errorf("weekdays = %v, want 1-5", values(schedule.Weekdays))
	}
}

func TestParse_ListDeduplicates(t *testing.T) {
	schedule, err := Parse("5,5,5 * * * *")
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}
	if len(schedule.Minutes) != 1 {
		t.Errorf("minutes count = %d, want 1", len(schedule.Minutes))
	}
}

func TestSchedule_Matches(t *testing.T) {
	// 2026-03-02 is a Monday
	monday9am := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		at   time.Time
		want bool
	}{
		{"every minute matches", "* * * * *", monday9am, true},
		{"exact match", "0 9 2 3 1", monday9am, true},
		{"minute mismatch", "30 9 * * *", monday9am, false},
		{"hour mismatch", "0 10 * * *", monday9am, false},
		{"weekday match", "0 9 * * 1", monday9am, true},
		{"weekday mismatch", "0 9 * * 0", monday9am, false},
		{"seconds ignored", "0 9 * * *", monday9am.Add(30 * time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.expr, err)
			}
			if got := schedule.Matches(tt.at); got != tt.want {
				t.Errorf("Matches(%s) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestSchedule_Next(t *testing.T) {
	// 2026-03-02 09:30 UTC, a Monday
	from := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{"next minute", "* * * * *", from.Add(time.Minute)},
		{"later today", "0 17 * * *", time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)},
		{"tomorrow morning", "0 9 * * *", time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)},
		{"next friday", "0 9 * * 5", time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)},
		{"first of next month", "0 0 1 * *", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.expr, err)
			}
			got, err := schedule.Next(from)
			if err != nil {
				t.Fatalf("Next() unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Next() = %s, want %s", got, tt.want)
			}
			if !schedule.Matches(got) {
				t.Errorf("Next() returned %s which does not match the schedule", got)
			}
		})
	}
}

func TestSchedule_Next_NoEarlierMatch(t *testing.T) {
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	schedule, err := Parse("30 14 * * 3")
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	next, err := schedule.Next(from)
	if err != nil {
		t.Fatalf("Next() unexpected error: %v", err)
	}

	// No instant between from and next may match.
	for t1 := from.Add(time.Minute); t1.Before(next); t1 = t1.Add(time.Minute) {
		if schedule.Matches(t1) {
			t.Fatalf("found earlier match %s before Next() result %s", t1, next)
		}
	}
}

func TestSchedule_Next_Unsatisfiable(t *testing.T) {
	// February 31st never exists.
	schedule, err := Parse("0 0 31 2 *")
	if err != nil {
		t.Fatalf("Parse() unexpected error: %v", err)
	}

	if _, err := schedule.Next(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatal("Next() expected error for unsatisfiable expression, got none")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"* * * * *", "every minute"},
		{"0 * * * *", "at minute 0 of every hour"},
		{"30 9 * * *", "at 09:30"},
		{"0 9 * * 1", "at 09:00, on Monday"},
		{"0 0 1 1 *", "at 00:00, on day 1 of the month, in January"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Describe(tt.expr)
			if err != nil {
				t.Fatalf("Describe(%q) unexpected error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Describe(%q) = %q, want %q", tt.expr, got, tt.want)
			}
		})
	}

	if _, err := Describe("not a cron"); err == nil {
		t.Error("Describe() expected error for invalid expression")
	}
	if _, err := Describe("61 * * * *"); err == nil || !strings.Contains(err.Error(), "minute") {
		t.Errorf("Describe() error = %v, want minute field error", err)
	}
}
