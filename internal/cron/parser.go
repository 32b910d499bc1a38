// Package cron implements parsing and evaluation of 5-field cron
// expressions (minute hour day month weekday). Expressions are parsed
// into per-field integer sets so membership checks and next-execution
// searches are simple set lookups.
package cron

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Bounds for each cron field position.
var fieldBounds = []struct {
	name string
	min  int
	max  int
}{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day", 1, 31},
	{"month", 1, 12},
	{"weekday", 0, 6},
}

// searchLimitMinutes bounds the forward search in Next to roughly one
// year so unsatisfiable expressions (e.g. day 31 in month 2) terminate.
const searchLimitMinutes = 366 * 24 * 60

// ParseError describes a cron parse failure, naming the offending field.
type ParseError struct {
	Field  string
	Value  string
	Reason string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid cron %s field %q: %s", e.Field, e.Value, e.Reason)
}

// Schedule is a parsed cron expression. Each field holds the set of
// matching values for its position.
type Schedule struct {
	Minutes  map[int]bool
	Hours    map[int]bool
	Days     map[int]bool
	Months   map[int]bool
	Weekdays map[int]bool

	expr string
}

// Parse parses a 5-field cron expression into a Schedule.
func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, &ParseError{
			Field:  "expression",
			Value:  expr,
			Reason: fmt.Sprintf("expected 5 fields, got %d", len(fields)),
		}
	}

	sets := make([]map[int]bool, 5)
	for i, field := range fields {
		set, err := parseField(field, fieldBounds[i].name, fieldBounds[i].min, fieldBounds[i].max)
		if err != nil {
			return nil, err
		}
		sets[i] = set
	}

	return &Schedule{
		Minutes:  sets[0],
		Hours:    sets[1],
		Days:     sets[2],
		Months:   sets[3],
		Weekdays: sets[4],
		expr:     expr,
	}, nil
}

// Validate reports whether expr is a well-formed cron expression.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// String returns the original expression text.
func (s *Schedule) String() string {
	return s.expr
}

// Matches reports whether the instant t is a member of every field set.
// Comparison is at minute granularity; seconds are ignored.
func (s *Schedule) Matches(t time.Time) bool {
	return s.Minutes[t.Minute()] &&
		s.Hours[t.Hour()] &&
		s.Days[t.Day()] &&
		s.Months[int(t.Month())] &&
		s.Weekdays[int(t.Weekday())]
}

// Next returns the first instant strictly after from that matches the
// schedule. The search is a minute-stepped scan bounded to about one
// year; past the bound an error is returned instead of looping forever.
func (s *Schedule) Next(from time.Time) (time.Time, error) {
	t := from.Truncate(time.Minute)
	for i := 0; i < searchLimitMinutes; i++ {
		t = t.Add(time.Minute)
		if s.Matches(t) {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no matching time within one year of %s for %q", from.Format(time.RFC3339), s.expr)
}

// parseField parses one cron field into a set of valid integers.
// Supported forms: "*", "a", "a-b", "*/n", "a/n", "a-b/n" and
// comma-separated lists of those.
func parseField(field, name string, min, max int) (map[int]bool, error) {
	set := make(map[int]bool)

	for _, part := range strings.Split(field, ",") {
		if part == "" {
			return nil, &ParseError{Field: name, Value: field, Reason: "empty list element"}
		}

		spec := part
		step := 1

		if idx := strings.IndexByte(part, '/'); idx >= 0 {
			spec = part[:idx]
			stepStr := part[idx+1:]
			n, err := strconv.Atoi(stepStr)
			if err != nil || n <= 0 {
				return nil, &ParseError{Field: name, Value: part, Reason: fmt.Sprintf("invalid step %q", stepStr)}
			}
			step = n
		}

		lo, hi := min, max
		switch {
		case spec == "*":
			// full range

		case strings.Contains(spec, "-"):
			bounds := strings.SplitN(spec, "-", 2)
			a, errA := strconv.Atoi(bounds[0])
			b, errB := strconv.Atoi(bounds[1])
			if errA != nil || errB != nil {
				return nil, &ParseError{Field: name, Value: part, Reason: "range bounds must be integers"}
			}
			if a > b {
				return nil, &ParseError{Field: name, Value: part, Reason: fmt.Sprintf("range start %d after end %d", a, b)}
			}
			lo, hi = a, b

		default:
			n, err := strconv.Atoi(spec)
			if err != nil {
				return nil, &ParseError{Field: name, Value: part, Reason: "not a number"}
			}
			lo = n
			if step == 1 {
				hi = n
			}
			// "a/n" means start at a and step to the field maximum
		}

		if lo < min || hi > max {
			return nil, &ParseError{
				Field:  name,
				Value:  part,
				Reason: fmt.Sprintf("value out of range %d-%d", min, max),
			}
		}

		for v := lo; v <= hi; v += step {
			set[v] = true
		}
	}

	if len(set) == 0 {
		return nil, &ParseError{Field: name, Value: field, Reason: "no values"}
	}

	return set, nil
}

// values returns the sorted members of a field set.
func values(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
