package cron

import (
	"fmt"
	"strings"
)

var monthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var weekdayNames = []string{
	"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
}

// Describe renders a human-readable summary of a cron expression for
// display purposes. It is not used during evaluation.
func Describe(expr string) (string, error) {
	schedule, err := Parse(expr)
	if err != nil {
		return "", err
	}

	parts := []string{}

	minutes := values(schedule.Minutes)
	hours := values(schedule.Hours)

	switch {
	case len(minutes) == 60 && len(hours) == 24:
		parts = append(parts, "every minute")
	case len(minutes) == 1 && len(hours) == 24:
		parts = append(parts, fmt.Sprintf("at minute %d of every hour", minutes[0]))
	case len(minutes) == 1 && len(hours) == 1:
		parts = append(parts, fmt.Sprintf("at %02d:%02d", hours[0], minutes[0]))
	default:
		parts = append(parts, fmt.Sprintf("at minutes %s of hours %s", joinInts(minutes), joinInts(hours)))
	}

	if days := values(schedule.Days); len(days) < 31 {
		parts = append(parts, fmt.Sprintf("on day %s of the month", joinInts(days)))
	}

	if months := values(schedule.Months); len(months) < 12 {
		names := make([]string, len(months))
		for i, m := range months {
			names[i] = monthNames[m-1]
		}
		parts = append(parts, "in "+strings.Join(names, ", "))
	}

	if weekdays := values(schedule.Weekdays); len(weekdays) < 7 {
		names := make([]string, len(weekdays))
		for i, w := range weekdays {
			names[i] = weekdayNames[w]
		}
		parts = append(parts, "on "+strings.Join(names, ", "))
	}

	return strings.Join(parts, ", "), nil
}

func joinInts(vals []int) string {
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(strs, ",")
}
