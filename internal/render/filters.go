package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"guest-messaging/internal/common/errors"
)

// filterFunc transforms a resolved value. The arg is the optional
// ":"-suffix from the template, empty when absent.
type filterFunc func(value interface{}, arg string) (string, error)

// defaultDateLayout is used by format_date when no layout arg is given.
const defaultDateLayout = "Monday, January 2 at 3:04 PM"

// filterWhitelist is the full executable surface exposed to templates.
var filterWhitelist = map[string]filterFunc{
	"format_phone": filterFormatPhone,
	"format_date":  filterFormatDate,
	"capitalize":   filterCapitalize,
	"truncate":     filterTruncate,
}

// FilterNames returns the names of the whitelisted filters, for
// validation messages and docs.
func FilterNames() []string {
	names := make([]string, 0, len(filterWhitelist))
	for name := range filterWhitelist {
		names = append(names, name)
	}
	return names
}

// filterFormatPhone normalizes phone numbers to a display form.
// 10-digit numbers become (AAA) BBB-CCCC, 11-digit numbers with a
// leading 1 become +1 (AAA) BBB-CCCC, anything else passes through.
func filterFormatPhone(value interface{}, _ string) (string, error) {
	raw := fmt.Sprintf("%v", value)

	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case len(d) == 10:
		return fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:]), nil
	case len(d) == 11 && d[0] == '1':
		return fmt.Sprintf("+1 (%s) %s-%s", d[1:4], d[4:7], d[7:]), nil
	default:
		return raw, nil
	}
}

// filterFormatDate renders instants with a Go layout argument, e.g.
// {{ checkin_time | format_date:"Jan 2, 2006" }}.
func filterFormatDate(value interface{}, arg string) (string, error) {
	t, ok := coerceTime(value)
	if !ok {
		return "", errors.RenderError(fmt.Sprintf("format_date applied to non-datetime value %v", value), nil)
	}

	layout := arg
	if layout == "" {
		layout = defaultDateLayout
	}
	return t.Format(layout), nil
}

// filterCapitalize upper-cases the first letter of every word.
func filterCapitalize(value interface{}, _ string) (string, error) {
	text := fmt.Sprintf("%v", value)

	var b strings.Builder
	startOfWord := true
	for _, r := range text {
		if unicode.IsSpace(r) {
			startOfWord = true
			b.WriteRune(r)
			continue
		}
		if startOfWord {
			b.WriteRune(unicode.ToUpper(r))
			startOfWord = false
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String(), nil
}

// filterTruncate limits text to N runes (default 50), appending "..."
// when anything was cut.
func filterTruncate(value interface{}, arg string) (string, error) {
	text := fmt.Sprintf("%v", value)

	limit := 50
	if arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return "", errors.RenderError(fmt.Sprintf("truncate requires a positive length, got %q", arg), nil)
		}
		limit = n
	}

	runes := []rune(text)
	if len(runes) <= limit {
		return text, nil
	}
	return string(runes[:limit]) + "...", nil
}

func coerceTime(value interface{}) (time.Time, bool) {
	switch t := value.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}
