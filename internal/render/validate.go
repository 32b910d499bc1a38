package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Variable is a reference extracted from a template with a coarse type
// inferred from its name.
type Variable struct {
	Name string `json:"name"`
	Type string `json:"type"` // datetime, number, boolean or string
}

// ValidationResult reports the outcome of template validation.
type ValidationResult struct {
	IsValid   bool       `json:"is_valid"`
	Variables []Variable `json:"variables"`
	Errors    []string   `json:"errors"`
	Warnings  []string   `json:"warnings"`
}

// Textual patterns resembling code-execution escapes. Templates cannot
// execute code regardless; these warnings are defense in depth on top
// of the sandbox, not a substitute for it.
var dangerousPatterns = []string{
	"import",
	"__",
	"exec(",
	"eval(",
	"open(",
}

var reVarExpr = regexp.MustCompile(`\{\{([^}]*)\}\}`)

// Validate checks a template without executing it: delimiter balance,
// syntax, variable extraction with type inference, suspicious-pattern
// warnings and a size warning.
func Validate(templateText string) *ValidationResult {
	result := &ValidationResult{
		IsValid:   true,
		Variables: []Variable{},
		Errors:    []string{},
		Warnings:  []string{},
	}

	checkDelimiterBalance(templateText, result)

	// Parse in the sandbox to surface syntax errors without executing.
	if len(result.Errors) == 0 {
		if _, err := parse(templateText); err != nil {
			result.IsValid = false
			result.Errors = append(result.Errors, err.Error())
		}
	}

	result.Variables = extractVariables(templateText)

	lower := strings.ToLower(templateText)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("template contains pattern %q resembling a code-execution escape", pattern))
		}
	}

	if len(templateText) > DefaultConfig().MaxTemplateSize {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("template length %d exceeds recommended maximum %d", len(templateText), DefaultConfig().MaxTemplateSize))
	}

	return result
}

func checkDelimiterBalance(templateText string, result *ValidationResult) {
	pairs := []struct {
		open  string
		close string
	}{
		{"{{", "}}"},
		{"{%", "%}"},
	}

	for _, pair := range pairs {
		opens := strings.Count(templateText, pair.open)
		closes := strings.Count(templateText, pair.close)
		if opens != closes {
			result.IsValid = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("unbalanced %s %s delimiters: %d opening, %d closing", pair.open, pair.close, opens, closes))
		}
	}
}

// extractVariables scans {{ expr }} occurrences, taking the base
// identifier before any filter or attribute access, de-duplicated and
// sorted.
func extractVariables(templateText string) []Variable {
	seen := make(map[string]bool)
	var names []string

	for _, match := range reVarExpr.FindAllStringSubmatch(templateText, -1) {
		expr := strings.TrimSpace(match[1])
		if expr == "" {
			continue
		}
		// Strip filters, then attribute access.
		base := strings.TrimSpace(strings.SplitN(expr, "|", 2)[0])
		base = strings.SplitN(base, ".", 2)[0]
		if base == "" || !validPath(base) || seen[base] {
			continue
		}
		seen[base] = true
		names = append(names, base)
	}

	sort.Strings(names)
	variables := make([]Variable, len(names))
	for i, name := range names {
		variables[i] = Variable{Name: name, Type: inferType(name)}
	}
	return variables
}

// inferType guesses a coarse variable type from naming convention.
func inferType(name string) string {
	lower := strings.ToLower(name)

	for _, suffix := range []string{"_at", "_time", "_date", "_datetime"} {
		if strings.HasSuffix(lower, suffix) {
			return "datetime"
		}
	}
	for _, prefix := range []string{"date_", "time_"} {
		if strings.HasPrefix(lower, prefix) {
			return "datetime"
		}
	}
	if lower == "now" || lower == "today" {
		return "datetime"
	}

	for _, prefix := range []string{"is_", "has_", "can_", "should_"} {
		if strings.HasPrefix(lower, prefix) {
			return "boolean"
		}
	}
	for _, suffix := range []string{"_enabled", "_active"} {
		if strings.HasSuffix(lower, suffix) {
			return "boolean"
		}
	}

	for _, suffix := range []string{"_count", "_number", "_total", "_amount", "_minutes", "_hours", "_days"} {
		if strings.HasSuffix(lower, suffix) {
			return "number"
		}
	}
	if strings.HasPrefix(lower, "num_") {
		return "number"
	}

	return "string"
}
