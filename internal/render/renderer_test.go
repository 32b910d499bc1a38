package render

import (
	"strings"
	"testing"
	"time"
)

func newTestRenderer() *Renderer {
	return NewRenderer(DefaultConfig(), nil)
}

func TestRenderSubstitution(t *testing.T) {
	r := newTestRenderer()

	tests := []struct {
		name     string
		template string
		ctx      map[string]interface{}
		want     string
	}{
		{
			name:     "simple variable",
			template: "Hello {{guest_name}}!",
			ctx:      map[string]interface{}{"guest_name": "Alice"},
			want:     "Hello Alice!",
		},
		{
			name:     "nested path",
			template: "Room {{guest.room_number}}",
			ctx: map[string]interface{}{
				"guest": map[string]interface{}{"room_number": "204"},
			},
			want: "Room 204",
		},
		{
			name:     "default guest name on empty context",
			template: "Welcome {{guest_name}}!",
			ctx:      map[string]interface{}{},
			want:     "Welcome Guest!",
		},
		{
			name:     "whitespace inside delimiters",
			template: "Hi {{ guest_name }}",
			ctx:      map[string]interface{}{"guest_name": "Bob"},
			want:     "Hi Bob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(tt.template, tt.ctx)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderUndefinedVariable(t *testing.T) {
	r := newTestRenderer()

	_, err := r.Render("Hello {{missing_name}}!", map[string]interface{}{})
	if err == nil {
		t.Fatal("expected error for undefined variable")
	}
	if !strings.Contains(err.Error(), "missing_name") {
		t.Errorf("error should name the variable, got %v", err)
	}
}

func TestRenderFilters(t *testing.T) {
	r := newTestRenderer()
	checkin := time.Date(2026, 3, 9, 15, 4, 0, 0, time.UTC)

	tests := []struct {
		name     string
		template string
		ctx      map[string]interface{}
		want     string
	}{
		{
			name:     "capitalize",
			template: "{{name | capitalize}}",
			ctx:      map[string]interface{}{"name": "alice smith"},
			want:     "Alice Smith",
		},
		{
			name:     "truncate",
			template: "{{text | truncate:5}}",
			ctx:      map[string]interface{}{"text": "hello world"},
			want:     "hello...",
		},
		{
			name:     "truncate shorter than limit",
			template: "{{text | truncate:20}}",
			ctx:      map[string]interface{}{"text": "hello"},
			want:     "hello",
		},
		{
			name:     "format_phone",
			template: "{{phone | format_phone}}",
			ctx:      map[string]interface{}{"phone": "5551234567"},
			want:     "(555) 123-4567",
		},
		{
			name:     "format_date default layout",
			template: "{{checkin_time | format_date}}",
			ctx:      map[string]interface{}{"checkin_time": checkin},
			want:     "Monday, March 9 at 3:04 PM",
		},
		{
			name:     "format_date custom layout",
			template: "{{checkin_time | format_date:2006-01-02}}",
			ctx:      map[string]interface{}{"checkin_time": checkin},
			want:     "2026-03-09",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(tt.template, tt.ctx)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderUnknownFilter(t *testing.T) {
	r := newTestRenderer()

	_, err := r.Render("{{name | shell}}", map[string]interface{}{"name": "x"})
	if err == nil {
		t.Fatal("expected error for unknown filter")
	}
	if !strings.Contains(err.Error(), "shell") {
		t.Errorf("error should name the filter, got %v", err)
	}
}

func TestRenderConditionals(t *testing.T) {
	r := newTestRenderer()

	tests := []struct {
		name     string
		template string
		ctx      map[string]interface{}
		want     string
	}{
		{
			name:     "if true",
			template: "{% if vip %}Welcome back!{% endif %}",
			ctx:      map[string]interface{}{"vip": true},
			want:     "Welcome back!",
		},
		{
			name:     "if false",
			template: "a{% if vip %}Welcome back!{% endif %}b",
			ctx:      map[string]interface{}{"vip": false},
			want:     "ab",
		},
		{
			name:     "if missing variable is falsy",
			template: "a{% if vip %}X{% endif %}b",
			ctx:      map[string]interface{}{},
			want:     "ab",
		},
		{
			name:     "if else",
			template: "{% if vip %}gold{% else %}standard{% endif %}",
			ctx:      map[string]interface{}{"vip": false},
			want:     "standard",
		},
		{
			name:     "empty string is falsy",
			template: "{% if note %}note: {{note}}{% else %}no note{% endif %}",
			ctx:      map[string]interface{}{"note": ""},
			want:     "no note",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(tt.template, tt.ctx)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderWhitespaceCleanup(t *testing.T) {
	r := newTestRenderer()

	got, err := r.Render("  Hello   {{guest_name}}  \n\n\n\nBye  ", map[string]interface{}{"guest_name": "Ann"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := "Hello Ann\n\nBye"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderCacheHit(t *testing.T) {
	r := newTestRenderer()
	ctx := map[string]interface{}{"guest_name": "Alice"}

	first, err := r.Render("Hello {{guest_name}}!", ctx)
	if err != nil {
		t.Fatalf("first Render() error = %v", err)
	}
	second, err := r.Render("Hello {{guest_name}}!", ctx)
	if err != nil {
		t.Fatalf("second Render() error = %v", err)
	}
	if first != second {
		t.Errorf("cached render %q differs from first %q", second, first)
	}

	stats := r.CacheStats()
	if stats.Hits != 1 {
		t.Errorf("cache hits = %d, want 1", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("cache misses = %d, want 1", stats.Misses)
	}
}

func TestRenderCacheKeyDependsOnContext(t *testing.T) {
	r := newTestRenderer()

	a, err := r.Render("Hi {{guest_name}}", map[string]interface{}{"guest_name": "A"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	b, err := r.Render("Hi {{guest_name}}", map[string]interface{}{"guest_name": "B"})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if a == b {
		t.Error("different contexts should not share a cached result")
	}
	if r.CacheStats().Hits != 0 {
		t.Errorf("cache hits = %d, want 0", r.CacheStats().Hits)
	}
}

func TestRenderTemplateTooLarge(t *testing.T) {
	r := newTestRenderer()

	_, err := r.Render(strings.Repeat("a", DefaultConfig().MaxTemplateSize+1), nil)
	if err == nil {
		t.Fatal("expected error for oversized template")
	}
}

func TestRenderDoesNotMutateCallerContext(t *testing.T) {
	r := newTestRenderer()
	ctx := map[string]interface{}{}

	if _, err := r.Render("Welcome {{guest_name}}!", ctx); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(ctx) != 0 {
		t.Errorf("caller context mutated: %v", ctx)
	}
}

func TestCacheEviction(t *testing.T) {
	config := DefaultConfig()
	config.CacheMaxEntries = 2
	r := NewRenderer(config, nil)

	templates := []string{"one {{n}}", "two {{n}}", "three {{n}}"}
	for _, tmpl := range templates {
		if _, err := r.Render(tmpl, map[string]interface{}{"n": 1}); err != nil {
			t.Fatalf("Render(%q) error = %v", tmpl, err)
		}
	}

	if entries := r.CacheStats().Entries; entries > 2 {
		t.Errorf("cache entries = %d, want <= 2", entries)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		template  string
		wantValid bool
		wantErr   string
	}{
		{
			name:      "valid template",
			template:  "Hello {{guest_name}}!",
			wantValid: true,
		},
		{
			name:      "valid with conditional",
			template:  "{% if vip %}hi{% endif %}",
			wantValid: true,
		},
		{
			name:      "unclosed variable delimiter",
			template:  "Hello {{name",
			wantValid: false,
			wantErr:   "delimiter",
		},
		{
			name:      "unclosed tag delimiter",
			template:  "{% if vip",
			wantValid: false,
			wantErr:   "delimiter",
		},
		{
			name:      "unterminated if",
			template:  "{% if vip %}hi",
			wantValid: false,
		},
		{
			name:      "else without if",
			template:  "{% else %}",
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.template)
			if result.IsValid != tt.wantValid {
				t.Fatalf("IsValid = %v, want %v (errors: %v)", result.IsValid, tt.wantValid, result.Errors)
			}
			if !tt.wantValid && len(result.Errors) == 0 {
				t.Error("invalid result should carry at least one error")
			}
			if tt.wantErr != "" {
				found := false
				for _, e := range result.Errors {
					if strings.Contains(e, tt.wantErr) {
						found = true
					}
				}
				if !found {
					t.Errorf("errors %v should mention %q", result.Errors, tt.wantErr)
				}
			}
		})
	}
}

func TestValidateExtractsVariables(t *testing.T) {
	result := Validate("Hi {{guest_name}}, checkin {{checkin_time | format_date}}, {{num_nights}} nights, {% if is_vip %}{{guest.room}}{% endif %}")
	if !result.IsValid {
		t.Fatalf("expected valid, errors: %v", result.Errors)
	}

	wantTypes := map[string]string{
		"guest_name":   "string",
		"checkin_time": "datetime",
		"num_nights":   "number",
		"guest":        "string",
	}
	gotTypes := make(map[string]string)
	for _, v := range result.Variables {
		gotTypes[v.Name] = v.Type
	}
	for name, typ := range wantTypes {
		if gotTypes[name] != typ {
			t.Errorf("variable %s type = %q, want %q", name, gotTypes[name], typ)
		}
	}
}

func TestValidateWarnsOnDangerousPatterns(t *testing.T) {
	for _, snippet := range []string{
		"{{__class__}}",
		"run exec( now",
		"eval(1)",
		"open(file)",
		"import os",
	} {
		result := Validate(snippet)
		if len(result.Warnings) == 0 {
			t.Errorf("Validate(%q) produced no warning", snippet)
		}
	}
}

func TestValidateWarnsOnOversizedTemplate(t *testing.T) {
	result := Validate(strings.Repeat("a", DefaultConfig().MaxTemplateSize+1))
	if !result.IsValid {
		t.Fatalf("oversized template should still be valid, errors: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a size warning")
	}
}
