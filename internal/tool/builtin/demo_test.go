package builtin

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/chatgate-dev/chatgate/internal/tool"
)

func newTestPlugin(t *testing.T) (*DemoPlugin, *tool.Registry) {
	t.Helper()
	p := NewDemoPlugin()
	r := tool.NewRegistry(nil)
	if err := p.Register(r); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return p, r
}

func TestRegisterExposesThreeFunctions(t *testing.T) {
	_, r := newTestPlugin(t)

	if r.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", r.Count())
	}

	defs := r.Definitions()
	want := []string{"get_current_time", "calculate_simple_math", "get_plugin_stats"}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("Definitions()[%d].Name = %q, want %q", i, defs[i].Name, name)
		}
		if defs[i].Description == "" {
			t.Errorf("Definitions()[%d] has empty description", i)
		}
	}
}

func TestGetCurrentTimeFormats(t *testing.T) {
	fixed := time.Date(2024, 3, 15, 9, 30, 45, 0, time.Local)
	p := &DemoPlugin{now: func() time.Time { return fixed }}

	tests := []struct {
		format string
		want   string
	}{
		{"full", "Current full: 2024-03-15 09:30:45"},
		{"date", "Current date: 2024-03-15"},
		{"time", "Current time: 09:30:45"},
		{"", "Current full: 2024-03-15 09:30:45"},
	}

	for _, tt := range tests {
		args := map[string]any{}
		if tt.format != "" {
			args["format_type"] = tt.format
		}
		got, err := p.getCurrentTime(context.Background(), args)
		if err != nil {
			t.Fatalf("getCurrentTime(%q): %v", tt.format, err)
		}
		if got != tt.want {
			t.Errorf("getCurrentTime(%q) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestGetCurrentTimeDateMatchesPattern(t *testing.T) {
	p, _ := newTestPlugin(t)

	got, err := p.getCurrentTime(context.Background(), map[string]any{"format_type": "date"})
	if err != nil {
		t.Fatal(err)
	}
	if !regexp.MustCompile(`\d{4}-\d{2}-\d{2}`).MatchString(got) {
		t.Errorf("date result %q does not contain YYYY-MM-DD", got)
	}
}

func TestGetCurrentTimeUnknownFormatFallsBackToFull(t *testing.T) {
	fixed := time.Date(2024, 3, 15, 9, 30, 45, 0, time.Local)
	p := &DemoPlugin{now: func() time.Time { return fixed }}

	got, err := p.getCurrentTime(context.Background(), map[string]any{"format_type": "bogus"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "2024-03-15 09:30:45") {
		t.Errorf("unknown format should use the full layout, got %q", got)
	}
}

func TestCalculateSimpleMath(t *testing.T) {
	p, _ := newTestPlugin(t)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"add floats", map[string]any{"operation": "add", "first_number": 2.5, "second_number": 1.5}, "2.5 add 1.5 = 4.0"},
		{"add integers", map[string]any{"operation": "add", "first_number": float64(2), "second_number": float64(3)}, "2.0 add 3.0 = 5.0"},
		{"subtract", map[string]any{"operation": "subtract", "first_number": 10.0, "second_number": 4.5}, "10.0 subtract 4.5 = 5.5"},
		{"multiply", map[string]any{"operation": "multiply", "first_number": 3.0, "second_number": 2.5}, "3.0 multiply 2.5 = 7.5"},
		{"divide", map[string]any{"operation": "divide", "first_number": 5.0, "second_number": 2.0}, "5.0 divide 2.0 = 2.5"},
		{"divide by zero", map[string]any{"operation": "divide", "first_number": 5.0, "second_number": 0.0}, "Error: Cannot divide by zero"},
		{"unknown operation", map[string]any{"operation": "modulo", "first_number": 5.0, "second_number": 2.0}, "Error: Unknown operation 'modulo'. Use: add, subtract, multiply, divide"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.calculateSimpleMath(context.Background(), tt.args)
			if err != nil {
				t.Fatalf("calculateSimpleMath: %v", err)
			}
			if got != tt.want {
				t.Errorf("calculateSimpleMath = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCalculateSimpleMathRejectsNonNumbers(t *testing.T) {
	p, _ := newTestPlugin(t)

	_, err := p.calculateSimpleMath(context.Background(), map[string]any{
		"operation": "add", "first_number": "two", "second_number": 1.0,
	})
	if err == nil {
		t.Error("expected error for non-numeric argument")
	}
}

func TestGetPluginStats(t *testing.T) {
	p, _ := newTestPlugin(t)

	// Fresh plugin: no calls yet.
	out, err := p.getPluginStats(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	var stats struct {
		TotalCalls         int      `json:"total_calls"`
		LastCalled         *string  `json:"last_called"`
		PluginName         string   `json:"plugin_name"`
		AvailableFunctions []string `json:"available_functions"`
		Status             string   `json:"status"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("stats output is not JSON: %v", err)
	}
	if stats.TotalCalls != 0 || stats.LastCalled != nil {
		t.Errorf("fresh stats = %+v, want zero calls and null last_called", stats)
	}
	if stats.PluginName != PluginName || stats.Status != "active" {
		t.Errorf("stats identity = %+v", stats)
	}
	if len(stats.AvailableFunctions) != 3 {
		t.Errorf("available_functions = %v, want 3 entries", stats.AvailableFunctions)
	}

	// Counters advance with usage; get_plugin_stats itself does not count.
	if _, err := p.getCurrentTime(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := p.calculateSimpleMath(context.Background(), map[string]any{
		"operation": "add", "first_number": 1.0, "second_number": 1.0,
	}); err != nil {
		t.Fatal(err)
	}

	out, err = p.getPluginStats(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalCalls != 2 {
		t.Errorf("total_calls = %d, want 2", stats.TotalCalls)
	}
	if stats.LastCalled == nil {
		t.Error("last_called should be set after calls")
	}
}
