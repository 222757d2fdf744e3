// Package builtin provides the demo plugin: a small set of capabilities the
// model can call automatically, useful for exercising the function-calling
// path end to end.
package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/chatgate-dev/chatgate/internal/tool"
)

// PluginName groups the demo capabilities in the call ledger.
const PluginName = "demo"

// DemoPlugin holds the usage counters shared by the demo capabilities.
// Counters are process-wide and may be read from concurrent requests.
type DemoPlugin struct {
	now func() time.Time

	mu         sync.Mutex
	callCount  int
	lastCalled time.Time
}

// NewDemoPlugin creates the plugin with a real clock.
func NewDemoPlugin() *DemoPlugin {
	return &DemoPlugin{now: time.Now}
}

// Register adds the demo capabilities to the registry.
func (p *DemoPlugin) Register(r *tool.Registry) error {
	caps := []tool.Capability{
		{
			Name:        "get_current_time",
			PluginName:  PluginName,
			Description: "Get the current date and time. Use this when users ask about the current time, date, or when something happened.",
			Parameters: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"format_type": {
						Type:        "string",
						Description: "Format type: 'full', 'date', 'time', or 'timestamp'. Defaults to 'full'.",
						Enum:        []any{"full", "date", "time", "timestamp"},
					},
				},
			},
			Invoke: p.getCurrentTime,
		},
		{
			Name:        "calculate_simple_math",
			PluginName:  PluginName,
			Description: "Perform simple mathematical calculations. Use this when users ask for basic math operations like addition, subtraction, multiplication, or division.",
			Parameters: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"operation": {
						Type:        "string",
						Description: "Math operation: 'add', 'subtract', 'multiply', 'divide'.",
						Enum:        []any{"add", "subtract", "multiply", "divide"},
					},
					"first_number": {
						Type:        "number",
						Description: "First number in the calculation.",
					},
					"second_number": {
						Type:        "number",
						Description: "Second number in the calculation.",
					},
				},
				Required: []string{"operation", "first_number", "second_number"},
			},
			Invoke: p.calculateSimpleMath,
		},
		{
			Name:        "get_plugin_stats",
			PluginName:  PluginName,
			Description: "Get statistics about how many times the demo plugin has been used. Use this when users ask about plugin usage or function statistics.",
			Parameters: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
			Invoke: p.getPluginStats,
		},
	}

	for _, c := range caps {
		if err := r.Register(c); err != nil {
			return fmt.Errorf("register %s: %w", c.Name, err)
		}
	}
	return nil
}

func (p *DemoPlugin) getCurrentTime(_ context.Context, args map[string]any) (string, error) {
	formatType, _ := args["format_type"].(string)
	if formatType == "" {
		formatType = "full"
	}

	now := p.touch()

	var result string
	switch formatType {
	case "date":
		result = now.Format("2006-01-02")
	case "time":
		result = now.Format("15:04:05")
	case "timestamp":
		result = strconv.FormatInt(now.Unix(), 10)
	default:
		// Unknown formats fall back to the full layout.
		result = now.Format("2006-01-02 15:04:05")
	}

	return fmt.Sprintf("Current %s: %s", formatType, result), nil
}

func (p *DemoPlugin) calculateSimpleMath(_ context.Context, args map[string]any) (string, error) {
	operation, _ := args["operation"].(string)
	first, ok := toFloat(args["first_number"])
	if !ok {
		return "", fmt.Errorf("first_number must be a number")
	}
	second, ok := toFloat(args["second_number"])
	if !ok {
		return "", fmt.Errorf("second_number must be a number")
	}

	p.touch()

	var result float64
	switch operation {
	case "add":
		result = first + second
	case "subtract":
		result = first - second
	case "multiply":
		result = first * second
	case "divide":
		if second == 0 {
			return "Error: Cannot divide by zero", nil
		}
		result = first / second
	default:
		return fmt.Sprintf("Error: Unknown operation '%s'. Use: add, subtract, multiply, divide", operation), nil
	}

	return fmt.Sprintf("%s %s %s = %s",
		formatNumber(first), operation, formatNumber(second), formatNumber(result)), nil
}

type pluginStats struct {
	TotalCalls         int      `json:"total_calls"`
	LastCalled         *string  `json:"last_called"`
	PluginName         string   `json:"plugin_name"`
	AvailableFunctions []string `json:"available_functions"`
	Status             string   `json:"status"`
}

func (p *DemoPlugin) getPluginStats(_ context.Context, _ map[string]any) (string, error) {
	p.mu.Lock()
	stats := pluginStats{
		TotalCalls:         p.callCount,
		PluginName:         PluginName,
		AvailableFunctions: []string{"get_current_time", "calculate_simple_math", "get_plugin_stats"},
		Status:             "active",
	}
	if !p.lastCalled.IsZero() {
		ts := p.lastCalled.Format(time.RFC3339)
		stats.LastCalled = &ts
	}
	p.mu.Unlock()

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}
	return string(out), nil
}

// touch bumps the usage counters and returns the current time.
func (p *DemoPlugin) touch() time.Time {
	now := p.now()
	p.mu.Lock()
	p.callCount++
	p.lastCalled = now
	p.mu.Unlock()
	return now
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// formatNumber renders a float the way the calculation results are expected
// to read: integral values keep a trailing ".0" ("4.0"), everything else
// uses the shortest exact representation ("2.5").
func formatNumber(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
