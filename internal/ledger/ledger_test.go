package ledger

import (
	"context"
	"testing"
	"time"
)

func TestRecordBeforeStartIsNoop(t *testing.T) {
	l := New(nil)
	l.Record("get_current_time", "demo", nil, "now", time.Millisecond)

	if l.HasEntries() {
		t.Error("expected no entries before Start")
	}
}

func TestCallOrderIsContiguousFromOne(t *testing.T) {
	l := New(nil)
	l.Start("req-1")

	l.Record("a", "demo", nil, "r1", time.Millisecond)
	l.Record("b", "demo", nil, "r2", time.Millisecond)
	l.Record("a", "demo", nil, "r3", time.Millisecond)

	summary := l.Summary()
	if summary.TotalCalls != 3 {
		t.Fatalf("TotalCalls = %d, want 3", summary.TotalCalls)
	}
	for i, call := range summary.Calls {
		if call.CallOrder != i+1 {
			t.Errorf("Calls[%d].CallOrder = %d, want %d", i, call.CallOrder, i+1)
		}
	}
}

func TestCallOrderResetsOnStart(t *testing.T) {
	l := New(nil)
	l.Start("req-1")
	l.Record("a", "demo", nil, "r", time.Millisecond)
	l.Record("b", "demo", nil, "r", time.Millisecond)

	l.Start("req-2")
	l.Record("c", "demo", nil, "r", time.Millisecond)

	summary := l.Summary()
	if summary.RequestID != "req-2" {
		t.Errorf("RequestID = %q, want req-2", summary.RequestID)
	}
	if summary.TotalCalls != 1 {
		t.Fatalf("TotalCalls = %d, want 1", summary.TotalCalls)
	}
	if summary.Calls[0].CallOrder != 1 {
		t.Errorf("CallOrder after restart = %d, want 1", summary.Calls[0].CallOrder)
	}
}

func TestFunctionsUsedIsDistinct(t *testing.T) {
	l := New(nil)
	l.Start("req-1")
	l.Record("get_current_time", "demo", nil, "r", 0)
	l.Record("get_current_time", "demo", nil, "r", 0)
	l.Record("calculate_simple_math", "demo", nil, "r", 0)

	used := l.Summary().FunctionsUsed
	if len(used) != 2 {
		t.Fatalf("FunctionsUsed = %v, want 2 distinct entries", used)
	}
	if used[0] != "demo.get_current_time" || used[1] != "demo.calculate_simple_math" {
		t.Errorf("FunctionsUsed = %v, want plugin.function names in first-seen order", used)
	}
}

func TestClearDeactivatesAndEmpties(t *testing.T) {
	l := New(nil)
	l.Start("req-1")
	l.Record("a", "demo", nil, "r", 0)
	l.Clear()

	if l.HasEntries() {
		t.Error("HasEntries() = true after Clear")
	}
	if got := l.Summary().TotalCalls; got != 0 {
		t.Errorf("Summary().TotalCalls after Clear = %d, want 0", got)
	}

	// Recording after Clear must be a no-op until Start is called again.
	l.Record("b", "demo", nil, "r", 0)
	if l.HasEntries() {
		t.Error("Record after Clear should be a no-op")
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := New(nil)
	ctx := NewContext(context.Background(), l)

	if got := FromContext(ctx); got != l {
		t.Error("FromContext did not return the attached ledger")
	}
	if got := FromContext(context.Background()); got != nil {
		t.Error("FromContext on bare context should return nil")
	}
}

func TestExecutionTimeRecordedInSeconds(t *testing.T) {
	l := New(nil)
	l.Start("req-1")
	l.Record("a", "demo", map[string]any{"x": 1}, "r", 250*time.Millisecond)

	call := l.Summary().Calls[0]
	if call.ExecutionTime != 0.25 {
		t.Errorf("ExecutionTime = %v, want 0.25", call.ExecutionTime)
	}
	if call.Parameters["x"] != 1 {
		t.Errorf("Parameters not preserved: %v", call.Parameters)
	}
}
