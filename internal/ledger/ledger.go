// Package ledger tracks tool invocations made during one completion session
// so the gateway can emit a function-call summary at the end of the stream.
//
// A ledger is scoped to a single request: the orchestrator creates one per
// stream and carries it through the call tree via context. It is not shared
// across concurrent requests and therefore needs no locking.
package ledger

import (
	"log/slog"
	"time"

	"github.com/chatgate-dev/chatgate/internal/domain"
)

// Ledger records the tool invocations of one streaming session in append
// order. The zero value is inactive; Start activates it.
type Ledger struct {
	requestID string
	active    bool
	calls     []domain.FunctionCallRecord
	logger    *slog.Logger
}

// New returns an inactive ledger.
func New(logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{logger: logger}
}

// Start resets the ledger and activates it for the given request.
func (l *Ledger) Start(requestID string) {
	l.requestID = requestID
	l.calls = nil
	l.active = true
	l.logger.Debug("function call tracking started", slog.String("request_id", requestID))
}

// Record appends a function call. It is a no-op unless the ledger is active.
func (l *Ledger) Record(functionName, pluginName string, parameters map[string]any, result string, executionTime time.Duration) {
	if !l.active {
		return
	}

	l.calls = append(l.calls, domain.FunctionCallRecord{
		FunctionName:  functionName,
		PluginName:    pluginName,
		Parameters:    parameters,
		Result:        result,
		ExecutionTime: executionTime.Seconds(),
		Timestamp:     time.Now(),
		CallOrder:     len(l.calls) + 1,
	})

	l.logger.Info("function call recorded",
		slog.String("request_id", l.requestID),
		slog.String("function", pluginName+"."+functionName),
		slog.Int("call_order", len(l.calls)),
	)
}

// HasEntries reports whether any calls were recorded.
func (l *Ledger) HasEntries() bool {
	return len(l.calls) > 0
}

// Summary returns a digest of all recorded calls. The records slice is the
// ledger's own backing array; callers must treat it as read-only.
func (l *Ledger) Summary() *domain.CallSummary {
	seen := make(map[string]struct{}, len(l.calls))
	used := make([]string, 0, len(l.calls))
	for _, c := range l.calls {
		key := c.PluginName + "." + c.FunctionName
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		used = append(used, key)
	}

	return &domain.CallSummary{
		RequestID:     l.requestID,
		TotalCalls:    len(l.calls),
		Calls:         l.calls,
		FunctionsUsed: used,
		Timestamp:     time.Now(),
	}
}

// Clear empties the ledger and deactivates it.
func (l *Ledger) Clear() {
	l.calls = nil
	l.requestID = ""
	l.active = false
	l.logger.Debug("function call tracking cleared")
}
