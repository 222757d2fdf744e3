// Package domain holds the shared value types of the chat gateway:
// conversations, execution settings, stream events, and the function-call
// records produced during a streaming session.
package domain

import (
	"fmt"
	"time"
)

// Message roles accepted on the inbound conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged entry in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered, immutable list of messages submitted with one
// completion request.
type Conversation []Message

// LatestUserMessage returns the content of the most recent user message, or
// an empty string if the conversation has none.
func (c Conversation) LatestUserMessage() string {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Role == RoleUser {
			return c[i].Content
		}
	}
	return ""
}

// CountByRole returns the number of messages carrying the given role.
func (c Conversation) CountByRole(role string) int {
	n := 0
	for _, m := range c {
		if m.Role == role {
			n++
		}
	}
	return n
}

// FunctionCallingMode controls whether the backend may invoke registered tools.
type FunctionCallingMode string

const (
	FunctionCallingAuto     FunctionCallingMode = "auto"
	FunctionCallingDisabled FunctionCallingMode = "disabled"
)

// ExecutionSettings are the per-request generation parameters.
type ExecutionSettings struct {
	MaxTokens       int                 `json:"max_tokens"`
	Temperature     float64             `json:"temperature"`
	FunctionCalling FunctionCallingMode `json:"function_calling"`
}

// DefaultSettings returns the settings applied when the caller omits them.
func DefaultSettings() ExecutionSettings {
	return ExecutionSettings{
		MaxTokens:       1000,
		Temperature:     0.7,
		FunctionCalling: FunctionCallingAuto,
	}
}

// Validate checks the settings before use. Invalid values fail fast rather
// than being clamped.
func (s ExecutionSettings) Validate() error {
	if s.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", s.MaxTokens)
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %g", s.Temperature)
	}
	switch s.FunctionCalling {
	case FunctionCallingAuto, FunctionCallingDisabled, "":
	default:
		return fmt.Errorf("unknown function_calling mode %q", s.FunctionCalling)
	}
	return nil
}

// StreamEventKind tags the variants of StreamEvent.
type StreamEventKind string

const (
	// EventContentDelta carries an incremental text fragment.
	EventContentDelta StreamEventKind = "content_delta"
	// EventFunctionCallMetadata carries the call-ledger summary. Emitted at
	// most once per stream, immediately before the terminal event.
	EventFunctionCallMetadata StreamEventKind = "function_call_metadata"
	// EventCompletion is the successful terminal event.
	EventCompletion StreamEventKind = "completion"
	// EventError is the failure terminal event. No sentinel follows it.
	EventError StreamEventKind = "error"
	// EventDone is the end-of-stream sentinel, emitted only after EventCompletion.
	EventDone StreamEventKind = "done"
)

// StreamEvent is one element of the outgoing event stream. Exactly one
// terminal event (EventCompletion or EventError) appears per stream.
type StreamEvent struct {
	Kind StreamEventKind

	// Content for EventContentDelta.
	Content string

	// Summary for EventFunctionCallMetadata.
	Summary *CallSummary

	// FinishReason for EventCompletion ("stop").
	FinishReason string

	// ErrorDetail and RequestID for EventError.
	ErrorDetail string
	RequestID   string
}

// FunctionCallRecord describes one tool invocation made during a session.
// Records are immutable once appended to the ledger.
type FunctionCallRecord struct {
	FunctionName  string         `json:"function_name"`
	PluginName    string         `json:"plugin_name"`
	Parameters    map[string]any `json:"parameters"`
	Result        string         `json:"result"`
	ExecutionTime float64        `json:"execution_time"`
	Timestamp     time.Time      `json:"timestamp"`
	CallOrder     int            `json:"call_order"`
}

// CallSummary is the read-once digest of a session's call ledger.
type CallSummary struct {
	RequestID     string               `json:"request_id"`
	TotalCalls    int                  `json:"total_function_calls"`
	Calls         []FunctionCallRecord `json:"function_calls"`
	FunctionsUsed []string             `json:"functions_used"`
	Timestamp     time.Time            `json:"tracking_timestamp"`
}
