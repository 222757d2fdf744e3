// Package chatlog persists chat request/response records to an append-only
// document sink. All writes are best effort: a sink failure is logged and
// never surfaced to the request path.
package chatlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/chatgate-dev/chatgate/internal/domain"
	"github.com/chatgate-dev/chatgate/internal/tokens"
)

// Sink stores JSON documents keyed by request id. Documents for the same
// request share a request id so request and response records correlate.
type Sink interface {
	PutDocument(ctx context.Context, doc Document) error
}

// Document is one persisted record.
type Document struct {
	ID        string
	Type      string
	RequestID string
	Body      []byte
}

// RequestSettings is the settings block embedded in request records.
type RequestSettings struct {
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	IsStreaming bool    `json:"is_streaming"`
}

// RequestRecord captures an inbound chat request.
type RequestRecord struct {
	ID                    string              `json:"id"`
	Type                  string              `json:"type"`
	RequestID             string              `json:"request_id"`
	Timestamp             string              `json:"timestamp"`
	UserQuestion          string              `json:"user_question"`
	FullConversation      domain.Conversation `json:"full_conversation"`
	ConversationLength    int                 `json:"conversation_length"`
	UserMessageCount      int                 `json:"user_message_count"`
	AssistantMessageCount int                 `json:"assistant_message_count"`
	RequestSettings       RequestSettings     `json:"request_settings"`
	PromptTokenEstimate   int                 `json:"prompt_token_estimate,omitempty"`
	SessionID             string              `json:"sessionId"`
}

// PerformanceMetrics is the timing block embedded in response records.
type PerformanceMetrics struct {
	ChunkCount            *int    `json:"chunk_count"`
	IsStreaming           bool    `json:"is_streaming"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// ResponseRecord captures the assembled response for a request.
type ResponseRecord struct {
	ID                      string                      `json:"id"`
	Type                    string                      `json:"type"`
	RequestID               string                      `json:"request_id"`
	Timestamp               string                      `json:"timestamp"`
	ResponseContent         string                      `json:"response_content"`
	ResponseLength          int                         `json:"response_length"`
	ProcessingTimeSeconds   float64                     `json:"processing_time_seconds"`
	PerformanceMetrics      PerformanceMetrics          `json:"performance_metrics"`
	FunctionCalls           []domain.FunctionCallRecord `json:"function_calls"`
	FunctionCallCount       int                         `json:"function_call_count"`
	CompletionTokenEstimate int                         `json:"completion_token_estimate,omitempty"`
	SessionID               string                      `json:"sessionId"`
}

// ConversationTurnRecord captures a full question/answer pair in one record.
type ConversationTurnRecord struct {
	ID                    string         `json:"id"`
	Type                  string         `json:"type"`
	RequestID             string         `json:"request_id"`
	Timestamp             string         `json:"timestamp"`
	UserQuestion          string         `json:"user_question"`
	AIResponse            string         `json:"ai_response"`
	QuestionLength        int            `json:"question_length"`
	ResponseLength        int            `json:"response_length"`
	ProcessingTimeSeconds float64        `json:"processing_time_seconds"`
	Metadata              map[string]any `json:"metadata"`
	SessionID             string         `json:"sessionId"`
}

const defaultWriteTimeout = 5 * time.Second

// Recorder writes chat records to a sink. A nil sink disables recording; all
// operations become no-ops.
type Recorder struct {
	sink    Sink
	counter *tokens.Counter
	model   string
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithTokenEstimates attaches prompt/completion token estimates to records,
// computed against the given model's encoding.
func WithTokenEstimates(counter *tokens.Counter, model string) RecorderOption {
	return func(r *Recorder) {
		r.counter = counter
		r.model = model
	}
}

// WithWriteTimeout overrides the per-write deadline.
func WithWriteTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.timeout = d }
}

func NewRecorder(sink Sink, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		sink:    sink,
		logger:  logger,
		timeout: defaultWriteTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sink == nil {
		r.logger.Warn("chat recorder initialized without a sink, persistence disabled")
	}
	return r
}

// LogRequest persists the inbound request record. Best effort.
func (r *Recorder) LogRequest(ctx context.Context, requestID string, conv domain.Conversation, settings domain.ExecutionSettings, streaming bool) {
	if r.sink == nil {
		return
	}

	rec := RequestRecord{
		ID:                    "chat_request_" + requestID,
		Type:                  "chat_request",
		RequestID:             requestID,
		Timestamp:             r.timestamp(),
		UserQuestion:          conv.LatestUserMessage(),
		FullConversation:      conv,
		ConversationLength:    len(conv),
		UserMessageCount:      conv.CountByRole(domain.RoleUser),
		AssistantMessageCount: conv.CountByRole(domain.RoleAssistant),
		RequestSettings: RequestSettings{
			MaxTokens:   settings.MaxTokens,
			Temperature: settings.Temperature,
			IsStreaming: streaming,
		},
		SessionID: requestID,
	}

	if r.counter != nil {
		if n, err := r.counter.CountConversation(r.model, conv); err == nil {
			rec.PromptTokenEstimate = n
		}
	}

	r.put(ctx, rec.ID, rec.Type, requestID, rec)
	r.logger.Info("chat request logged",
		"request_id", requestID,
		"conversation_length", len(conv),
		"is_streaming", streaming)
}

// LogResponse persists the assembled response record. chunkCount applies to
// streaming responses only; pass nil for the blocking path. Best effort.
func (r *Recorder) LogResponse(ctx context.Context, requestID, responseText string, elapsed time.Duration, chunkCount *int, calls []domain.FunctionCallRecord, streaming bool) {
	if r.sink == nil {
		return
	}

	seconds := round3(elapsed.Seconds())
	if calls == nil {
		calls = []domain.FunctionCallRecord{}
	}

	rec := ResponseRecord{
		ID:                    "chat_response_" + requestID,
		Type:                  "chat_response",
		RequestID:             requestID,
		Timestamp:             r.timestamp(),
		ResponseContent:       responseText,
		ResponseLength:        len(responseText),
		ProcessingTimeSeconds: seconds,
		PerformanceMetrics: PerformanceMetrics{
			ChunkCount:            chunkCount,
			IsStreaming:           streaming,
			ProcessingTimeSeconds: seconds,
		},
		FunctionCalls:     calls,
		FunctionCallCount: len(calls),
		SessionID:         requestID,
	}

	if r.counter != nil {
		if n, err := r.counter.CountText(r.model, responseText); err == nil {
			rec.CompletionTokenEstimate = n
		}
	}

	r.put(ctx, rec.ID, rec.Type, requestID, rec)
	r.logger.Info("chat response logged",
		"request_id", requestID,
		"response_length", len(responseText),
		"processing_time_seconds", seconds,
		"function_call_count", len(calls))
}

// LogConversationTurn persists a combined question/answer record. Best effort.
func (r *Recorder) LogConversationTurn(ctx context.Context, requestID, question, answer string, elapsed time.Duration, metadata map[string]any) {
	if r.sink == nil {
		return
	}

	if metadata == nil {
		metadata = map[string]any{}
	}

	rec := ConversationTurnRecord{
		ID:                    "conversation_" + requestID,
		Type:                  "conversation_turn",
		RequestID:             requestID,
		Timestamp:             r.timestamp(),
		UserQuestion:          question,
		AIResponse:            answer,
		QuestionLength:        len(question),
		ResponseLength:        len(answer),
		ProcessingTimeSeconds: round3(elapsed.Seconds()),
		Metadata:              metadata,
		SessionID:             requestID,
	}

	r.put(ctx, rec.ID, rec.Type, requestID, rec)
}

// put serializes and writes one record on a context detached from request
// cancellation, so a client disconnect never cancels persistence.
func (r *Recorder) put(ctx context.Context, id, docType, requestID string, record any) {
	body, err := json.Marshal(record)
	if err != nil {
		r.logger.Error("failed to encode chat record", "request_id", requestID, "type", docType, "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	doc := Document{ID: id, Type: docType, RequestID: requestID, Body: body}
	if err := r.sink.PutDocument(writeCtx, doc); err != nil {
		r.logger.Error("failed to persist chat record",
			"request_id", requestID,
			"type", docType,
			"error", fmt.Errorf("sink write: %w", err))
	}
}

func (r *Recorder) timestamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

func round3(s float64) float64 {
	return math.Round(s*1000) / 1000
}
