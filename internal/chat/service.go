// Package chat orchestrates one completion per request: it builds backend
// history, relays streaming increments as gateway events, collects the
// function-call ledger, and persists request/response records.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatgate-dev/chatgate/internal/backend/azopenai"
	"github.com/chatgate-dev/chatgate/internal/chatlog"
	"github.com/chatgate-dev/chatgate/internal/domain"
	"github.com/chatgate-dev/chatgate/internal/history"
	"github.com/chatgate-dev/chatgate/internal/ledger"
)

// Backend produces completions from backend-native history. Implemented by
// azopenai.Completer.
type Backend interface {
	StreamCompletion(ctx context.Context, messages []azopenai.ChatMessage, settings domain.ExecutionSettings) (<-chan azopenai.Increment, error)
	Complete(ctx context.Context, messages []azopenai.ChatMessage, settings domain.ExecutionSettings) (string, error)
}

// Service is the completion orchestrator. One instance serves all requests;
// per-request state lives in the ledger carried through context.
type Service struct {
	backend  Backend
	recorder *chatlog.Recorder
	logger   *slog.Logger
}

func NewService(backend Backend, recorder *chatlog.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, recorder: recorder, logger: logger}
}

// Stream runs one streaming completion. The returned channel yields content
// deltas, at most one function-call metadata event, and exactly one terminal
// event; a done sentinel follows successful completion only. The channel is
// closed when the stream ends. An empty requestID is replaced with a fresh
// uuid.
func (s *Service) Stream(ctx context.Context, conv domain.Conversation, settings domain.ExecutionSettings, requestID string) (<-chan domain.StreamEvent, error) {
	if len(conv) == 0 {
		return nil, fmt.Errorf("conversation must contain at least one message")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	events := make(chan domain.StreamEvent)
	go s.runStream(ctx, conv, settings, requestID, events)
	return events, nil
}

func (s *Service) runStream(ctx context.Context, conv domain.Conversation, settings domain.ExecutionSettings, requestID string, events chan<- domain.StreamEvent) {
	defer close(events)

	start := time.Now()
	led := ledger.New(s.logger)
	led.Start(requestID)
	ctx = ledger.NewContext(ctx, led)

	var buf strings.Builder
	chunkCount := 0

	// Cleanup runs exactly once on every exit path: normal completion,
	// backend error, or caller cancellation. The response record captures
	// whatever was buffered so far.
	defer func() {
		elapsed := time.Since(start)

		var calls []domain.FunctionCallRecord
		if led.HasEntries() {
			calls = led.Summary().Calls
		}
		count := chunkCount
		s.recorder.LogResponse(ctx, requestID, buf.String(), elapsed, &count, calls, true)
		led.Clear()

		s.logger.Info("stream finished",
			"request_id", requestID,
			"elapsed", elapsed,
			"chunk_count", count,
			"response_length", buf.Len())
	}()

	s.recorder.LogRequest(ctx, requestID, conv, settings, true)

	stream, err := s.backend.StreamCompletion(ctx, history.Build(conv), settings)
	if err != nil {
		s.emitError(ctx, events, requestID, err)
		return
	}

	for inc := range stream {
		if inc.Err != nil {
			s.emitError(ctx, events, requestID, inc.Err)
			return
		}
		chunkCount++
		if inc.Content == "" {
			continue
		}
		buf.WriteString(inc.Content)
		if !s.emit(ctx, events, domain.StreamEvent{
			Kind:    domain.EventContentDelta,
			Content: inc.Content,
		}) {
			return
		}
	}

	if led.HasEntries() {
		if !s.emit(ctx, events, domain.StreamEvent{
			Kind:    domain.EventFunctionCallMetadata,
			Summary: led.Summary(),
		}) {
			return
		}
	}

	if !s.emit(ctx, events, domain.StreamEvent{
		Kind:         domain.EventCompletion,
		FinishReason: "stop",
	}) {
		return
	}
	s.emit(ctx, events, domain.StreamEvent{Kind: domain.EventDone})
}

// Complete runs one blocking completion and returns the response text.
// Backend failures are logged and then propagated, unlike tool failures,
// which surface as text inside a successful response.
func (s *Service) Complete(ctx context.Context, conv domain.Conversation, settings domain.ExecutionSettings, requestID string) (string, error) {
	if len(conv) == 0 {
		return "", fmt.Errorf("conversation must contain at least one message")
	}
	if err := settings.Validate(); err != nil {
		return "", fmt.Errorf("invalid settings: %w", err)
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	start := time.Now()
	led := ledger.New(s.logger)
	led.Start(requestID)
	ctx = ledger.NewContext(ctx, led)
	defer led.Clear()

	s.recorder.LogRequest(ctx, requestID, conv, settings, false)

	text, err := s.backend.Complete(ctx, history.Build(conv), settings)
	if err != nil {
		s.logger.Error("completion failed", "request_id", requestID, "error", err)
		return "", fmt.Errorf("completion failed: %w", err)
	}

	elapsed := time.Since(start)

	var calls []domain.FunctionCallRecord
	if led.HasEntries() {
		calls = led.Summary().Calls
	}
	s.recorder.LogResponse(ctx, requestID, text, elapsed, nil, calls, false)
	s.recorder.LogConversationTurn(ctx, requestID, conv.LatestUserMessage(), text, elapsed, map[string]any{
		"is_streaming":        false,
		"function_call_count": len(calls),
	})

	s.logger.Info("completion finished",
		"request_id", requestID,
		"elapsed", elapsed,
		"response_length", len(text))

	return text, nil
}

func (s *Service) emitError(ctx context.Context, events chan<- domain.StreamEvent, requestID string, err error) {
	s.logger.Error("streaming failed", "request_id", requestID, "error", err)
	s.emit(ctx, events, domain.StreamEvent{
		Kind:        domain.EventError,
		ErrorDetail: err.Error(),
		RequestID:   requestID,
	})
}

func (s *Service) emit(ctx context.Context, events chan<- domain.StreamEvent, ev domain.StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
