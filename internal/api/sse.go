package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/chatgate-dev/chatgate/internal/domain"
)

// sseWriter encodes stream events as OpenAI-style SSE frames.
type sseWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func newSSEWriter(w io.Writer, flusher http.Flusher) *sseWriter {
	return &sseWriter{w: w, flusher: flusher}
}

// streamChoice is one element of a frame's choices array. FinishReason is a
// pointer so delta frames serialize "finish_reason": null.
type streamChoice struct {
	Delta        any     `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type streamFrame struct {
	Choices []streamChoice `json:"choices"`
}

type contentDelta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type metadataDelta struct {
	FunctionCallsMetadata *domain.CallSummary `json:"function_calls_metadata"`
}

type errorFrame struct {
	Error     string `json:"error"`
	Detail    string `json:"detail"`
	RequestID string `json:"request_id"`
}

// WriteEvent writes one event as a data frame and flushes it.
func (s *sseWriter) WriteEvent(ev domain.StreamEvent) error {
	switch ev.Kind {
	case domain.EventContentDelta:
		return s.writeFrame(streamFrame{Choices: []streamChoice{{
			Delta: contentDelta{Content: ev.Content, Role: domain.RoleAssistant},
		}}})

	case domain.EventFunctionCallMetadata:
		return s.writeFrame(streamFrame{Choices: []streamChoice{{
			Delta: metadataDelta{FunctionCallsMetadata: ev.Summary},
		}}})

	case domain.EventCompletion:
		reason := ev.FinishReason
		return s.writeFrame(streamFrame{Choices: []streamChoice{{
			Delta:        struct{}{},
			FinishReason: &reason,
		}}})

	case domain.EventError:
		return s.writeFrame(errorFrame{
			Error:     "Streaming failed",
			Detail:    ev.ErrorDetail,
			RequestID: ev.RequestID,
		})

	case domain.EventDone:
		return s.writeRaw("data: [DONE]\n\n")

	default:
		return fmt.Errorf("unknown stream event kind %q", ev.Kind)
	}
}

func (s *sseWriter) writeFrame(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return s.writeRaw(fmt.Sprintf("data: %s\n\n", data))
}

func (s *sseWriter) writeRaw(frame string) error {
	if _, err := io.WriteString(s.w, frame); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
