// Package api is the HTTP-facing adapter: it translates inbound JSON into
// orchestrator calls and orchestrator events into SSE frames or JSON bodies.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chatgate-dev/chatgate/internal/chat"
	"github.com/chatgate-dev/chatgate/internal/domain"
	"github.com/chatgate-dev/chatgate/internal/server"
	"github.com/chatgate-dev/chatgate/internal/tool"
)

const serviceVersion = "1.0.0"

// requestTimeout bounds every non-streaming request. SSE streams are exempt;
// their lifetime is the client connection.
const requestTimeout = 30 * time.Second

// Handler serves the chat and status endpoints.
type Handler struct {
	chat     *chat.Service
	registry *tool.Registry
	logger   *slog.Logger
}

func NewHandler(chatSvc *chat.Service, registry *tool.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{chat: chatSvc, registry: registry, logger: logger}
}

// Routes mounts all endpoints on the router. The chat endpoint stays outside
// the timeout group because streaming responses may legitimately outlive any
// fixed deadline; its non-streaming branch applies requestTimeout itself.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(server.TimeoutMiddleware(requestTimeout))
		r.Get("/", h.handleRoot)
		r.Get("/health", h.handleHealth)
		r.Get("/api/chat/health", h.handleChatHealth)
		r.Get("/api/engine/status", h.handleEngineStatus)
	})
	r.Post("/api/chat", h.handleChat)
}

// chatRequest is the inbound request body. Omitted settings take defaults;
// stream defaults to true.
type chatRequest struct {
	Messages    []domain.Message `json:"messages"`
	Stream      *bool            `json:"stream"`
	MaxTokens   *int             `json:"max_tokens"`
	Temperature *float64         `json:"temperature"`
}

func (req *chatRequest) settings() domain.ExecutionSettings {
	settings := domain.DefaultSettings()
	if req.MaxTokens != nil {
		settings.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		settings.Temperature = *req.Temperature
	}
	return settings
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if len(req.Messages) == 0 {
		writeDetail(w, http.StatusBadRequest, "Messages array is required")
		return
	}

	settings := req.settings()
	if err := settings.Validate(); err != nil {
		server.AddError(r.Context(), err)
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	requestID := server.GetRequestID(r.Context())

	if req.Stream == nil || *req.Stream {
		h.streamChat(w, r, req.Messages, settings, requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	text, err := h.chat.Complete(ctx, req.Messages, settings, requestID)
	if err != nil {
		server.AddError(r.Context(), err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": text})
}

func (h *Handler) streamChat(w http.ResponseWriter, r *http.Request, conv domain.Conversation, settings domain.ExecutionSettings, requestID string) {
	events, err := h.chat.Stream(r.Context(), conv, settings, requestID)
	if err != nil {
		server.AddError(r.Context(), err)
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		server.AddError(r.Context(), fmt.Errorf("streaming not supported"))
		writeDetail(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	enc := newSSEWriter(w, flusher)
	for event := range events {
		if err := enc.WriteEvent(event); err != nil {
			// Client went away; the orchestrator's cleanup still runs.
			h.logger.Debug("stream write failed", "request_id", requestID, "error", err)
			return
		}
	}
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "ChatGate API is running"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": float64(time.Now().UnixMilli()) / 1000,
		"service":   "chatgate",
		"version":   serviceVersion,
	})
}

func (h *Handler) handleChatHealth(w http.ResponseWriter, r *http.Request) {
	chatAvailable := h.chat != nil
	initialized := chatAvailable && h.registry != nil

	services := 0
	if chatAvailable {
		services++
	}

	status := "healthy"
	if !initialized {
		status = "unhealthy"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"engine_info": map[string]string{
			"engine_initialized":     fmt.Sprintf("%t", initialized),
			"services_count":         fmt.Sprintf("%d", services),
			"chat_service_available": fmt.Sprintf("%t", chatAvailable),
		},
		"timestamp": float64(time.Now().UnixMilli()) / 1000,
	})
}

func (h *Handler) handleEngineStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"initialized":        h.chat != nil,
		"healthy":            true,
		"tools_registered":   h.registry.Count(),
		"backend_services":   1,
		"functions_available": h.registry.FunctionNames(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
