package azopenai

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/chatgate-dev/chatgate/internal/domain"
	"github.com/chatgate-dev/chatgate/internal/tool"
)

// maxToolRounds bounds the automatic function-calling loop. Each round is
// one model request that ended in tool calls.
const maxToolRounds = 5

// Increment is one unit of backend output: a text fragment, possibly empty
// when the underlying chunk carried only role or tool-call data.
type Increment struct {
	Content string
	Err     error
}

// ToolSource supplies tool declarations and executes tool calls. Satisfied
// by *tool.Registry.
type ToolSource interface {
	Definitions() []tool.Definition
	Invoke(ctx context.Context, functionName, argsJSON string) string
}

// Completer generates completions with automatic function calling: when the
// model requests tool calls, they are executed through the ToolSource and
// the results fed back until the model produces a final answer.
type Completer struct {
	client *Client
	tools  ToolSource
	logger *slog.Logger
}

// NewCompleter wires a client and a tool source.
func NewCompleter(client *Client, tools ToolSource, logger *slog.Logger) *Completer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Completer{client: client, tools: tools, logger: logger}
}

func (c *Completer) buildRequest(messages []ChatMessage, settings domain.ExecutionSettings) *ChatCompletionRequest {
	temp := settings.Temperature
	req := &ChatCompletionRequest{
		Messages:    messages,
		MaxTokens:   settings.MaxTokens,
		Temperature: &temp,
	}

	if settings.FunctionCalling != domain.FunctionCallingDisabled && c.tools != nil {
		defs := c.tools.Definitions()
		for _, d := range defs {
			req.Tools = append(req.Tools, Tool{
				Type: "function",
				Function: FunctionTool{
					Name:        d.Name,
					Description: d.Description,
					Parameters:  d.Parameters,
				},
			})
		}
		if len(req.Tools) > 0 {
			req.ToolChoice = "auto"
		}
	}

	return req
}

// StreamCompletion streams a completion for the given history. The returned
// channel is closed when generation finishes; tool-call rounds happen
// transparently between forwarded increments.
func (c *Completer) StreamCompletion(ctx context.Context, history []ChatMessage, settings domain.ExecutionSettings) (<-chan Increment, error) {
	messages := append([]ChatMessage(nil), history...)

	stream, err := c.client.StreamChatCompletion(ctx, c.buildRequest(messages, settings))
	if err != nil {
		return nil, err
	}

	out := make(chan Increment)
	go func() {
		defer close(out)

		for round := 0; ; round++ {
			calls, finishReason, err := c.pumpStream(ctx, stream, out)
			if err != nil {
				c.send(ctx, out, Increment{Err: err})
				return
			}

			if finishReason != "tool_calls" || len(calls) == 0 {
				return
			}
			if round >= maxToolRounds {
				c.send(ctx, out, Increment{Err: fmt.Errorf("tool call limit exceeded after %d rounds", maxToolRounds)})
				return
			}

			messages = c.applyToolCalls(ctx, messages, calls)

			stream, err = c.client.StreamChatCompletion(ctx, c.buildRequest(messages, settings))
			if err != nil {
				c.send(ctx, out, Increment{Err: err})
				return
			}
		}
	}()

	return out, nil
}

// pumpStream forwards content increments from one model round and collects
// any tool calls the model requested.
func (c *Completer) pumpStream(ctx context.Context, stream <-chan StreamResult, out chan<- Increment) ([]ToolCall, string, error) {
	pending := make(map[int]*pendingCall)
	finishReason := ""

	for result := range stream {
		if result.Err != nil {
			return nil, "", result.Err
		}
		if len(result.Chunk.Choices) == 0 {
			continue
		}

		choice := result.Chunk.Choices[0]
		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}

		for _, tc := range choice.Delta.ToolCalls {
			p, ok := pending[tc.Index]
			if !ok {
				p = &pendingCall{}
				pending[tc.Index] = p
			}
			if tc.ID != "" {
				p.id = tc.ID
			}
			if tc.Function.Name != "" {
				p.name = tc.Function.Name
			}
			p.args.WriteString(tc.Function.Arguments)
		}

		if !c.send(ctx, out, Increment{Content: choice.Delta.Content}) {
			return nil, "", ctx.Err()
		}
	}

	return assembleCalls(pending), finishReason, nil
}

// applyToolCalls executes the requested calls and extends the conversation
// with the assistant's request and each tool result.
func (c *Completer) applyToolCalls(ctx context.Context, messages []ChatMessage, calls []ToolCall) []ChatMessage {
	messages = append(messages, ChatMessage{
		Role:      domain.RoleAssistant,
		ToolCalls: calls,
	})

	for _, call := range calls {
		result := c.tools.Invoke(ctx, call.Function.Name, call.Function.Arguments)
		messages = append(messages, ChatMessage{
			Role:       "tool",
			ToolCallID: call.ID,
			Content:    result,
		})
	}

	return messages
}

// Complete generates a blocking completion with the same tool loop. Returns
// the first choice's text, or an empty string when the backend returns no
// choices.
func (c *Completer) Complete(ctx context.Context, history []ChatMessage, settings domain.ExecutionSettings) (string, error) {
	messages := append([]ChatMessage(nil), history...)

	for round := 0; ; round++ {
		resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(messages, settings))
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}

		choice := resp.Choices[0]
		if choice.FinishReason != "tool_calls" || len(choice.Message.ToolCalls) == 0 {
			return choice.Message.Content, nil
		}
		if round >= maxToolRounds {
			return "", fmt.Errorf("tool call limit exceeded after %d rounds", maxToolRounds)
		}

		messages = c.applyToolCalls(ctx, messages, choice.Message.ToolCalls)
	}
}

// send delivers an increment unless the caller has gone away.
func (c *Completer) send(ctx context.Context, out chan<- Increment, inc Increment) bool {
	select {
	case out <- inc:
		return true
	case <-ctx.Done():
		return false
	}
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

func assembleCalls(pending map[int]*pendingCall) []ToolCall {
	if len(pending) == 0 {
		return nil
	}

	indexes := make([]int, 0, len(pending))
	for i := range pending {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	calls := make([]ToolCall, 0, len(pending))
	for _, i := range indexes {
		p := pending[i]
		calls = append(calls, ToolCall{
			ID:   p.id,
			Type: "function",
			Function: FunctionCall{
				Name:      p.name,
				Arguments: p.args.String(),
			},
		})
	}
	return calls
}
