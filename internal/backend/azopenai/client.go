package azopenai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultAPIVersion = "2024-05-01-preview"

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAPIVersion overrides the default api-version query parameter.
func WithAPIVersion(version string) ClientOption {
	return func(c *Client) {
		c.apiVersion = version
	}
}

// Client is an HTTP client for the Azure OpenAI Chat Completions API.
type Client struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	httpClient *http.Client
}

// NewClient creates a client bound to one deployment.
func NewClient(endpoint, apiKey, deployment string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiKey:     apiKey,
		deployment: deployment,
		apiVersion: defaultAPIVersion,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) completionsURL() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, c.deployment, c.apiVersion)
}

// CreateChatCompletion sends a blocking chat completion request.
func (c *Client) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp.StatusCode, respBody)
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// StreamResult wraps a chunk or error from streaming.
type StreamResult struct {
	Chunk *ChatCompletionChunk
	Err   error
}

// StreamChatCompletion sends a streaming request and returns a channel of
// chunks. The channel is closed when the upstream stream ends.
func (c *Client) StreamChatCompletion(ctx context.Context, req *ChatCompletionRequest) (<-chan StreamResult, error) {
	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, parseError(resp.StatusCode, respBody)
	}

	out := make(chan StreamResult)
	go c.streamReader(ctx, resp.Body, out)
	return out, nil
}

func (c *Client) streamReader(ctx context.Context, body io.ReadCloser, out chan<- StreamResult) {
	defer close(out)
	defer body.Close()

	// The consumer may abandon the channel on cancellation, so every send
	// must also watch ctx or this goroutine pins the response body forever.
	send := func(res StreamResult) bool {
		select {
		case out <- res:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	// Increase buffer size for potentially large chunks
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return
		}

		var chunk ChatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			send(StreamResult{Err: fmt.Errorf("failed to unmarshal chunk: %w", err)})
			return
		}

		if !send(StreamResult{Chunk: &chunk}) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		send(StreamResult{Err: fmt.Errorf("stream read error: %w", err)})
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("User-Agent", "chatgate/1.0")
}

func parseError(status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrorInfo.Message != "" {
		return &apiErr
	}
	return fmt.Errorf("API error (status %d): %s", status, string(body))
}
