// Package tokens estimates token usage with tiktoken encodings. Counts are
// attached to persisted conversation records; they are estimates, not billing
// figures.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/chatgate-dev/chatgate/internal/domain"
)

// Counter resolves tokenizer codecs per model and caches them by encoding.
type Counter struct {
	cacheMu    sync.RWMutex
	codecCache map[tokenizer.Encoding]tokenizer.Codec
}

func NewCounter() *Counter {
	return &Counter{codecCache: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

func (c *Counter) getCodec(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(tokenizer.Model(strings.ToLower(model))); err == nil {
		return codec, nil
	}

	encoding := modelToEncoding(model)

	c.cacheMu.RLock()
	if cached, ok := c.codecCache[encoding]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.cacheMu.Lock()
	c.codecCache[encoding] = codec
	c.cacheMu.Unlock()

	return codec, nil
}

// modelToEncoding maps deployment/model names to encodings.
//
// - O200kBase: gpt-4o, gpt-4.1, gpt-5, o-series and newer
// - Cl100kBase: gpt-4, gpt-3.5-turbo
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "gpt-4.1"), strings.HasPrefix(model, "gpt-41"),
		strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}

// CountText counts tokens in a plain text string.
func (c *Counter) CountText(model, text string) (int, error) {
	codec, err := c.getCodec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// CountConversation estimates prompt tokens for a chat conversation,
// including the per-message and assistant-priming overhead OpenAI documents
// for chat models.
func (c *Counter) CountConversation(model string, conv domain.Conversation) (int, error) {
	codec, err := c.getCodec(model)
	if err != nil {
		return 0, err
	}

	const (
		tokensPerMessage = 3
		tokensPerRole    = 1
		assistantPriming = 3
	)

	total := assistantPriming
	for _, m := range conv {
		total += tokensPerMessage + tokensPerRole
		ids, _, err := codec.Encode(m.Content)
		if err != nil {
			return 0, err
		}
		total += len(ids)
	}
	return total, nil
}
