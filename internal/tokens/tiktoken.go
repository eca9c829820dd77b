package tokens

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/relayforge/relayforge/internal/domain"
)

// TiktokenCounter produces accurate counts for OpenAI-family models via
// tiktoken encodings.
type TiktokenCounter struct {
	mu    sync.RWMutex
	cache map[tokenizer.Encoding]tokenizer.Codec
}

// NewTiktokenCounter creates a tiktoken-backed counter.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{cache: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

// SupportsModel returns true for OpenAI-family model names.
func (c *TiktokenCounter) SupportsModel(model string) bool {
	return matchesPrefix(strings.ToLower(model), []string{"gpt-", "o1", "o3", "o4", "text-embedding"})
}

func (c *TiktokenCounter) codec(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(tokenizer.Model(model)); err == nil {
		return codec, nil
	}

	encoding := tokenizer.O200kBase
	switch {
	case strings.HasPrefix(model, "gpt-4") && !strings.HasPrefix(model, "gpt-4o") && !strings.HasPrefix(model, "gpt-4.1"):
		encoding = tokenizer.Cl100kBase
	case strings.HasPrefix(model, "gpt-3.5"), strings.HasPrefix(model, "text-embedding"):
		encoding = tokenizer.Cl100kBase
	}

	c.mu.RLock()
	cached, ok := c.cache[encoding]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache[encoding] = codec
	c.mu.Unlock()
	return codec, nil
}

// Count tokenizes each message and tool definition. The per-message and
// per-tool overheads follow OpenAI's published chat format accounting.
func (c *TiktokenCounter) Count(model string, messages []domain.Message, tools []domain.ToolDefinition) int {
	codec, err := c.codec(strings.ToLower(model))
	if err != nil {
		return NewEstimator().Count(model, messages, tools)
	}

	encode := func(s string) int {
		ids, _, _ := codec.Encode(s)
		return len(ids)
	}

	total := 0
	for _, m := range messages {
		total += 4 // message framing + role
		for _, item := range m.Content {
			switch item.Kind {
			case domain.ContentKindText:
				total += encode(item.Text)
			case domain.ContentKindToolCall:
				total += encode(item.ToolCall.Name) + 3
				if raw, err := json.Marshal(item.ToolCall.Input); err == nil {
					total += encode(string(raw))
				}
			case domain.ContentKindToolResult:
				if raw, err := json.Marshal(item.ToolResult.Value); err == nil {
					total += encode(string(raw))
				}
				total += encode(item.ToolResult.Error) + 2
			}
		}
	}
	for _, t := range tools {
		total += encode(t.Name) + encode(t.Description) + 7
		if t.Parameters != nil {
			if raw, err := json.Marshal(t.Parameters); err == nil {
				total += encode(string(raw))
			}
		}
	}
	total += 3 // assistant priming
	return total
}
