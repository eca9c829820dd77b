package adapter

import (
	"encoding/json"
	"strings"

	"github.com/relayforge/relayforge/internal/domain"
)

// ToolCallBuffer accumulates one streamed tool call whose id, name, and
// argument string arrive across multiple chunks keyed by content-block
// index.
type ToolCallBuffer struct {
	ID      string
	Name    string
	args    strings.Builder
	emitted bool
}

// AppendArgs adds a partial argument fragment.
func (b *ToolCallBuffer) AppendArgs(fragment string) {
	b.args.WriteString(fragment)
}

// Args returns the accumulated argument string.
func (b *ToolCallBuffer) Args() string { return b.args.String() }

// TryComplete returns the assembled tool call once id, name, and a
// syntactically valid JSON argument string are all present. It returns ok
// false while the buffer is still partial; a prematurely unparsable argument
// string is not an error, just not done yet. A completed call is emitted at
// most once.
func (b *ToolCallBuffer) TryComplete() (*domain.ToolCallRequest, bool) {
	if b.emitted || b.ID == "" || b.Name == "" {
		return nil, false
	}
	raw := b.args.String()
	if raw == "" {
		// No argument fragment yet; an empty buffer is partial, not a
		// zero-argument call.
		return nil, false
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, false
	}
	b.emitted = true
	return &domain.ToolCallRequest{ID: b.ID, Name: b.Name, Input: input}, true
}

// FlushPending emits any buffer that has id and name but never received an
// argument fragment, treating it as a zero-argument call. Called when the
// vendor signals the tool-call phase is over.
func (c *StreamContext) FlushPending() []*domain.ToolCallRequest {
	var out []*domain.ToolCallRequest
	for _, b := range c.buffers {
		if !b.emitted && b.ID != "" && b.Name != "" && b.args.Len() == 0 {
			b.emitted = true
			out = append(out, &domain.ToolCallRequest{ID: b.ID, Name: b.Name, Input: map[string]any{}})
		}
	}
	return out
}

// StreamContext is the mutable per-request accumulator for one in-flight
// streaming attempt. It is owned exclusively by the request that created it;
// no locking is needed.
type StreamContext struct {
	buffers map[int]*ToolCallBuffer
	decoded strings.Builder
	usage   domain.Usage
}

// NewStreamContext creates an empty streaming context.
func NewStreamContext() *StreamContext {
	return &StreamContext{buffers: make(map[int]*ToolCallBuffer)}
}

// Buffer returns the tool-call buffer for a content-block index, creating it
// on first use.
func (c *StreamContext) Buffer(index int) *ToolCallBuffer {
	b, ok := c.buffers[index]
	if !ok {
		b = &ToolCallBuffer{}
		c.buffers[index] = b
	}
	return b
}

// AppendDecoded accumulates a fragment of the structured-generation payload
// being assembled across the stream.
func (c *StreamContext) AppendDecoded(fragment string) {
	c.decoded.WriteString(fragment)
}

// Decoded parses the accumulated structured payload, if any.
func (c *StreamContext) Decoded() (map[string]any, bool) {
	raw := c.decoded.String()
	if raw == "" {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false
	}
	return out, true
}

// MergeUsage folds vendor-reported usage into the running totals. Fields
// already populated stay put.
func (c *StreamContext) MergeUsage(u domain.Usage) {
	c.usage.Merge(u)
}

// SetUsage replaces the running totals outright. Vendors that report
// cumulative usage on every increment call this so the latest snapshot wins;
// MergeUsage stays fill-only for estimator backfill.
func (c *StreamContext) SetUsage(u domain.Usage) {
	c.usage = u
}

// Usage returns the accumulated usage.
func (c *StreamContext) Usage() domain.Usage { return c.usage }
