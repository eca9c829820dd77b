package domain

// Usage accumulates token and media accounting for one completion. Fields
// are additive and only ever move from zero ("unknown") to a concrete
// number; a later merge never downgrades a populated field.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CachedTokens     int     `json:"cached_tokens,omitempty"`
	Images           int     `json:"images,omitempty"`
	AudioSeconds     int     `json:"audio_seconds,omitempty"`
	Cost             float64 `json:"cost,omitempty"`

	// Estimated marks counts produced client-side rather than reported by
	// the vendor.
	Estimated bool `json:"estimated,omitempty"`
}

// Merge fills unknown (zero) fields of u from other. Vendor-reported values
// already present are never overwritten, so an estimate merged after the
// fact cannot clobber authoritative counts.
func (u *Usage) Merge(other Usage) {
	if u.PromptTokens == 0 {
		u.PromptTokens = other.PromptTokens
	}
	if u.CompletionTokens == 0 {
		u.CompletionTokens = other.CompletionTokens
	}
	if u.CachedTokens == 0 {
		u.CachedTokens = other.CachedTokens
	}
	if u.Images == 0 {
		u.Images = other.Images
	}
	if u.AudioSeconds == 0 {
		u.AudioSeconds = other.AudioSeconds
	}
	if u.Cost == 0 {
		u.Cost = other.Cost
	}
	if other.Estimated && (u.PromptTokens == 0 || u.CompletionTokens == 0) {
		u.Estimated = true
	}
}

// TotalTokens returns the prompt plus completion count.
func (u *Usage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}

// StructuredOutput is the canonical decoded result of one completion attempt.
type StructuredOutput struct {
	Text         string           `json:"text,omitempty"`
	Decoded      map[string]any   `json:"decoded,omitempty"` // structured-generation payload
	ToolCalls    []ToolCallRequest `json:"tool_calls,omitempty"`
	Files        []*File          `json:"files,omitempty"`
	FinishReason string           `json:"finish_reason,omitempty"`
	Model        string           `json:"model,omitempty"`
	Provider     string           `json:"provider,omitempty"`
	Usage        Usage            `json:"usage"`
}

// Chunk is one canonical streaming increment. At most one payload field is
// set. Tool calls only appear here once fully assembled; partial argument
// buffers are never surfaced.
type Chunk struct {
	TextDelta    string
	ToolCall     *ToolCallRequest
	File         *File
	Usage        *Usage
	FinishReason string
	Err          error
}
