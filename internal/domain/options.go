package domain

import "time"

// ProviderOptions carries the per-request knobs that survive translation to
// any vendor. A value is immutable for the duration of one attempt; the
// pipeline clones a copy before mutating it for a retry.
type ProviderOptions struct {
	Model          string
	ForcedProvider string
	Temperature    *float64
	MaxTokens      int
	Tools          []ToolDefinition
	ToolChoice     ToolChoice

	// StructuredOutput forces structured generation on or off. Nil means
	// infer from the model's capability.
	StructuredOutput *bool
	// OutputSchema is the JSON Schema enforced when structured generation
	// is active.
	OutputSchema any

	// FallbackModels, when non-empty, replaces the catalog fallback policy
	// with an explicit ordered candidate list.
	FallbackModels []string
	// DisableFallback turns off model-level fallback entirely.
	DisableFallback bool

	Timeout  time.Duration
	TenantID string
}

// Clone returns a copy safe to mutate for a retry. Slices are shared; the
// pipeline only ever reassigns scalar fields.
func (o ProviderOptions) Clone() ProviderOptions {
	c := o
	if o.StructuredOutput != nil {
		v := *o.StructuredOutput
		c.StructuredOutput = &v
	}
	if o.Temperature != nil {
		t := *o.Temperature
		c.Temperature = &t
	}
	return c
}

// StructuredEnabled resolves the tri-state flag against a model capability.
func (o ProviderOptions) StructuredEnabled(modelSupports bool) bool {
	if o.StructuredOutput != nil {
		return *o.StructuredOutput
	}
	return modelSupports && o.OutputSchema != nil
}
