package domain

import "context"

// ProtocolAdapter is the per-vendor translation unit between canonical
// messages and a vendor's wire format. The pipeline depends only on this
// interface; tests substitute fakes.
type ProtocolAdapter interface {
	// Vendor returns the vendor identifier ("openai", "anthropic", ...).
	Vendor() string

	// RequiresFileDownload reports whether the vendor only accepts inline
	// base64 file payloads, obliging the caller to download URL files
	// before the request is built.
	RequiresFileDownload() bool

	// Complete performs one non-streaming completion attempt.
	Complete(ctx context.Context, messages []Message, opts ProviderOptions) (*StructuredOutput, error)

	// Stream performs one streaming attempt. The returned channel is
	// closed by the adapter when the stream ends; a mid-stream failure is
	// delivered as a Chunk with Err set.
	Stream(ctx context.Context, messages []Message, opts ProviderOptions) (<-chan Chunk, error)
}
