package openai

import (
	"encoding/json"

	"github.com/relayforge/relayforge/internal/adapter"
	"github.com/relayforge/relayforge/internal/domain"
)

// ExtractStreamDelta converts one SSE data payload into canonical chunks.
// It is a pure function over the event plus the per-request stream context:
// partial tool-call arguments accumulate in the context keyed by tool-call
// index and surface exactly once, when id, name, and a parseable argument
// string are all present.
func ExtractStreamDelta(data []byte, sctx *adapter.StreamContext) ([]domain.Chunk, error) {
	var chunk ChatChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, domain.NewProviderError(domain.CodeUnknown, "malformed stream chunk").WithCause(err)
	}

	var out []domain.Chunk

	if chunk.Usage != nil {
		sctx.MergeUsage(convertUsage(chunk.Usage))
	}

	for _, choice := range chunk.Choices {
		if choice.Delta.Content != "" {
			sctx.AppendDecoded(choice.Delta.Content)
			out = append(out, domain.Chunk{TextDelta: choice.Delta.Content})
		}

		for _, tc := range choice.Delta.ToolCalls {
			buf := sctx.Buffer(tc.Index)
			if tc.ID != "" {
				buf.ID = tc.ID
			}
			if tc.Function != nil {
				if tc.Function.Name != "" {
					buf.Name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					buf.AppendArgs(tc.Function.Arguments)
				}
			}
			if call, ok := buf.TryComplete(); ok {
				out = append(out, domain.Chunk{ToolCall: call})
			}
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			if *choice.FinishReason == "content_filter" {
				return nil, domain.NewProviderError(domain.CodeContentModeration,
					"completion flagged by content filter").WithCapture(false)
			}
			for _, call := range sctx.FlushPending() {
				out = append(out, domain.Chunk{ToolCall: call})
			}
			out = append(out, domain.Chunk{FinishReason: normalizeFinishReason(*choice.FinishReason)})
		}
	}
	return out, nil
}
