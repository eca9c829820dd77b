package google

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/relayforge/relayforge/internal/adapter"
	"github.com/relayforge/relayforge/internal/domain"
)

// ExtractStreamDelta converts one streamed increment into canonical chunks.
// Function calls arrive whole in a single increment, so no partial-argument
// buffering is needed here; the context only tracks the latest usage
// snapshot.
func ExtractStreamDelta(data []byte, sctx *adapter.StreamContext) ([]domain.Chunk, error) {
	var resp GenerateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, domain.NewProviderError(domain.CodeUnknown, "malformed stream increment").WithCause(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, domain.NewProviderError(domain.CodeContentModeration,
			"prompt blocked: "+resp.PromptFeedback.BlockReason).WithCapture(false)
	}
	// usageMetadata is cumulative across increments, so each report replaces
	// the previous one rather than merging into it.
	if resp.UsageMetadata != nil {
		sctx.SetUsage(convertUsage(resp.UsageMetadata))
	}

	var out []domain.Chunk
	for _, candidate := range resp.Candidates {
		if err := checkFinishReason(candidate.FinishReason); err != nil {
			return nil, err
		}
		sawCall := false
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				switch {
				case part.Text != "":
					sctx.AppendDecoded(part.Text)
					out = append(out, domain.Chunk{TextDelta: part.Text})
				case part.FunctionCall != nil:
					sawCall = true
					out = append(out, domain.Chunk{ToolCall: &domain.ToolCallRequest{
						ID:    uuid.NewString(),
						Name:  part.FunctionCall.Name,
						Input: part.FunctionCall.Args,
					}})
				}
			}
		}
		if candidate.FinishReason != "" {
			reason := normalizeFinishReason(candidate.FinishReason)
			if sawCall {
				reason = "tool_call"
			}
			out = append(out, domain.Chunk{FinishReason: reason})
		}
	}
	return out, nil
}
