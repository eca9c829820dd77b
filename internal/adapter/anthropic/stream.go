package anthropic

import (
	"encoding/json"

	"github.com/relayforge/relayforge/internal/adapter"
	"github.com/relayforge/relayforge/internal/domain"
)

// ExtractStreamDelta converts one typed SSE event into canonical chunks.
// Tool-call ids and names arrive in content_block_start; the argument JSON
// dribbles in through input_json_delta fragments keyed by block index and the
// assembled call surfaces exactly once.
func ExtractStreamDelta(name string, data []byte, sctx *adapter.StreamContext) ([]domain.Chunk, error) {
	switch name {
	case "message_start":
		var event MessageStartEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, malformed(err)
		}
		// The opening event reports a placeholder output count; take only
		// the prompt side so the final message_delta count wins.
		opening := convertUsage(event.Message.Usage)
		opening.CompletionTokens = 0
		sctx.MergeUsage(opening)
		return nil, nil

	case "content_block_start":
		var event ContentBlockStartEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, malformed(err)
		}
		if event.ContentBlock.Type == "tool_use" {
			buf := sctx.Buffer(event.Index)
			buf.ID = event.ContentBlock.ID
			buf.Name = event.ContentBlock.Name
		}
		if event.ContentBlock.Text != "" {
			sctx.AppendDecoded(event.ContentBlock.Text)
			return []domain.Chunk{{TextDelta: event.ContentBlock.Text}}, nil
		}
		return nil, nil

	case "content_block_delta":
		var event ContentBlockDeltaEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, malformed(err)
		}
		switch event.Delta.Type {
		case "text_delta":
			sctx.AppendDecoded(event.Delta.Text)
			return []domain.Chunk{{TextDelta: event.Delta.Text}}, nil
		case "input_json_delta":
			buf := sctx.Buffer(event.Index)
			buf.AppendArgs(event.Delta.PartialJSON)
			if call, ok := buf.TryComplete(); ok {
				return []domain.Chunk{{ToolCall: call}}, nil
			}
		}
		return nil, nil

	case "content_block_stop":
		var event ContentBlockStopEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, malformed(err)
		}
		if call, ok := sctx.Buffer(event.Index).TryComplete(); ok {
			return []domain.Chunk{{ToolCall: call}}, nil
		}
		return nil, nil

	case "message_delta":
		var event MessageDeltaEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, malformed(err)
		}
		if event.Usage != nil {
			sctx.MergeUsage(convertUsage(*event.Usage))
		}
		var out []domain.Chunk
		if event.Delta.StopReason != "" {
			for _, call := range sctx.FlushPending() {
				out = append(out, domain.Chunk{ToolCall: call})
			}
			out = append(out, domain.Chunk{FinishReason: normalizeStopReason(event.Delta.StopReason)})
		}
		return out, nil

	case "error":
		var event ErrorEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, malformed(err)
		}
		message := "stream error"
		wireType := ""
		if event.Error != nil {
			message = event.Error.Message
			wireType = event.Error.Type
		}
		return nil, classifyWire(0, wireType, message)

	default:
		// message_stop, ping, and future event types carry nothing we need.
		return nil, nil
	}
}

func malformed(err error) error {
	return domain.NewProviderError(domain.CodeUnknown, "malformed stream event").WithCause(err)
}
