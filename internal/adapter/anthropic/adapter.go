package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/relayforge/relayforge/internal/adapter"
	"github.com/relayforge/relayforge/internal/domain"
)

// defaultMaxTokens applies when the caller leaves the budget unset; the API
// rejects requests without one.
const defaultMaxTokens = 4096

var toolCallIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Adapter translates canonical requests to the Anthropic messages API.
type Adapter struct {
	client *Client
}

// New creates an Anthropic adapter over the shared HTTP client.
func New(cred domain.Credential, httpClient *http.Client) *Adapter {
	return &Adapter{client: NewClient(cred, httpClient)}
}

// Vendor returns the vendor identifier.
func (a *Adapter) Vendor() string { return "anthropic" }

// RequiresFileDownload is false: image and document sources accept URLs.
func (a *Adapter) RequiresFileDownload() bool { return false }

// Complete performs one non-streaming attempt.
func (a *Adapter) Complete(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (*domain.StructuredOutput, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := BuildRequest(messages, opts)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.CreateMessage(ctx, req)
	if err != nil {
		return nil, tagProvider(err)
	}
	out, err := ParseResponse(resp)
	if err != nil {
		return nil, tagProvider(err)
	}
	out.Provider = a.Vendor()
	return out, nil
}

// Stream performs one streaming attempt.
func (a *Adapter) Stream(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (<-chan domain.Chunk, error) {
	req, err := BuildRequest(messages, opts)
	if err != nil {
		return nil, err
	}
	events, err := a.client.StreamMessage(ctx, req)
	if err != nil {
		return nil, tagProvider(err)
	}

	out := make(chan domain.Chunk)
	go func() {
		defer close(out)
		sctx := adapter.NewStreamContext()
		for event := range events {
			if event.Err != nil {
				out <- domain.Chunk{Err: tagProvider(
					domain.NewProviderError(domain.CodeReadTimeout, "stream interrupted").WithCause(event.Err))}
				return
			}
			chunks, err := ExtractStreamDelta(event.Name, event.Data, sctx)
			if err != nil {
				out <- domain.Chunk{Err: tagProvider(err)}
				return
			}
			for _, ch := range chunks {
				out <- ch
			}
		}
		usage := sctx.Usage()
		if usage.TotalTokens() > 0 {
			out <- domain.Chunk{Usage: &usage}
		}
	}()
	return out, nil
}

// BuildRequest converts canonical messages and options to the wire request.
// System-role messages are lifted out of the turn sequence into dedicated
// system blocks, preserving their relative order.
func BuildRequest(messages []domain.Message, opts domain.ProviderOptions) (*MessagesRequest, error) {
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	req := &MessagesRequest{
		Model:       opts.Model,
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
	}

	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			req.System = append(req.System, SystemBlock{Type: "text", Text: m.Text()})
			continue
		}
		wire, err := buildMessage(m)
		if err != nil {
			return nil, err
		}
		if len(wire.Content) > 0 {
			req.Messages = append(req.Messages, *wire)
		}
	}

	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}
	req.ToolChoice = buildToolChoice(opts.ToolChoice)

	// The messages API has no response-format parameter; structured
	// generation rides on the system prompt plus the caller's schema
	// validation downstream.
	if opts.StructuredEnabled(true) && opts.OutputSchema != nil {
		schema, err := json.Marshal(opts.OutputSchema)
		if err != nil {
			return nil, domain.NewProviderError(domain.CodeBadRequest, "unserializable output schema").WithCause(err)
		}
		req.System = append(req.System, SystemBlock{
			Type: "text",
			Text: "Respond only with a JSON object conforming to this JSON Schema, with no surrounding prose:\n" + string(schema),
		})
	}
	return req, nil
}

func buildMessage(m domain.Message) (*Message, error) {
	wire := &Message{Role: string(m.Role)}
	for _, item := range m.Content {
		switch item.Kind {
		case domain.ContentKindText:
			wire.Content = append(wire.Content, ContentBlock{Type: "text", Text: item.Text})
		case domain.ContentKindFile:
			block, err := buildFileBlock(item.File)
			if err != nil {
				return nil, err
			}
			wire.Content = append(wire.Content, *block)
		case domain.ContentKindToolCall:
			input, err := json.Marshal(item.ToolCall.Input)
			if err != nil {
				return nil, domain.NewProviderError(domain.CodeBadRequest, "unserializable tool input").WithCause(err)
			}
			wire.Content = append(wire.Content, ContentBlock{
				Type:  "tool_use",
				ID:    adapter.SafeToolCallID(item.ToolCall.ID, toolCallIDPattern, 64),
				Name:  item.ToolCall.Name,
				Input: input,
			})
		case domain.ContentKindToolResult:
			value := item.ToolResult.Error
			isError := value != ""
			if !isError {
				raw, err := json.Marshal(item.ToolResult.Value)
				if err != nil {
					return nil, domain.NewProviderError(domain.CodeBadRequest, "unserializable tool result").WithCause(err)
				}
				value = string(raw)
			}
			wire.Content = append(wire.Content, ContentBlock{
				Type:      "tool_result",
				ToolUseID: adapter.SafeToolCallID(item.ToolResult.ID, toolCallIDPattern, 64),
				Content:   value,
				IsError:   isError,
			})
		}
	}
	return wire, nil
}

func buildFileBlock(f *domain.File) (*ContentBlock, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	blockType := ""
	switch {
	case f.IsImage():
		blockType = "image"
	case f.IsPDF():
		blockType = "document"
	default:
		return nil, domain.NewProviderError(domain.CodeInvalidFile, "unsupported file content type "+f.ContentType)
	}
	source := &Source{MediaType: f.ContentType}
	if f.Data != "" {
		source.Type = "base64"
		source.Data = f.Data
	} else {
		source.Type = "url"
		source.URL = f.URL
		source.MediaType = ""
	}
	return &ContentBlock{Type: blockType, Source: source}, nil
}

func buildToolChoice(tc domain.ToolChoice) *ToolChoice {
	switch tc.Mode {
	case domain.ToolChoiceNone:
		return &ToolChoice{Type: "none"}
	case domain.ToolChoiceRequired:
		return &ToolChoice{Type: "any"}
	case domain.ToolChoiceNamed:
		return &ToolChoice{Type: "tool", Name: tc.Name}
	default:
		return nil
	}
}

// ParseResponse converts a wire response to canonical structured output.
func ParseResponse(resp *MessagesResponse) (*domain.StructuredOutput, error) {
	out := &domain.StructuredOutput{
		Model:        resp.Model,
		FinishReason: normalizeStopReason(resp.StopReason),
		Usage:        convertUsage(resp.Usage),
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Text += block.Text
		case "tool_use":
			var input map[string]any
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					return nil, domain.NewProviderError(domain.CodeFailedGeneration,
						"tool use input is not valid JSON").WithCause(err)
				}
			}
			out.ToolCalls = append(out.ToolCalls, domain.ToolCallRequest{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}

	if out.Text != "" {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(out.Text), &decoded); err == nil {
			out.Decoded = decoded
		}
	}
	return out, nil
}

func convertUsage(u Usage) domain.Usage {
	return domain.Usage{
		PromptTokens:     u.InputTokens + u.CacheReadInputTokens + u.CacheCreationInputTokens,
		CompletionTokens: u.OutputTokens,
		CachedTokens:     u.CacheReadInputTokens,
	}
}

func normalizeStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "tool_use":
		return "tool_call"
	case "max_tokens":
		return "max_tokens"
	default:
		return reason
	}
}

func tagProvider(err error) error {
	if perr, ok := err.(*domain.ProviderError); ok && perr.Provider == "" {
		return perr.WithProvider("anthropic")
	}
	return err
}
