package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/relayforge/relayforge/internal/adapter"
	"github.com/relayforge/relayforge/internal/domain"
)

// toolCallIDPattern is the identifier charset OpenAI accepts for tool-call
// ids. Foreign ids (e.g. replayed from another vendor) are rehashed.
var toolCallIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Adapter translates canonical requests to the OpenAI chat-completions API
// and its compatible dialects.
type Adapter struct {
	client *Client
	vendor string

	idPattern       *regexp.Regexp
	idMaxLen        int
	assistantPrefix bool
}

// Option customizes a compatible-dialect adapter.
type Option func(*Adapter)

// WithToolCallIDFormat overrides the tool-call id charset; ids that do not
// match are rehashed to maxLen hex characters.
func WithToolCallIDFormat(pattern *regexp.Regexp, maxLen int) Option {
	return func(a *Adapter) {
		a.idPattern = pattern
		a.idMaxLen = maxLen
	}
}

// WithAssistantPrefix marks a trailing assistant message as a completion
// prefix, for dialects that require the flag instead of rejecting the turn.
func WithAssistantPrefix() Option {
	return func(a *Adapter) { a.assistantPrefix = true }
}

// New creates an OpenAI adapter over the shared HTTP client.
func New(cred domain.Credential, httpClient *http.Client) *Adapter {
	return NewCompatible("openai", cred, httpClient, ClassifyError)
}

// NewCompatible backs the Groq and Mistral adapters, which reuse this wire
// format with their own endpoint and classifier.
func NewCompatible(vendor string, cred domain.Credential, httpClient *http.Client, classify func(int, []byte) *domain.ProviderError, opts ...Option) *Adapter {
	a := &Adapter{
		client:    NewClient(cred, httpClient, classify),
		vendor:    vendor,
		idPattern: toolCallIDPattern,
		idMaxLen:  64,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Vendor returns the vendor identifier.
func (a *Adapter) Vendor() string { return a.vendor }

// RequiresFileDownload is false: the API accepts image URLs directly.
func (a *Adapter) RequiresFileDownload() bool { return false }

// Complete performs one non-streaming attempt.
func (a *Adapter) Complete(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (*domain.StructuredOutput, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := a.buildRequest(messages, opts)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, tagProvider(err, a.vendor)
	}
	out, err := ParseResponse(resp)
	if err != nil {
		return nil, tagProvider(err, a.vendor)
	}
	out.Provider = a.vendor
	return out, nil
}

// Stream performs one streaming attempt.
func (a *Adapter) Stream(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (<-chan domain.Chunk, error) {
	req, err := a.buildRequest(messages, opts)
	if err != nil {
		return nil, err
	}
	events, err := a.client.StreamChatCompletion(ctx, req)
	if err != nil {
		return nil, tagProvider(err, a.vendor)
	}

	out := make(chan domain.Chunk)
	go func() {
		defer close(out)
		sctx := adapter.NewStreamContext()
		for event := range events {
			if event.Err != nil {
				out <- domain.Chunk{Err: tagProvider(
					domain.NewProviderError(domain.CodeReadTimeout, "stream interrupted").WithCause(event.Err), a.vendor)}
				return
			}
			chunks, err := ExtractStreamDelta(event.Data, sctx)
			if err != nil {
				out <- domain.Chunk{Err: tagProvider(err, a.vendor)}
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

func (a *Adapter) buildRequest(messages []domain.Message, opts domain.ProviderOptions) (*ChatRequest, error) {
	req, err := buildRequest(messages, opts, a.idPattern, a.idMaxLen)
	if err != nil {
		return nil, err
	}
	if a.assistantPrefix && len(req.Messages) > 0 {
		if last := &req.Messages[len(req.Messages)-1]; last.Role == "assistant" {
			last.Prefix = true
		}
	}
	return req, nil
}

// BuildRequest converts canonical messages and options to the wire request
// using the standard OpenAI tool-call id format.
func BuildRequest(messages []domain.Message, opts domain.ProviderOptions) (*ChatRequest, error) {
	return buildRequest(messages, opts, toolCallIDPattern, 64)
}

func buildRequest(messages []domain.Message, opts domain.ProviderOptions, idPattern *regexp.Regexp, idMaxLen int) (*ChatRequest, error) {
	req := &ChatRequest{
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	for _, m := range messages {
		wire, err := buildMessages(m, idPattern, idMaxLen)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, wire...)
	}

	for _, t := range opts.Tools {
		req.Tools = append(req.Tools, Tool{
			Type: "function",
			Function: FunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	req.ToolChoice = buildToolChoice(opts.ToolChoice)

	if opts.StructuredEnabled(true) && opts.OutputSchema != nil {
		req.ResponseFormat = &ResponseFormat{
			Type: "json_schema",
			JSONSchema: &JSONSchema{
				Name:   "response",
				Schema: opts.OutputSchema,
				Strict: true,
			},
		}
	}
	return req, nil
}

// buildMessages converts one canonical message. A message holding tool
// results fans out into one wire message per result, as the API requires.
func buildMessages(m domain.Message, idPattern *regexp.Regexp, idMaxLen int) ([]ChatMessage, error) {
	var out []ChatMessage
	wire := ChatMessage{Role: string(m.Role)}
	var parts []ContentPart
	var simpleText string
	textOnly := true

	flush := func() {
		if textOnly && simpleText != "" {
			wire.Content = Content{Text: simpleText}
		} else if len(parts) > 0 {
			wire.Content = Content{Parts: parts}
		}
		if wire.Content.Text != "" || len(wire.Content.Parts) > 0 || len(wire.ToolCalls) > 0 {
			out = append(out, wire)
		}
		wire = ChatMessage{Role: string(m.Role)}
		parts = nil
		simpleText = ""
		textOnly = true
	}

	for _, item := range m.Content {
		switch item.Kind {
		case domain.ContentKindText:
			simpleText += item.Text
			parts = append(parts, ContentPart{Type: "text", Text: item.Text})
		case domain.ContentKindFile:
			textOnly = false
			part, err := buildFilePart(item.File)
			if err != nil {
				return nil, err
			}
			parts = append(parts, *part)
		case domain.ContentKindToolCall:
			args, err := json.Marshal(item.ToolCall.Input)
			if err != nil {
				return nil, domain.NewProviderError(domain.CodeBadRequest, "unserializable tool input").WithCause(err)
			}
			wire.ToolCalls = append(wire.ToolCalls, ToolCall{
				ID:   adapter.SafeToolCallID(item.ToolCall.ID, idPattern, idMaxLen),
				Type: "function",
				Function: FunctionCall{
					Name:      item.ToolCall.Name,
					Arguments: string(args),
				},
			})
		case domain.ContentKindToolResult:
			// Tool results must be standalone messages with role "tool".
			flush()
			value := item.ToolResult.Error
			if value == "" {
				raw, err := json.Marshal(item.ToolResult.Value)
				if err != nil {
					return nil, domain.NewProviderError(domain.CodeBadRequest, "unserializable tool result").WithCause(err)
				}
				value = string(raw)
			}
			out = append(out, ChatMessage{
				Role:       "tool",
				ToolCallID: adapter.SafeToolCallID(item.ToolResult.ID, idPattern, idMaxLen),
				Content:    Content{Text: value},
			})
		}
	}
	flush()
	return out, nil
}

func buildFilePart(f *domain.File) (*ContentPart, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	switch {
	case f.IsImage():
		url := f.URL
		if url == "" {
			url = "data:" + f.ContentType + ";base64," + f.Data
		}
		return &ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url}}, nil
	case f.IsAudio():
		if f.Data == "" {
			return nil, domain.NewProviderError(domain.CodeInvalidFile, "audio input requires inline data")
		}
		format := strings.TrimPrefix(f.ContentType, "audio/")
		return &ContentPart{Type: "input_audio", InputAudio: &InputAudio{Data: f.Data, Format: format}}, nil
	case f.IsPDF():
		if f.Data == "" {
			return nil, domain.NewProviderError(domain.CodeInvalidFile, "document input requires inline data")
		}
		return &ContentPart{Type: "file", File: &FilePart{
			Filename: "document.pdf",
			FileData: "data:" + f.ContentType + ";base64," + f.Data,
		}}, nil
	default:
		return nil, domain.NewProviderError(domain.CodeInvalidFile, "unsupported file content type "+f.ContentType)
	}
}

func buildToolChoice(tc domain.ToolChoice) any {
	switch tc.Mode {
	case domain.ToolChoiceNone:
		return "none"
	case domain.ToolChoiceRequired:
		return "required"
	case domain.ToolChoiceNamed:
		choice := NamedToolChoice{Type: "function"}
		choice.Function.Name = tc.Name
		return choice
	default:
		return nil // auto is the API default
	}
}

// ParseResponse converts a wire response to canonical structured output.
func ParseResponse(resp *ChatResponse) (*domain.StructuredOutput, error) {
	if len(resp.Choices) == 0 {
		return nil, domain.NewProviderError(domain.CodeUnknown, "response contained no choices")
	}
	choice := resp.Choices[0]

	out := &domain.StructuredOutput{
		Model:        resp.Model,
		Text:         choice.Message.Content.Text,
		FinishReason: normalizeFinishReason(choice.FinishReason),
	}
	for _, part := range choice.Message.Content.Parts {
		if part.Type == "text" {
			out.Text += part.Text
		}
	}

	for _, tc := range choice.Message.ToolCalls {
		var input map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				return nil, domain.NewProviderError(domain.CodeFailedGeneration,
					"tool call arguments are not valid JSON").WithCause(err)
			}
		}
		out.ToolCalls = append(out.ToolCalls, domain.ToolCallRequest{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}

	if out.Text != "" {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(out.Text), &decoded); err == nil {
			out.Decoded = decoded
		}
	}

	if resp.Usage != nil {
		out.Usage = convertUsage(resp.Usage)
	}
	if choice.FinishReason == "content_filter" {
		return nil, domain.NewProviderError(domain.CodeContentModeration, "completion flagged by content filter").WithCapture(false)
	}
	return out, nil
}

func convertUsage(u *Usage) domain.Usage {
	usage := domain.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
	}
	if u.PromptTokensDetails != nil {
		usage.CachedTokens = u.PromptTokensDetails.CachedTokens
	}
	return usage
}

func normalizeFinishReason(reason string) string {
	switch reason {
	case "tool_calls", "function_call":
		return "tool_call"
	case "length":
		return "max_tokens"
	default:
		return reason
	}
}

func tagProvider(err error, vendor string) error {
	if perr, ok := err.(*domain.ProviderError); ok && perr.Provider == "" {
		return perr.WithProvider(vendor)
	}
	return err
}
