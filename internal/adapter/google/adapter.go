package google

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/relayforge/relayforge/internal/adapter"
	"github.com/relayforge/relayforge/internal/domain"
	"github.com/relayforge/relayforge/internal/tokens"
)

// Adapter translates canonical requests to the Gemini generateContent API.
type Adapter struct {
	client  *Client
	counter *tokens.Registry
}

// New creates a Gemini adapter over the shared HTTP client. The token
// registry backfills usage when the vendor omits usageMetadata; it may be
// nil to skip estimation.
func New(cred domain.Credential, httpClient *http.Client, counter *tokens.Registry) *Adapter {
	return &Adapter{client: NewClient(cred, httpClient), counter: counter}
}

// Vendor returns the vendor identifier.
func (a *Adapter) Vendor() string { return "google" }

// RequiresFileDownload is true: the API only accepts inline base64 blobs, so
// URL-referenced files must be fetched before the request is built.
func (a *Adapter) RequiresFileDownload() bool { return true }

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
	resp, err := a.client.GenerateContent(ctx, opts.Model, req)
	if err != nil {
		return nil, tagProvider(err)
	}
	out, err := ParseResponse(resp)
	if err != nil {
		return nil, tagProvider(err)
	}
	out.Provider = a.Vendor()
	a.backfillUsage(out, messages, opts)
	return out, nil
}

// Stream performs one streaming attempt.
func (a *Adapter) Stream(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (<-chan domain.Chunk, error) {
	req, err := BuildRequest(messages, opts)
	if err != nil {
		return nil, err
	}
	events, err := a.client.StreamGenerateContent(ctx, opts.Model, req)
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
			chunks, err := ExtractStreamDelta(event.Data, sctx)
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

// backfillUsage estimates token counts client-side when the vendor omitted
// them. An estimate only fills unknown fields; vendor counts are untouched.
func (a *Adapter) backfillUsage(out *domain.StructuredOutput, messages []domain.Message, opts domain.ProviderOptions) {
	if a.counter == nil || (out.Usage.PromptTokens > 0 && out.Usage.CompletionTokens > 0) {
		return
	}
	estimate := domain.Usage{
		PromptTokens:     a.counter.Count(opts.Model, messages, opts.Tools),
		CompletionTokens: a.counter.CountText(opts.Model, out.Text),
		Estimated:        true,
	}
	out.Usage.Merge(estimate)
}

// BuildRequest converts canonical messages and options to the wire request.
// System messages become systemInstruction parts in their original order.
func BuildRequest(messages []domain.Message, opts domain.ProviderOptions) (*GenerateRequest, error) {
	req := &GenerateRequest{}

	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			if req.SystemInstruction == nil {
				req.SystemInstruction = &Content{}
			}
			req.SystemInstruction.Parts = append(req.SystemInstruction.Parts, Part{Text: m.Text()})
			continue
		}
		content, err := buildContent(m)
		if err != nil {
			return nil, err
		}
		if len(content.Parts) > 0 {
			req.Contents = append(req.Contents, *content)
		}
	}

	if len(opts.Tools) > 0 {
		tool := Tool{}
		for _, t := range opts.Tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		req.Tools = []Tool{tool}
	}
	req.ToolConfig = buildToolConfig(opts.ToolChoice)

	config := &GenerationConfig{
		Temperature:     opts.Temperature,
		MaxOutputTokens: opts.MaxTokens,
	}
	if opts.StructuredEnabled(true) && opts.OutputSchema != nil {
		config.ResponseMimeType = "application/json"
		config.ResponseSchema = opts.OutputSchema
	}
	if config.Temperature != nil || config.MaxOutputTokens > 0 || config.ResponseMimeType != "" {
		req.GenerationConfig = config
	}
	return req, nil
}

func buildContent(m domain.Message) (*Content, error) {
	role := "user"
	if m.Role == domain.RoleAssistant {
		role = "model"
	}
	content := &Content{Role: role}

	for _, item := range m.Content {
		switch item.Kind {
		case domain.ContentKindText:
			content.Parts = append(content.Parts, Part{Text: item.Text})
		case domain.ContentKindFile:
			part, err := buildFilePart(item.File)
			if err != nil {
				return nil, err
			}
			content.Parts = append(content.Parts, *part)
		case domain.ContentKindToolCall:
			content.Parts = append(content.Parts, Part{FunctionCall: &FunctionCall{
				Name: item.ToolCall.Name,
				Args: item.ToolCall.Input,
			}})
		case domain.ContentKindToolResult:
			// The API pairs responses by function name, not call id.
			response := map[string]any{}
			if item.ToolResult.Error != "" {
				response["error"] = item.ToolResult.Error
			} else {
				response["result"] = item.ToolResult.Value
			}
			content.Parts = append(content.Parts, Part{FunctionResponse: &FunctionResponse{
				Name:     item.ToolResult.Name,
				Response: response,
			}})
		}
	}
	return content, nil
}

func buildFilePart(f *domain.File) (*Part, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.Data == "" {
		return nil, domain.NewProviderError(domain.CodeInvalidFile,
			"file must be downloaded to inline data for this provider")
	}
	return &Part{InlineData: &Blob{MimeType: f.ContentType, Data: f.Data}}, nil
}

func buildToolConfig(tc domain.ToolChoice) *ToolConfig {
	var mode string
	var allowed []string
	switch tc.Mode {
	case domain.ToolChoiceNone:
		mode = "NONE"
	case domain.ToolChoiceRequired:
		mode = "ANY"
	case domain.ToolChoiceNamed:
		mode = "ANY"
		allowed = []string{tc.Name}
	default:
		return nil
	}
	return &ToolConfig{FunctionCallingConfig: &FunctionCallingConfig{
		Mode:                 mode,
		AllowedFunctionNames: allowed,
	}}
}

// ParseResponse converts a wire response to canonical structured output.
// Function calls arrive whole and without ids; each gets a generated id so
// downstream tool pairing works uniformly across vendors.
func ParseResponse(resp *GenerateResponse) (*domain.StructuredOutput, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, domain.NewProviderError(domain.CodeContentModeration,
			"prompt blocked: "+resp.PromptFeedback.BlockReason).WithCapture(false)
	}
	if len(resp.Candidates) == 0 {
		return nil, domain.NewProviderError(domain.CodeUnknown, "response contained no candidates")
	}
	candidate := resp.Candidates[0]
	if err := checkFinishReason(candidate.FinishReason); err != nil {
		return nil, err
	}

	out := &domain.StructuredOutput{
		Model:        resp.ModelVersion,
		FinishReason: normalizeFinishReason(candidate.FinishReason),
	}
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			switch {
			case part.Text != "":
				out.Text += part.Text
			case part.FunctionCall != nil:
				out.ToolCalls = append(out.ToolCalls, domain.ToolCallRequest{
					ID:    uuid.NewString(),
					Name:  part.FunctionCall.Name,
					Input: part.FunctionCall.Args,
				})
			}
		}
	}
	if len(out.ToolCalls) > 0 && out.FinishReason == "stop" {
		out.FinishReason = "tool_call"
	}

	if out.Text != "" {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(out.Text), &decoded); err == nil {
			out.Decoded = decoded
		}
	}
	if resp.UsageMetadata != nil {
		out.Usage = convertUsage(resp.UsageMetadata)
	}
	return out, nil
}

func convertUsage(u *UsageMetadata) domain.Usage {
	return domain.Usage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount,
		CachedTokens:     u.CachedContentTokenCount,
	}
}

func checkFinishReason(reason string) error {
	switch reason {
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST":
		return domain.NewProviderError(domain.CodeContentModeration,
			"completion blocked: "+reason).WithCapture(false)
	case "MALFORMED_FUNCTION_CALL":
		return domain.NewProviderError(domain.CodeFailedGeneration, "model produced a malformed function call")
	default:
		return nil
	}
}

func normalizeFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return "stop"
	case "MAX_TOKENS":
		return "max_tokens"
	case "":
		return ""
	default:
		return "stop"
	}
}

func tagProvider(err error) error {
	if perr, ok := err.(*domain.ProviderError); ok && perr.Provider == "" {
		return perr.WithProvider("google")
	}
	return err
}
