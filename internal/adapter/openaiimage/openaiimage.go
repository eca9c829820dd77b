// Package openaiimage implements the protocol adapter for the OpenAI image
// generation API.
package openaiimage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/relayforge/relayforge/internal/adapter"
	"github.com/relayforge/relayforge/internal/adapter/openai"
	"github.com/relayforge/relayforge/internal/domain"
)

const defaultBaseURL = "https://api.openai.com/v1"

// GenerationRequest is the /v1/images/generations request body.
type GenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	OutputFormat   string `json:"output_format,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// GenerationResponse is the response body.
type GenerationResponse struct {
	Data  []GeneratedImage `json:"data"`
	Usage *ImageUsage      `json:"usage,omitempty"`
}

// GeneratedImage is one produced image, inline or by URL.
type GeneratedImage struct {
	B64JSON       string `json:"b64_json,omitempty"`
	URL           string `json:"url,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// ImageUsage is the token accounting some image models report.
type ImageUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Adapter translates canonical requests to image generations. The prompt is
// the concatenated text of the user turns; conversation structure beyond
// that has no equivalent on this API.
type Adapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates an image-generation adapter over the shared HTTP client.
func New(cred domain.Credential, httpClient *http.Client) *Adapter {
	baseURL := cred.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Adapter{
		apiKey:     cred.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Vendor returns the vendor identifier.
func (a *Adapter) Vendor() string { return "openai-image" }

// RequiresFileDownload is false; the API takes no input files.
func (a *Adapter) RequiresFileDownload() bool { return false }

// Complete performs one generation.
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
	resp, err := a.generate(ctx, req)
	if err != nil {
		return nil, tagProvider(err)
	}
	out, err := ParseResponse(resp)
	if err != nil {
		return nil, tagProvider(err)
	}
	out.Model = opts.Model
	out.Provider = a.Vendor()
	return out, nil
}

// Stream is unsupported; image generation has no streaming form.
func (a *Adapter) Stream(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (<-chan domain.Chunk, error) {
	return nil, domain.NewProviderError(domain.CodeBadRequest, "image generation does not support streaming").WithCapture(false)
}

// BuildRequest extracts the prompt from the user turns.
func BuildRequest(messages []domain.Message, opts domain.ProviderOptions) (*GenerationRequest, error) {
	prompt := promptFromMessages(messages)
	if prompt == "" {
		return nil, domain.NewProviderError(domain.CodeBadRequest, "image generation requires a text prompt").WithCapture(false)
	}
	return &GenerationRequest{
		Model:  opts.Model,
		Prompt: prompt,
		N:      1,
	}, nil
}

// ParseResponse converts generated images into canonical files.
func ParseResponse(resp *GenerationResponse) (*domain.StructuredOutput, error) {
	if len(resp.Data) == 0 {
		return nil, domain.NewProviderError(domain.CodeFailedGeneration, "response contained no images")
	}
	out := &domain.StructuredOutput{FinishReason: "stop"}
	for _, img := range resp.Data {
		out.Files = append(out.Files, &domain.File{
			ContentType: "image/png",
			Data:        img.B64JSON,
			URL:         img.URL,
			Kind:        domain.FileKindImage,
		})
	}
	out.Usage.Images = len(resp.Data)
	if resp.Usage != nil {
		out.Usage.PromptTokens = resp.Usage.InputTokens
		out.Usage.CompletionTokens = resp.Usage.OutputTokens
	}
	return out, nil
}

func (a *Adapter) generate(ctx context.Context, req *GenerationRequest) (*GenerationResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewProviderError(domain.CodeProviderUnavailable, "connection failed").WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewProviderError(domain.CodeReadTimeout, "reading response body").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, adapter.ApplyRetryAfter(openai.ClassifyError(resp.StatusCode, respBody), resp.Header)
	}
	var result GenerationResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.NewProviderError(domain.CodeUnknown, "malformed generation response").WithCause(err)
	}
	return &result, nil
}

func promptFromMessages(messages []domain.Message) string {
	var parts []string
	for _, m := range messages {
		if m.Role != domain.RoleUser && m.Role != domain.RoleSystem {
			continue
		}
		if text := m.Text(); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

func tagProvider(err error) error {
	if perr, ok := err.(*domain.ProviderError); ok && perr.Provider == "" {
		return perr.WithProvider("openai-image")
	}
	return err
}
