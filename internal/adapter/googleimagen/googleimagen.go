// Package googleimagen implements the protocol adapter for the Imagen
// predict API.
package googleimagen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/relayforge/relayforge/internal/adapter"
	"github.com/relayforge/relayforge/internal/adapter/google"
	"github.com/relayforge/relayforge/internal/domain"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// PredictRequest is the :predict request body.
type PredictRequest struct {
	Instances  []Instance  `json:"instances"`
	Parameters *Parameters `json:"parameters,omitempty"`
}

// Instance carries one generation prompt.
type Instance struct {
	Prompt string `json:"prompt"`
}

// Parameters holds the generation knobs.
type Parameters struct {
	SampleCount int    `json:"sampleCount,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

// PredictResponse is the response body.
type PredictResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// Prediction is one generated image.
type Prediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType,omitempty"`
}

// Adapter translates canonical requests to Imagen predictions.
type Adapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates an Imagen adapter over the shared HTTP client.
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
func (a *Adapter) Vendor() string { return "google-imagen" }

// RequiresFileDownload is true, matching the vendor family; the API takes no
// input files either way.
func (a *Adapter) RequiresFileDownload() bool { return true }

// Complete performs one generation.
func (a *Adapter) Complete(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (*domain.StructuredOutput, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := BuildRequest(messages)
	if err != nil {
		return nil, err
	}
	resp, err := a.predict(ctx, opts.Model, req)
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
func BuildRequest(messages []domain.Message) (*PredictRequest, error) {
	var parts []string
	for _, m := range messages {
		if m.Role != domain.RoleUser && m.Role != domain.RoleSystem {
			continue
		}
		if text := m.Text(); text != "" {
			parts = append(parts, text)
		}
	}
	prompt := strings.Join(parts, "\n")
	if prompt == "" {
		return nil, domain.NewProviderError(domain.CodeBadRequest, "image generation requires a text prompt").WithCapture(false)
	}
	return &PredictRequest{
		Instances:  []Instance{{Prompt: prompt}},
		Parameters: &Parameters{SampleCount: 1},
	}, nil
}

// ParseResponse converts predictions into canonical files.
func ParseResponse(resp *PredictResponse) (*domain.StructuredOutput, error) {
	if len(resp.Predictions) == 0 {
		return nil, domain.NewProviderError(domain.CodeFailedGeneration, "response contained no images")
	}
	out := &domain.StructuredOutput{FinishReason: "stop"}
	for _, p := range resp.Predictions {
		contentType := p.MimeType
		if contentType == "" {
			contentType = "image/png"
		}
		out.Files = append(out.Files, &domain.File{
			ContentType: contentType,
			Data:        p.BytesBase64Encoded,
			Kind:        domain.FileKindImage,
		})
	}
	out.Usage.Images = len(resp.Predictions)
	return out, nil
}

func (a *Adapter) predict(ctx context.Context, model string, req *PredictRequest) (*PredictResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:predict", a.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.apiKey)

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
		return nil, adapter.ApplyRetryAfter(google.ClassifyError(resp.StatusCode, respBody), resp.Header)
	}
	var result PredictResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.NewProviderError(domain.CodeUnknown, "malformed predict response").WithCause(err)
	}
	return &result, nil
}

func tagProvider(err error) error {
	if perr, ok := err.(*domain.ProviderError); ok && perr.Provider == "" {
		return perr.WithProvider("google-imagen")
	}
	return err
}
