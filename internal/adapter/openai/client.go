package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/relayforge/relayforge/internal/adapter"
	"github.com/relayforge/relayforge/internal/domain"
)

const defaultBaseURL = "https://api.openai.com/v1"

// transientAttempts bounds the retries on connect/read failures before the
// error surfaces to the pipeline.
const transientAttempts = 3

// Client is the HTTP client for an OpenAI-compatible chat endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	// classify maps a non-2xx response onto the shared taxonomy; Groq and
	// Mistral install their own.
	classify func(status int, body []byte) *domain.ProviderError
}

// NewClient creates a client against the given endpoint. httpClient is the
// shared process-wide pool; nil falls back to http.DefaultClient.
func NewClient(cred domain.Credential, httpClient *http.Client, classify func(int, []byte) *domain.ProviderError) *Client {
	baseURL := cred.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if classify == nil {
		classify = ClassifyError
	}
	return &Client{
		apiKey:     cred.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		classify:   classify,
	}
}

// CreateChatCompletion executes a non-streaming request.
func (c *Client) CreateChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	respBody, err := c.post(ctx, "/chat/completions", req)
	if err != nil {
		return nil, err
	}
	var result ChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.NewProviderError(domain.CodeUnknown, "malformed completion response").WithCause(err)
	}
	return &result, nil
}

// StreamChatCompletion executes a streaming request and returns the SSE
// event channel. The caller owns draining it.
func (c *Client) StreamChatCompletion(ctx context.Context, req *ChatRequest) (<-chan adapter.SSEEvent, error) {
	req.Stream = true
	if req.StreamOptions == nil {
		req.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, adapter.ApplyRetryAfter(c.classify(resp.StatusCode, respBody), resp.Header)
	}
	return adapter.ReadSSE(resp.Body), nil
}

// post sends a JSON body and returns the raw success payload. Transient
// transport failures are retried with exponential backoff before counting as
// a pipeline-level error.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var respBody []byte
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		c.setHeaders(httpReq)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			perr := classifyTransportError(err)
			if perr.Code == domain.CodeTimeout || perr.Code == domain.CodeReadTimeout {
				return backoff.Permanent(perr)
			}
			return perr
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return domain.NewProviderError(domain.CodeReadTimeout, "reading response body").WithCause(err)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(adapter.ApplyRetryAfter(c.classify(resp.StatusCode, respBody), resp.Header))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), transientAttempts-1), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		var perr *domain.ProviderError
		if errors.As(err, &perr) {
			return nil, perr
		}
		return nil, domain.NewProviderError(domain.CodeUnknown, "request failed").WithCause(err)
	}
	return respBody, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// classifyTransportError maps network-layer failures onto the taxonomy.
func classifyTransportError(err error) *domain.ProviderError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewProviderError(domain.CodeTimeout, "request timed out").WithCause(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewProviderError(domain.CodeTimeout, "request deadline exceeded").WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewProviderError(domain.CodeTimeout, "request cancelled").WithCause(err).WithCapture(false)
	}
	return domain.NewProviderError(domain.CodeProviderUnavailable, "connection failed").WithCause(err)
}
