package anthropic

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

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"

	transientAttempts = 3
)

// Client is the HTTP client for the Anthropic messages API.
type Client struct {
	apiKey     string
	baseURL    string
	version    string
	httpClient *http.Client
}

// NewClient creates a client over the shared HTTP pool.
func NewClient(cred domain.Credential, httpClient *http.Client) *Client {
	baseURL := cred.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	version := apiVersion
	if v, ok := cred.Extra["api_version"]; ok {
		version = v
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		apiKey:     cred.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		version:    version,
		httpClient: httpClient,
	}
}

// CreateMessage executes a non-streaming request.
func (c *Client) CreateMessage(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var respBody []byte
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		c.setHeaders(httpReq)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			perr := classifyTransportError(err)
			if perr.Code == domain.CodeTimeout {
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
			return backoff.Permanent(adapter.ApplyRetryAfter(ClassifyError(resp.StatusCode, respBody), resp.Header))
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

	var result MessagesResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.NewProviderError(domain.CodeUnknown, "malformed messages response").WithCause(err)
	}
	return &result, nil
}

// StreamMessage executes a streaming request and returns the SSE channel.
func (c *Client) StreamMessage(ctx context.Context, req *MessagesRequest) (<-chan adapter.SSEEvent, error) {
	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
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
		return nil, adapter.ApplyRetryAfter(ClassifyError(resp.StatusCode, respBody), resp.Header)
	}
	return adapter.ReadSSE(resp.Body), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.version)
}

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
