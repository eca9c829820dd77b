// Package groq implements the protocol adapter for Groq's OpenAI-compatible
// chat API.
package groq

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/relayforge/relayforge/internal/adapter/openai"
	"github.com/relayforge/relayforge/internal/domain"
)

const defaultBaseURL = "https://api.groq.com/openai/v1"

// New creates a Groq adapter. The wire format is OpenAI's; only the
// endpoint and the error vocabulary differ.
func New(cred domain.Credential, httpClient *http.Client) *openai.Adapter {
	if cred.BaseURL == "" {
		cred.BaseURL = defaultBaseURL
	}
	return openai.NewCompatible("groq", cred, httpClient, ClassifyError)
}

// errorEnvelope is Groq's error body. On tool-use and JSON-mode failures it
// carries the raw model output in failed_generation.
type errorEnvelope struct {
	Error *struct {
		Message          string `json:"message"`
		Type             string `json:"type"`
		Code             string `json:"code"`
		FailedGeneration string `json:"failed_generation,omitempty"`
	} `json:"error"`
}

// ClassifyError maps a Groq error response onto the shared taxonomy. The
// dialect-specific cases are the generation-failure codes, which mark the
// error as retryable on the next model rather than a caller fault.
func ClassifyError(status int, body []byte) *domain.ProviderError {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		e := envelope.Error
		switch e.Code {
		case "tool_use_failed", "json_validate_failed":
			perr := domain.NewProviderError(domain.CodeFailedGeneration, e.Message)
			if e.FailedGeneration != "" {
				perr = perr.WithDetail("failed_generation", e.FailedGeneration)
			}
			return perr
		case "model_decommissioned", "model_not_found":
			return domain.NewProviderError(domain.CodeInvalidProviderConfig, e.Message)
		}
		if strings.Contains(strings.ToLower(e.Message), "organization has been restricted") {
			return domain.NewProviderError(domain.CodeInvalidProviderConfig, e.Message).WithCapture(false)
		}
	}
	return openai.ClassifyError(status, body)
}
