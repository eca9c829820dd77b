// Package mistral implements the protocol adapter for Mistral's
// OpenAI-compatible chat API.
package mistral

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/relayforge/relayforge/internal/adapter/openai"
	"github.com/relayforge/relayforge/internal/domain"
)

const defaultBaseURL = "https://api.mistral.ai/v1"

// toolCallIDPattern is Mistral's id format: exactly nine alphanumerics.
// Foreign ids carried over from another vendor's turn are rehashed to fit.
var toolCallIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{9}$`)

// New creates a Mistral adapter. The wire format is OpenAI's with two
// dialect quirks: the strict tool-call id charset and the prefix flag
// required on a trailing assistant message.
func New(cred domain.Credential, httpClient *http.Client) *openai.Adapter {
	if cred.BaseURL == "" {
		cred.BaseURL = defaultBaseURL
	}
	return openai.NewCompatible("mistral", cred, httpClient, ClassifyError,
		openai.WithToolCallIDFormat(toolCallIDPattern, 9),
		openai.WithAssistantPrefix(),
	)
}

type errorEnvelope struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Detail  any    `json:"detail,omitempty"`
}

// ClassifyError maps a Mistral error response onto the shared taxonomy.
func ClassifyError(status int, body []byte) *domain.ProviderError {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		lower := strings.ToLower(envelope.Message)
		switch {
		case strings.Contains(lower, "too large for model"),
			strings.Contains(lower, "exceeds the context"):
			return domain.NewProviderError(domain.CodeMaxTokensExceeded, envelope.Message).WithCapture(false)
		case strings.Contains(lower, "inactive subscription"),
			strings.Contains(lower, "invalid api key"):
			return domain.NewProviderError(domain.CodeInvalidProviderConfig, envelope.Message).WithCapture(false)
		}
	}
	return openai.ClassifyError(status, body)
}
