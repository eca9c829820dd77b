package openai

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/relayforge/relayforge/internal/domain"
)

// bodyHeuristics are substring matches applied to the vendor error message
// after status-code classification. Vendors change wording over time; keep
// this table easy to extend.
var bodyHeuristics = []struct {
	substr  string
	code    domain.ErrorCode
	capture bool
}{
	{"context_length_exceeded", domain.CodeMaxTokensExceeded, false},
	{"maximum context length", domain.CodeMaxTokensExceeded, false},
	{"image exceeds", domain.CodeInvalidFile, false},
	{"invalid_image", domain.CodeInvalidFile, false},
	{"exceeded your current quota", domain.CodeInvalidProviderConfig, false},
}

// ClassifyError maps an OpenAI error response onto the shared taxonomy.
// HTTP status decides the base category; message heuristics refine it.
func ClassifyError(status int, body []byte) *domain.ProviderError {
	var envelope ErrorResponse
	message := strings.TrimSpace(string(body))
	var wireType string
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		message = envelope.Error.Message
		wireType = envelope.Error.Type
	}

	err := classifyStatus(status, message)

	lower := strings.ToLower(message)
	for _, h := range bodyHeuristics {
		if strings.Contains(lower, h.substr) {
			return domain.NewProviderError(h.code, message).WithCapture(h.capture)
		}
	}
	if wireType == "insufficient_quota" {
		return domain.NewProviderError(domain.CodeInvalidProviderConfig, message).WithCapture(false)
	}
	return err
}

func classifyStatus(status int, message string) *domain.ProviderError {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.NewProviderError(domain.CodeRateLimit, message)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.NewProviderError(domain.CodeInvalidProviderConfig, message)
	case status == http.StatusBadRequest:
		lower := strings.ToLower(message)
		if strings.Contains(lower, "content management policy") || strings.Contains(lower, "content policy") {
			return domain.NewProviderError(domain.CodeContentModeration, message).WithCapture(false)
		}
		if strings.Contains(lower, "json_schema") || strings.Contains(lower, "response_format") {
			return domain.NewProviderError(domain.CodeStructuredGeneration, message)
		}
		return domain.NewProviderError(domain.CodeBadRequest, message)
	case status == http.StatusRequestTimeout:
		return domain.NewProviderError(domain.CodeTimeout, message)
	case status == http.StatusServiceUnavailable, status == http.StatusBadGateway:
		return domain.NewProviderError(domain.CodeProviderUnavailable, message)
	case status >= 500:
		return domain.NewProviderError(domain.CodeProviderInternal, message)
	default:
		return domain.NewProviderError(domain.CodeUnknown, message)
	}
}
