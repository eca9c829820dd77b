package google

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/relayforge/relayforge/internal/domain"
)

// ClassifyError maps a Gemini API error response onto the shared taxonomy.
func ClassifyError(status int, body []byte) *domain.ProviderError {
	var envelope ErrorResponse
	message := strings.TrimSpace(string(body))
	wireStatus := ""
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		message = envelope.Error.Message
		wireStatus = envelope.Error.Status
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "api key not valid"), strings.Contains(lower, "api_key_invalid"):
		return domain.NewProviderError(domain.CodeInvalidProviderConfig, message).WithCapture(false)
	case strings.Contains(lower, "exceeds the maximum number of tokens"),
		strings.Contains(lower, "input token count") && strings.Contains(lower, "exceeds"):
		return domain.NewProviderError(domain.CodeMaxTokensExceeded, message).WithCapture(false)
	}

	switch wireStatus {
	case "RESOURCE_EXHAUSTED":
		return domain.NewProviderError(domain.CodeRateLimit, message)
	case "UNAVAILABLE":
		return domain.NewProviderError(domain.CodeProviderUnavailable, message)
	case "PERMISSION_DENIED", "UNAUTHENTICATED":
		return domain.NewProviderError(domain.CodeInvalidProviderConfig, message)
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION":
		return domain.NewProviderError(domain.CodeBadRequest, message)
	case "DEADLINE_EXCEEDED":
		return domain.NewProviderError(domain.CodeTimeout, message)
	case "INTERNAL":
		return domain.NewProviderError(domain.CodeProviderInternal, message)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return domain.NewProviderError(domain.CodeRateLimit, message)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.NewProviderError(domain.CodeInvalidProviderConfig, message)
	case status == http.StatusBadRequest:
		return domain.NewProviderError(domain.CodeBadRequest, message)
	case status == http.StatusServiceUnavailable:
		return domain.NewProviderError(domain.CodeProviderUnavailable, message)
	case status >= 500:
		return domain.NewProviderError(domain.CodeProviderInternal, message)
	default:
		return domain.NewProviderError(domain.CodeUnknown, message)
	}
}
