package anthropic

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/relayforge/relayforge/internal/domain"
)

// bodyHeuristics refine the status-based classification by sniffing the
// error message. These substrings are vendor behaviour, not API contract;
// expect wording drift and keep the table current.
var bodyHeuristics = []struct {
	substr  string
	code    domain.ErrorCode
	capture bool
}{
	// Trial/billing exhaustion looks like a 400 but means this credential
	// cannot serve traffic; skip to the next one without alerting.
	{"credit balance is too low", domain.CodeInvalidProviderConfig, false},
	{"prompt is too long", domain.CodeMaxTokensExceeded, false},
	{"image exceeds", domain.CodeInvalidFile, false},
	{"image dimensions exceed", domain.CodeInvalidFile, false},
}

// ClassifyError maps an Anthropic error response onto the shared taxonomy.
func ClassifyError(status int, body []byte) *domain.ProviderError {
	var envelope ErrorResponse
	message := strings.TrimSpace(string(body))
	var wireType string
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		message = envelope.Error.Message
		wireType = envelope.Error.Type
	}

	lower := strings.ToLower(message)
	for _, h := range bodyHeuristics {
		if strings.Contains(lower, h.substr) {
			return domain.NewProviderError(h.code, message).WithCapture(h.capture)
		}
	}

	return classifyWire(status, wireType, message)
}

func classifyWire(status int, wireType, message string) *domain.ProviderError {
	switch wireType {
	case "rate_limit_error":
		return domain.NewProviderError(domain.CodeRateLimit, message)
	case "overloaded_error":
		return domain.NewProviderError(domain.CodeProviderUnavailable, message)
	case "authentication_error", "permission_error":
		return domain.NewProviderError(domain.CodeInvalidProviderConfig, message)
	case "api_error":
		return domain.NewProviderError(domain.CodeProviderInternal, message)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return domain.NewProviderError(domain.CodeRateLimit, message)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.NewProviderError(domain.CodeInvalidProviderConfig, message)
	case status == http.StatusBadRequest:
		return domain.NewProviderError(domain.CodeBadRequest, message)
	case status == 529, status == http.StatusServiceUnavailable:
		return domain.NewProviderError(domain.CodeProviderUnavailable, message)
	case status >= 500:
		return domain.NewProviderError(domain.CodeProviderInternal, message)
	default:
		return domain.NewProviderError(domain.CodeUnknown, message)
	}
}
