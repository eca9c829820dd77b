package groq

import (
	"testing"

	"github.com/relayforge/relayforge/internal/domain"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		status int
		body string
		code domain.ErrorCode
	}{
		{
			"tool use failed",
			400,
			`{"error":{"message":"Failed to call a function","type":"invalid_request_error","code":"tool_use_failed","failed_generation":"<tool>garbage</tool>"}}`,
			domain.CodeFailedGeneration,
		},
		{
			"json validate failed",
			400,
			`{"error":{"message":"json validation failed","type":"invalid_request_error","code":"json_validate_failed"}}`,
			domain.CodeFailedGeneration,
		},
		{
			"decommissioned model",
			400,
			`{"error":{"message":"The model has been decommissioned","type":"invalid_request_error","code":"model_decommissioned"}}`,
			domain.CodeInvalidProviderConfig,
		},
		{
			"restricted org",
			400,
			`{"error":{"message":"Your organization has been restricted","type":"invalid_request_error"}}`,
			domain.CodeInvalidProviderConfig,
		},
		{
			"falls through to shared classifier",
			429,
			`{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`,
			domain.CodeRateLimit,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := ClassifyError(tt.status, []byte(tt.body))
			if perr.Code != tt.code {
				t.Errorf("code = %q, want %q", perr.Code, tt.code)
			}
		})
	}
}

func TestClassifyErrorKeepsFailedGeneration(t *testing.T) {
	body := `{"error":{"message":"Failed to call a function","code":"tool_use_failed","failed_generation":"not json"}}`
	perr := ClassifyError(400, []byte(body))
	if perr.Details["failed_generation"] != "not json" {
		t.Errorf("details = %+v, want the raw model output preserved", perr.Details)
	}
}

func TestNewDefaultsBaseURL(t *testing.T) {
	a := New(domain.Credential{APIKey: "gsk_test"}, nil)
	if a.Vendor() != "groq" {
		t.Errorf("vendor = %q", a.Vendor())
	}
}
