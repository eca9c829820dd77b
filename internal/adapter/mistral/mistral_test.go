package mistral

import (
	"testing"

	"github.com/relayforge/relayforge/internal/adapter"
	"github.com/relayforge/relayforge/internal/domain"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   domain.ErrorCode
	}{
		{
			"prompt too large",
			400,
			`{"message":"Prompt contains 40000 tokens, too large for model with 32768 maximum context length","type":"invalid_request_error"}`,
			domain.CodeMaxTokensExceeded,
		},
		{
			"inactive subscription",
			401,
			`{"message":"Inactive subscription or usage limit reached","type":"invalid_request_error"}`,
			domain.CodeInvalidProviderConfig,
		},
		{
			"invalid key",
			401,
			`{"message":"Invalid API key","type":"invalid_request_error"}`,
			domain.CodeInvalidProviderConfig,
		},
		{
			"falls through to shared classifier",
			503,
			`{"message":"Service unavailable","type":"service_unavailable"}`,
			domain.CodeProviderUnavailable,
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

func TestToolCallIDRehash(t *testing.T) {
	// OpenAI-style ids do not fit Mistral's nine-alphanumeric format and
	// must be rehashed deterministically.
	foreign := "call_abc123XYZ456"
	got := adapter.SafeToolCallID(foreign, toolCallIDPattern, 9)
	if !toolCallIDPattern.MatchString(got) {
		t.Errorf("rehashed id %q does not match the vendor format", got)
	}
	if got != adapter.SafeToolCallID(foreign, toolCallIDPattern, 9) {
		t.Error("rehash must be deterministic")
	}

	native := "abc123XYZ"
	if adapter.SafeToolCallID(native, toolCallIDPattern, 9) != native {
		t.Error("conforming ids must pass through unchanged")
	}
}

func TestNewSetsVendor(t *testing.T) {
	a := New(domain.Credential{APIKey: "test"}, nil)
	if a.Vendor() != "mistral" {
		t.Errorf("vendor = %q", a.Vendor())
	}
}
