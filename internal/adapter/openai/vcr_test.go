package openai_test

import (
	"context"
	"os"
	"testing"

	"github.com/relayforge/relayforge/internal/adapter/openai"
	"github.com/relayforge/relayforge/internal/domain"
	"github.com/relayforge/relayforge/internal/testutil"
)

func TestCompleteAgainstCassette(t *testing.T) {
	r := testutil.NewRecorder(t, "chat_completion")
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = "test-key"
	}

	a := openai.New(domain.Credential{APIKey: apiKey}, testutil.RecorderClient(r))

	out, err := a.Complete(context.Background(),
		[]domain.Message{domain.TextMessage(domain.RoleUser, "Say hello in one word.")},
		domain.ProviderOptions{Model: "gpt-4o-mini"},
	)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out.Text == "" {
		t.Error("expected completion text")
	}
	if out.FinishReason != "stop" {
		t.Errorf("finish reason = %q", out.FinishReason)
	}
	if out.Usage.TotalTokens() != 15 {
		t.Errorf("usage = %+v", out.Usage)
	}
	if out.Provider != "openai" {
		t.Errorf("provider = %q", out.Provider)
	}
}
