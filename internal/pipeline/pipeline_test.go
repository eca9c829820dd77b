package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/relayforge/relayforge/internal/catalog"
	"github.com/relayforge/relayforge/internal/domain"
	"github.com/relayforge/relayforge/internal/telemetry"
	"github.com/relayforge/relayforge/internal/tenant"
)

// scriptedAdapter replays a queue of results per provider instance.
type scriptedAdapter struct {
	vendor  string
	script  *script
	label   string
	inlines bool
}

type step struct {
	out *domain.StructuredOutput
	err error
}

// script records the attempt order across all instances and serves each
// instance's queued steps.
type script struct {
	steps    map[string][]step
	attempts []string
	// structured records the effective structured flag per attempt.
	structured []bool
}

func newScript() *script {
	return &script{steps: map[string][]step{}}
}

func (s *script) add(label string, out *domain.StructuredOutput, err error) {
	s.steps[label] = append(s.steps[label], step{out: out, err: err})
}

func (a *scriptedAdapter) Vendor() string            { return a.vendor }
func (a *scriptedAdapter) RequiresFileDownload() bool { return a.inlines }

func (a *scriptedAdapter) Complete(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (*domain.StructuredOutput, error) {
	a.script.attempts = append(a.script.attempts, a.label)
	a.script.structured = append(a.script.structured, opts.StructuredOutput != nil && *opts.StructuredOutput)
	queue := a.script.steps[a.label]
	if len(queue) == 0 {
		return nil, domain.NewProviderError(domain.CodeUnknown, "unscripted attempt for "+a.label)
	}
	next := queue[0]
	a.script.steps[a.label] = queue[1:]
	return next.out, next.err
}

func (a *scriptedAdapter) Stream(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (<-chan domain.Chunk, error) {
	out, err := a.Complete(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	ch := make(chan domain.Chunk, 2)
	ch <- domain.Chunk{TextDelta: out.Text}
	ch <- domain.Chunk{FinishReason: out.FinishReason}
	close(ch)
	return ch, nil
}

func scriptedFactory(s *script) AdapterFactory {
	return func(vendor catalog.Vendor, cred domain.Credential) (domain.ProtocolAdapter, error) {
		return &scriptedAdapter{
			vendor: string(vendor),
			script: s,
			label:  string(vendor) + "/" + cred.ID,
		}, nil
	}
}

func testCatalog() *catalog.Catalog {
	return catalog.New(
		&catalog.ModelData{
			ID:                       "primary",
			InputModalities:          []catalog.Modality{catalog.ModalityText, catalog.ModalityImage},
			OutputModalities:         []catalog.Modality{catalog.ModalityText},
			SupportsStructuredOutput: true,
			SupportsTools:            true,
			Providers: []catalog.ProviderEntry{
				{Vendor: catalog.VendorOpenAI},
				{Vendor: catalog.VendorAnthropic},
			},
			Fallback: catalog.FallbackPolicy{
				domain.FallbackAvailability:         "backup",
				domain.FallbackModeration:           "backup",
				domain.FallbackStructuredGeneration: "backup",
			},
		},
		&catalog.ModelData{
			ID:                       "backup",
			InputModalities:          []catalog.Modality{catalog.ModalityText},
			OutputModalities:         []catalog.Modality{catalog.ModalityText},
			SupportsStructuredOutput: true,
			Providers: []catalog.ProviderEntry{
				{Vendor: catalog.VendorGroq},
			},
		},
	)
}

func okOutput(text string) *domain.StructuredOutput {
	return &domain.StructuredOutput{Text: text, FinishReason: "stop"}
}

func newTestPipeline(s *script, opts ...Option) *Pipeline {
	base := []Option{
		WithCredentials(catalog.VendorOpenAI,
			domain.Credential{ID: "oa-1", APIKey: "k1"},
			domain.Credential{ID: "oa-2", APIKey: "k2"}),
		WithCredentials(catalog.VendorAnthropic, domain.Credential{ID: "an-1", APIKey: "k3"}),
		WithCredentials(catalog.VendorGroq, domain.Credential{ID: "gq-1", APIKey: "k4"}),
	}
	return New(testCatalog(), scriptedFactory(s), append(base, opts...)...)
}

func userText(text string) []domain.Message {
	return []domain.Message{domain.TextMessage(domain.RoleUser, text)}
}

func TestExecuteFirstProviderSucceeds(t *testing.T) {
	s := newScript()
	s.add("openai/oa-1", okOutput("hi"), nil)

	p := newTestPipeline(s)
	out, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{Model: "primary"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Text != "hi" {
		t.Errorf("text = %q, want %q", out.Text, "hi")
	}
	if got := s.attempts; len(got) != 1 || got[0] != "openai/oa-1" {
		t.Errorf("attempts = %v, want [openai/oa-1]", got)
	}
}

func TestRateLimitWalksInstancesThenVendors(t *testing.T) {
	s := newScript()
	s.add("openai/oa-1", nil, domain.NewProviderError(domain.CodeRateLimit, "throttled"))
	s.add("openai/oa-2", nil, domain.NewProviderError(domain.CodeRateLimit, "throttled"))
	s.add("anthropic/an-1", okOutput("recovered"), nil)

	p := newTestPipeline(s)
	out, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{Model: "primary"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Text != "recovered" {
		t.Errorf("text = %q, want %q", out.Text, "recovered")
	}
	want := []string{"openai/oa-1", "openai/oa-2", "anthropic/an-1"}
	if len(s.attempts) != len(want) {
		t.Fatalf("attempts = %v, want %v", s.attempts, want)
	}
	for i := range want {
		if s.attempts[i] != want[i] {
			t.Errorf("attempt %d = %q, want %q", i, s.attempts[i], want[i])
		}
	}
}

func TestBadRequestStopsImmediately(t *testing.T) {
	s := newScript()
	s.add("openai/oa-1", nil, domain.NewProviderError(domain.CodeBadRequest, "malformed request"))

	p := newTestPipeline(s)
	_, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{Model: "primary"})
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.Code != domain.CodeBadRequest {
		t.Fatalf("err = %v, want bad_request", err)
	}
	if len(s.attempts) != 1 {
		t.Errorf("attempts = %v, want exactly one", s.attempts)
	}
}

func TestHardStopAfterRetriesSurfacesTerminalError(t *testing.T) {
	s := newScript()
	s.add("openai/oa-1", nil, domain.NewProviderError(domain.CodeRateLimit, "throttled one"))
	s.add("openai/oa-2", nil, domain.NewProviderError(domain.CodeRateLimit, "throttled two"))
	s.add("anthropic/an-1", nil, domain.NewProviderError(domain.CodeBadRequest, "malformed request"))

	p := newTestPipeline(s)
	_, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{Model: "primary"})
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.Code != domain.CodeBadRequest {
		t.Fatalf("err = %v, want the terminal bad_request, not an earlier rate limit", err)
	}
	if len(s.attempts) != 3 {
		t.Errorf("attempts = %v, want the walk to stop at the bad request", s.attempts)
	}
}

func TestExhaustionSurfacesFirstError(t *testing.T) {
	s := newScript()
	s.add("openai/oa-1", nil, domain.NewProviderError(domain.CodeRateLimit, "first failure"))
	s.add("openai/oa-2", nil, domain.NewProviderError(domain.CodeProviderUnavailable, "second"))
	s.add("anthropic/an-1", nil, domain.NewProviderError(domain.CodeProviderInternal, "third"))
	s.add("groq/gq-1", nil, domain.NewProviderError(domain.CodeProviderUnavailable, "fourth"))

	p := newTestPipeline(s)
	_, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{Model: "primary"})
	var perr *domain.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ProviderError", err)
	}
	if perr.Message != "first failure" {
		t.Errorf("surfaced %q, want the first recorded error", perr.Message)
	}
	if len(s.attempts) != 4 {
		t.Errorf("attempts = %v, want all four instances tried", s.attempts)
	}
}

func TestModerationTriggersModelFallback(t *testing.T) {
	s := newScript()
	s.add("openai/oa-1", nil, domain.NewProviderError(domain.CodeContentModeration, "flagged"))
	s.add("groq/gq-1", okOutput("fallback served"), nil)

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	p := newTestPipeline(s, WithMetrics(metrics))

	out, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{Model: "primary"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Text != "fallback served" {
		t.Errorf("text = %q", out.Text)
	}
	// Moderation skips the remaining primary vendors and goes straight to
	// the fallback model.
	want := []string{"openai/oa-1", "groq/gq-1"}
	if len(s.attempts) != 2 || s.attempts[0] != want[0] || s.attempts[1] != want[1] {
		t.Errorf("attempts = %v, want %v", s.attempts, want)
	}

	got := testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("primary", string(domain.FallbackModeration)))
	if got != 1 {
		t.Errorf("fallback counter = %v, want 1", got)
	}
}

func TestFallbackCountedOncePerRequest(t *testing.T) {
	s := newScript()
	s.add("openai/oa-1", nil, domain.NewProviderError(domain.CodeContentModeration, "flagged"))
	s.add("groq/gq-1", nil, domain.NewProviderError(domain.CodeContentModeration, "flagged again"))

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	p := newTestPipeline(s, WithMetrics(metrics))

	_, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{Model: "primary"})
	if err == nil {
		t.Fatal("want error after exhausting fallback chain")
	}
	got := testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("primary", string(domain.FallbackModeration)))
	if got != 1 {
		t.Errorf("fallback counter = %v, want exactly 1", got)
	}
}

func TestDisableFallbackStopsCascade(t *testing.T) {
	s := newScript()
	s.add("openai/oa-1", nil, domain.NewProviderError(domain.CodeContentModeration, "flagged"))

	p := newTestPipeline(s)
	_, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{
		Model:           "primary",
		DisableFallback: true,
	})
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.Code != domain.CodeContentModeration {
		t.Fatalf("err = %v, want content_moderation", err)
	}
	if len(s.attempts) != 1 {
		t.Errorf("attempts = %v, want no fallback attempt", s.attempts)
	}
}

func TestStructuredGenerationRetriesOnceWithoutFlag(t *testing.T) {
	s := newScript()
	s.add("openai/oa-1", nil, domain.NewProviderError(domain.CodeStructuredGeneration, "schema unsupported"))
	s.add("openai/oa-1", okOutput("plain"), nil)

	p := newTestPipeline(s)
	out, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{
		Model:        "primary",
		OutputSchema: map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Text != "plain" {
		t.Errorf("text = %q", out.Text)
	}
	if len(s.attempts) != 2 || s.attempts[0] != s.attempts[1] {
		t.Fatalf("attempts = %v, want two on the same instance", s.attempts)
	}
	if !s.structured[0] || s.structured[1] {
		t.Errorf("structured flags = %v, want [true false]", s.structured)
	}
}

func TestStructuredGenerationNotRetriedWhenForced(t *testing.T) {
	forced := true
	s := newScript()
	s.add("openai/oa-1", nil, domain.NewProviderError(domain.CodeStructuredGeneration, "schema unsupported"))
	// The fallback model picks it up instead of a same-instance downgrade.
	s.add("groq/gq-1", okOutput("fallback"), nil)

	p := newTestPipeline(s)
	out, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{
		Model:            "primary",
		StructuredOutput: &forced,
		OutputSchema:     map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Text != "fallback" {
		t.Errorf("text = %q", out.Text)
	}
	for i, structured := range s.structured {
		if !structured {
			t.Errorf("attempt %d ran without structured output despite the forced flag", i)
		}
	}
}

func TestFallbackSkipsModelMissingModality(t *testing.T) {
	s := newScript()
	s.add("openai/oa-1", nil, domain.NewProviderError(domain.CodeContentModeration, "flagged"))

	p := newTestPipeline(s)
	messages := []domain.Message{{
		Role: domain.RoleUser,
		Content: []domain.ContentItem{
			domain.TextItem("describe this"),
			domain.FileItem(&domain.File{ContentType: "image/png", Data: "aGk="}),
		},
	}}
	// backup is text-only, so the cascade has nowhere to go.
	_, err := p.Execute(context.Background(), messages, domain.ProviderOptions{Model: "primary"})
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.Code != domain.CodeContentModeration {
		t.Fatalf("err = %v, want the original moderation error", err)
	}
	if len(s.attempts) != 1 {
		t.Errorf("attempts = %v, want no attempt on the text-only fallback", s.attempts)
	}
}

func TestFallbackRequiresStructuredSupportWhenInferred(t *testing.T) {
	cat := catalog.New(
		&catalog.ModelData{
			ID:                       "structured-primary",
			InputModalities:          []catalog.Modality{catalog.ModalityText},
			OutputModalities:         []catalog.Modality{catalog.ModalityText},
			SupportsStructuredOutput: true,
			Providers:                []catalog.ProviderEntry{{Vendor: catalog.VendorOpenAI}},
			Fallback: catalog.FallbackPolicy{
				domain.FallbackModeration: "plain-backup",
			},
		},
		&catalog.ModelData{
			ID:               "plain-backup",
			InputModalities:  []catalog.Modality{catalog.ModalityText},
			OutputModalities: []catalog.Modality{catalog.ModalityText},
			Providers:        []catalog.ProviderEntry{{Vendor: catalog.VendorGroq}},
		},
	)

	s := newScript()
	s.add("openai/oa-1", nil, domain.NewProviderError(domain.CodeContentModeration, "flagged"))

	p := New(cat, scriptedFactory(s),
		WithCredentials(catalog.VendorOpenAI, domain.Credential{ID: "oa-1", APIKey: "k1"}),
		WithCredentials(catalog.VendorGroq, domain.Credential{ID: "gq-1", APIKey: "k4"}))

	// No explicit flag: the schema alone puts the request in structured
	// mode, so a fallback model without structured support is no use.
	_, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{
		Model:        "structured-primary",
		OutputSchema: map[string]any{"type": "object"},
	})
	var perr *domain.ProviderError
	if !errors.As(err, &perr) || perr.Code != domain.CodeContentModeration {
		t.Fatalf("err = %v, want the moderation error with the cascade exhausted", err)
	}
	if len(s.attempts) != 1 {
		t.Errorf("attempts = %v, want the plain fallback skipped", s.attempts)
	}
}

func TestExplicitFallbackListOverridesPolicy(t *testing.T) {
	s := newScript()
	s.add("openai/oa-1", nil, domain.NewProviderError(domain.CodeProviderUnavailable, "down"))
	s.add("openai/oa-2", nil, domain.NewProviderError(domain.CodeProviderUnavailable, "down"))
	s.add("anthropic/an-1", nil, domain.NewProviderError(domain.CodeProviderUnavailable, "down"))
	s.add("groq/gq-1", okOutput("explicit"), nil)

	p := newTestPipeline(s)
	out, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{
		Model:          "primary",
		FallbackModels: []string{"backup"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Text != "explicit" {
		t.Errorf("text = %q", out.Text)
	}
}

func TestUnsupportedModel(t *testing.T) {
	p := newTestPipeline(newScript())
	_, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{Model: "no-such-model"})
	var unsupported *catalog.ErrUnsupportedModel
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want ErrUnsupportedModel", err)
	}
}

func TestStreamAppliesSameSelection(t *testing.T) {
	s := newScript()
	s.add("openai/oa-1", nil, domain.NewProviderError(domain.CodeRateLimit, "throttled"))
	s.add("openai/oa-2", okOutput("streamed"), nil)

	p := newTestPipeline(s)
	ch, err := p.Stream(context.Background(), userText("hello"), domain.ProviderOptions{Model: "primary"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var text string
	for chunk := range ch {
		text += chunk.TextDelta
	}
	if text != "streamed" {
		t.Errorf("streamed text = %q", text)
	}
	if len(s.attempts) != 2 {
		t.Errorf("attempts = %v, want retry before the stream opened", s.attempts)
	}
}

// interruptedAdapter opens its stream successfully, then fails mid-stream on
// the first instance and streams cleanly on any later one.
type interruptedAdapter struct {
	vendor string
	label  string
	calls  *[]string
}

func (a *interruptedAdapter) Vendor() string             { return a.vendor }
func (a *interruptedAdapter) RequiresFileDownload() bool { return false }

func (a *interruptedAdapter) Complete(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (*domain.StructuredOutput, error) {
	return nil, domain.NewProviderError(domain.CodeUnknown, "not used")
}

func (a *interruptedAdapter) Stream(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (<-chan domain.Chunk, error) {
	*a.calls = append(*a.calls, a.label)
	ch := make(chan domain.Chunk, 3)
	if len(*a.calls) == 1 {
		ch <- domain.Chunk{TextDelta: "partial"}
		ch <- domain.Chunk{Err: domain.NewProviderError(domain.CodeReadTimeout, "stream interrupted")}
	} else {
		ch <- domain.Chunk{TextDelta: "complete"}
		ch <- domain.Chunk{FinishReason: "stop"}
	}
	close(ch)
	return ch, nil
}

func TestStreamRestartsOnceOnMidStreamFailure(t *testing.T) {
	var calls []string
	factory := func(vendor catalog.Vendor, cred domain.Credential) (domain.ProtocolAdapter, error) {
		return &interruptedAdapter{
			vendor: string(vendor),
			label:  string(vendor) + "/" + cred.ID,
			calls:  &calls,
		}, nil
	}
	p := New(testCatalog(), factory,
		WithCredentials(catalog.VendorOpenAI,
			domain.Credential{ID: "oa-1", APIKey: "k1"},
			domain.Credential{ID: "oa-2", APIKey: "k2"}))

	ch, err := p.Stream(context.Background(), userText("hello"), domain.ProviderOptions{Model: "primary"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var text, finish string
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("unexpected error chunk: %v", chunk.Err)
		}
		text += chunk.TextDelta
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}
	if text != "partialcomplete" {
		t.Errorf("text = %q, want the replacement stream after the interruption", text)
	}
	if finish != "stop" {
		t.Errorf("finish reason = %q", finish)
	}
	if len(calls) != 2 {
		t.Errorf("stream openings = %v, want exactly one restart", calls)
	}
}

func TestStreamSurfacesSecondMidStreamFailure(t *testing.T) {
	factory := func(vendor catalog.Vendor, cred domain.Credential) (domain.ProtocolAdapter, error) {
		return &alwaysInterrupted{}, nil
	}
	p := New(testCatalog(), factory,
		WithCredentials(catalog.VendorOpenAI, domain.Credential{ID: "oa-1", APIKey: "k1"}))

	ch, err := p.Stream(context.Background(), userText("hello"), domain.ProviderOptions{Model: "primary"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var streamErr error
	for chunk := range ch {
		if chunk.Err != nil {
			streamErr = chunk.Err
		}
	}
	perr, ok := streamErr.(*domain.ProviderError)
	if !ok || perr.Code != domain.CodeReadTimeout {
		t.Fatalf("err = %v, want the second interruption surfaced", streamErr)
	}
}

type alwaysInterrupted struct{}

func (a *alwaysInterrupted) Vendor() string             { return "openai" }
func (a *alwaysInterrupted) RequiresFileDownload() bool { return false }

func (a *alwaysInterrupted) Complete(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (*domain.StructuredOutput, error) {
	return nil, domain.NewProviderError(domain.CodeUnknown, "not used")
}

func (a *alwaysInterrupted) Stream(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (<-chan domain.Chunk, error) {
	ch := make(chan domain.Chunk, 1)
	ch <- domain.Chunk{Err: domain.NewProviderError(domain.CodeReadTimeout, "stream interrupted")}
	close(ch)
	return ch, nil
}

func TestTenantProvidersTriedFirst(t *testing.T) {
	cipher, err := tenant.NewCipher([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	store := tenant.NewStore(cipher)
	sealed, err := store.Seal(domain.Credential{APIKey: "tenant-key"})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	store.SetProviders("acme", []tenant.ProviderConfig{
		{ID: "acme-openai", Vendor: catalog.VendorOpenAI, Sealed: sealed},
	})

	s := newScript()
	s.add("openai/acme-openai", okOutput("tenant served"), nil)

	p := newTestPipeline(s, WithTenantStore(store))
	out, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{
		Model:    "primary",
		TenantID: "acme",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Text != "tenant served" {
		t.Errorf("text = %q", out.Text)
	}
	if len(s.attempts) != 1 || s.attempts[0] != "openai/acme-openai" {
		t.Errorf("attempts = %v, want the tenant credential before the default pool", s.attempts)
	}
}

func TestTenantFailureFallsThroughToDefaults(t *testing.T) {
	cipher, err := tenant.NewCipher([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	store := tenant.NewStore(cipher)
	sealed, err := store.Seal(domain.Credential{APIKey: "tenant-key"})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	store.SetProviders("acme", []tenant.ProviderConfig{
		{ID: "acme-openai", Vendor: catalog.VendorOpenAI, Sealed: sealed},
	})

	s := newScript()
	s.add("openai/acme-openai", nil, domain.NewProviderError(domain.CodeInvalidProviderConfig, "revoked key"))
	s.add("openai/oa-1", okOutput("default served"), nil)

	p := newTestPipeline(s, WithTenantStore(store))
	out, err := p.Execute(context.Background(), userText("hello"), domain.ProviderOptions{
		Model:    "primary",
		TenantID: "acme",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Text != "default served" {
		t.Errorf("text = %q", out.Text)
	}
}

func TestAttemptCost(t *testing.T) {
	pricing := catalog.Pricing{InputPerMTok: 2, OutputPerMTok: 10, CachedPerMTok: 0.5, PerImage: 0.04}
	usage := domain.Usage{PromptTokens: 1_000_000, CachedTokens: 500_000, CompletionTokens: 100_000, Images: 2}
	got := attemptCost(pricing, usage)
	want := 0.5*2 + 0.5*0.5 + 0.1*10 + 2*0.04
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cost = %v, want %v", got, want)
	}
}
