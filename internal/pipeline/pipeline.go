// Package pipeline turns one logical completion request into an ordered
// sequence of provider attempts, applying retry and model-fallback policy as
// attempts fail. It owns no protocol details; those live in the adapters.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/relayforge/relayforge/internal/catalog"
	"github.com/relayforge/relayforge/internal/domain"
	"github.com/relayforge/relayforge/internal/telemetry"
	"github.com/relayforge/relayforge/internal/tenant"
)

// Pipeline executes completion requests against the provider pool.
type Pipeline struct {
	catalog *catalog.Catalog
	factory AdapterFactory
	creds   map[catalog.Vendor][]domain.Credential
	tenants *tenant.Store
	metrics *telemetry.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	shuffle func(n int, swap func(i, j int))

	resolveFile FileResolver
}

// Option customizes a pipeline.
type Option func(*Pipeline)

// WithCredentials adds default credentials for a vendor. Order is the
// instance priority order within that vendor.
func WithCredentials(vendor catalog.Vendor, creds ...domain.Credential) Option {
	return func(p *Pipeline) {
		p.creds[vendor] = append(p.creds[vendor], creds...)
	}
}

// WithTenantStore enables tenant custom provider configs.
func WithTenantStore(store *tenant.Store) Option {
	return func(p *Pipeline) { p.tenants = store }
}

// WithMetrics installs the Prometheus collectors.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger installs the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithShuffle overrides the instance shuffling used for the round-robin
// vendor family. Tests install a deterministic one.
func WithShuffle(shuffle func(n int, swap func(i, j int))) Option {
	return func(p *Pipeline) { p.shuffle = shuffle }
}

// WithFileResolver overrides how URL-referenced files are downloaded for
// adapters that only accept inline payloads.
func WithFileResolver(resolve FileResolver) Option {
	return func(p *Pipeline) { p.resolveFile = resolve }
}

// New creates a pipeline over a catalog and adapter factory.
func New(cat *catalog.Catalog, factory AdapterFactory, opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog:     cat,
		factory:     factory,
		creds:       make(map[catalog.Vendor][]domain.Credential),
		logger:      slog.Default(),
		tracer:      otel.Tracer("relayforge/pipeline"),
		shuffle:     rand.Shuffle,
		resolveFile: HTTPFileResolver(nil),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs one non-streaming completion through the attempt sequence.
func (p *Pipeline) Execute(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (*domain.StructuredOutput, error) {
	out, _, err := p.run(ctx, messages, opts, false)
	return out, err
}

// Stream runs one streaming completion. Retry and fallback policy apply up
// to the point the stream opens. A retryable mid-stream failure restarts the
// selection once with a fresh stream; the caller may see the replacement
// stream's output from its beginning.
func (p *Pipeline) Stream(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions) (<-chan domain.Chunk, error) {
	_, ch, err := p.run(ctx, messages, opts, true)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.Chunk)
	go func() {
		defer close(out)
		restarted := false
		for {
			interrupted := false
			for chunk := range ch {
				if chunk.Err != nil && !restarted && midStreamRetryable(chunk.Err) && ctx.Err() == nil {
					restarted = true
					interrupted = true
					break
				}
				out <- chunk
			}
			if !interrupted {
				return
			}
			go drain(ch)
			_, next, err := p.run(ctx, messages, opts, true)
			if err != nil {
				out <- domain.Chunk{Err: err}
				return
			}
			ch = next
		}
	}()
	return out, nil
}

func midStreamRetryable(err error) bool {
	perr, ok := err.(*domain.ProviderError)
	if !ok {
		var target *domain.ProviderError
		if !errors.As(err, &target) {
			return false
		}
		perr = target
	}
	return perr.Retryable()
}

func drain(ch <-chan domain.Chunk) {
	for range ch {
	}
}

func (p *Pipeline) run(ctx context.Context, messages []domain.Message, opts domain.ProviderOptions, stream bool) (*domain.StructuredOutput, <-chan domain.Chunk, error) {
	requestID := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("model", opts.Model),
		))
	defer span.End()
	logger := p.logger.With(slog.String("request_id", requestID), slog.String("model", opts.Model))

	if opts.ForcedProvider != "" {
		return p.runForced(ctx, logger, messages, opts, stream)
	}

	needed := inputModalities(messages)

	// The first error recorded anywhere in the attempt sequence is the one
	// surfaced on exhaustion; later errors only steer fallback selection.
	var tracker errTracker
	visited := map[string]bool{opts.Model: true}
	fallbackCounted := false
	currentModel := opts.Model

	for {
		model, err := p.catalog.Get(currentModel)
		if err != nil {
			if tracker.first != nil {
				return nil, nil, tracker.first
			}
			return nil, nil, err
		}

		out, ch, attemptErr := p.tryModel(ctx, logger, &tracker, model, messages, opts, stream)
		if attemptErr == nil {
			return out, ch, nil
		}

		category, ok := attemptErr.FallbackCategory()
		if !ok {
			// A hard stop such as bad_request is the caller's answer even
			// when earlier providers failed with retryable errors. Only
			// exhaustion of retryable attempts surfaces the first error.
			if !attemptErr.TryNextProvider {
				return nil, nil, attemptErr
			}
			break
		}
		if opts.DisableFallback {
			break
		}
		next := p.nextFallback(model, category, opts.FallbackModels, visited, needed, opts)
		if next == "" {
			break
		}
		// Counted once per request even when the cascade is several models
		// deep; the interesting fact is that this request left its model.
		if !fallbackCounted {
			fallbackCounted = true
			if p.metrics != nil {
				p.metrics.FallbacksTotal.WithLabelValues(opts.Model, string(category)).Inc()
			}
		}
		logger.Warn("falling back to replacement model",
			slog.String("from", currentModel),
			slog.String("to", next),
			slog.String("category", string(category)))
		visited[next] = true
		currentModel = next
	}

	return nil, nil, tracker.first
}

// errTracker pins the first provider error seen during a request.
type errTracker struct {
	first *domain.ProviderError
}

func (t *errTracker) record(e *domain.ProviderError) {
	if t.first == nil {
		t.first = e
	}
}

// runForced skips selection and fallback entirely for an explicitly pinned
// provider instance.
func (p *Pipeline) runForced(ctx context.Context, logger *slog.Logger, messages []domain.Message, opts domain.ProviderOptions, stream bool) (*domain.StructuredOutput, <-chan domain.Chunk, error) {
	model, err := p.catalog.Get(opts.Model)
	if err != nil {
		return nil, nil, err
	}
	for _, entry := range model.Providers {
		for _, cred := range p.creds[entry.Vendor] {
			if cred.ID != opts.ForcedProvider && string(entry.Vendor) != opts.ForcedProvider {
				continue
			}
			out, ch, perr := p.attempt(ctx, logger, model, entry, cred, messages, opts, stream)
			if perr != nil {
				return nil, nil, perr
			}
			return out, ch, nil
		}
	}
	return nil, nil, domain.NewProviderError(domain.CodeInvalidProviderConfig,
		"forced provider "+opts.ForcedProvider+" is not configured for model "+opts.Model)
}

// tryModel walks one model's attempt sequence: tenant configs first, then
// the default pool in the model's declared vendor priority order.
func (p *Pipeline) tryModel(ctx context.Context, logger *slog.Logger, tracker *errTracker, model *catalog.ModelData, messages []domain.Message, opts domain.ProviderOptions, stream bool) (*domain.StructuredOutput, <-chan domain.Chunk, *domain.ProviderError) {
	var lastErr *domain.ProviderError

	if p.tenants != nil && opts.TenantID != "" {
		for _, cfg := range p.tenants.ProvidersFor(opts.TenantID) {
			entry, ok := providerEntryFor(model, cfg.Vendor)
			if !ok {
				continue
			}
			cred, err := p.tenants.Decrypt(cfg)
			if err != nil {
				logger.Error("tenant credential unusable", slog.String("config_id", cfg.ID), slog.Any("error", err))
				continue
			}
			out, ch, perr := p.attempt(ctx, logger, model, entry, cred, messages, opts, stream)
			if perr == nil {
				return out, ch, nil
			}
			lastErr = perr
			tracker.record(perr)
			if !perr.TryNextProvider {
				return nil, nil, lastErr
			}
		}
	}

	for _, entry := range model.Providers {
		creds := p.creds[entry.Vendor]
		if len(creds) == 0 {
			continue
		}
		order := make([]int, len(creds))
		for i := range order {
			order[i] = i
		}
		// Google throttles softly instead of returning an explicit 429, so
		// its instances are shuffled to spread load. Every other vendor
		// drains its first credential before touching the rest.
		if entry.Vendor == catalog.VendorGoogle {
			p.shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		for _, i := range order {
			out, ch, perr := p.attempt(ctx, logger, model, entry, creds[i], messages, opts, stream)
			if perr == nil {
				return out, ch, nil
			}
			lastErr = perr
			tracker.record(perr)
			if !perr.TryNextProvider {
				return nil, nil, lastErr
			}
		}
	}

	if lastErr == nil {
		lastErr = domain.NewProviderError(domain.CodeInvalidProviderConfig,
			"no provider configured for model "+model.ID)
		tracker.record(lastErr)
	}
	return nil, nil, lastErr
}

// attempt runs one provider instance, including the single structured-output
// downgrade retry when the first try fails on structured generation and the
// caller left the flag unforced.
func (p *Pipeline) attempt(ctx context.Context, logger *slog.Logger, model *catalog.ModelData, entry catalog.ProviderEntry, cred domain.Credential, messages []domain.Message, opts domain.ProviderOptions, stream bool) (*domain.StructuredOutput, <-chan domain.Chunk, *domain.ProviderError) {
	aopts := opts.Clone()
	aopts.Model = model.ID
	if alias := entry.Overrides["model"]; alias != "" {
		aopts.Model = alias
	}
	if baseURL := entry.Overrides["base_url"]; baseURL != "" && cred.BaseURL == "" {
		cred.BaseURL = baseURL
	}
	if version := entry.Overrides["api_version"]; version != "" {
		if cred.Extra == nil {
			cred.Extra = map[string]string{}
		}
		cred.Extra["api_version"] = version
	}

	instance, err := p.factory(entry.Vendor, cred)
	if err != nil {
		return nil, nil, domain.NewProviderError(domain.CodeInvalidProviderConfig, err.Error()).WithCause(err)
	}

	if instance.RequiresFileDownload() {
		if perr := p.inlineFiles(ctx, messages); perr != nil {
			return nil, nil, perr
		}
	}

	forced := opts.StructuredOutput != nil
	structured := aopts.StructuredEnabled(model.SupportsStructuredOutput)
	aopts.StructuredOutput = &structured

	out, ch, perr := p.invoke(ctx, instance, model, entry, messages, aopts, stream)
	if perr != nil && perr.Code == domain.CodeStructuredGeneration && structured && !forced {
		logger.Info("retrying without structured output",
			slog.String("vendor", string(entry.Vendor)),
			slog.String("provider", cred.Label(string(entry.Vendor))))
		downgraded := false
		aopts.StructuredOutput = &downgraded
		out, ch, perr = p.invoke(ctx, instance, model, entry, messages, aopts, stream)
	}
	if perr != nil {
		logger.Warn("provider attempt failed",
			slog.String("vendor", string(entry.Vendor)),
			slog.String("provider", cred.Label(string(entry.Vendor))),
			slog.String("code", string(perr.Code)),
			slog.Bool("try_next", perr.TryNextProvider))
		return nil, nil, perr
	}
	return out, ch, nil
}

func (p *Pipeline) invoke(ctx context.Context, instance domain.ProtocolAdapter, model *catalog.ModelData, entry catalog.ProviderEntry, messages []domain.Message, aopts domain.ProviderOptions, stream bool) (*domain.StructuredOutput, <-chan domain.Chunk, *domain.ProviderError) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if p.metrics != nil {
			p.metrics.AttemptsTotal.WithLabelValues(string(entry.Vendor), model.ID, outcome).Inc()
			p.metrics.AttemptDuration.WithLabelValues(string(entry.Vendor), model.ID).Observe(time.Since(start).Seconds())
		}
	}()

	if stream {
		ch, err := instance.Stream(ctx, messages, aopts)
		if err != nil {
			outcome = "error"
			return nil, nil, asProviderError(err)
		}
		return nil, ch, nil
	}

	out, err := instance.Complete(ctx, messages, aopts)
	if err != nil {
		outcome = "error"
		return nil, nil, asProviderError(err)
	}
	out.Usage.Cost = attemptCost(entry.Pricing, out.Usage)
	if p.metrics != nil {
		p.metrics.TokensTotal.WithLabelValues(model.ID, "prompt").Add(float64(out.Usage.PromptTokens))
		p.metrics.TokensTotal.WithLabelValues(model.ID, "completion").Add(float64(out.Usage.CompletionTokens))
	}
	return out, nil, nil
}

// nextFallback resolves the replacement model for an error category. An
// explicit caller-supplied candidate list overrides the catalog policy.
func (p *Pipeline) nextFallback(model *catalog.ModelData, category domain.FallbackCategory, candidates []string, visited map[string]bool, needed []catalog.Modality, opts domain.ProviderOptions) string {
	// A nil flag with a schema present still infers structured mode, so the
	// replacement must be structured-capable in that case too.
	needStructured := opts.StructuredEnabled(true)
	pick := func(id string) bool {
		if id == "" || visited[id] {
			return false
		}
		m, err := p.catalog.Get(id)
		if err != nil {
			return false
		}
		return m.Satisfies(needed, needStructured)
	}

	if len(candidates) > 0 {
		for _, id := range candidates {
			if pick(id) {
				return id
			}
		}
		return ""
	}
	if id := model.Fallback[category]; pick(id) {
		return id
	}
	return ""
}

func (p *Pipeline) inlineFiles(ctx context.Context, messages []domain.Message) *domain.ProviderError {
	for _, m := range messages {
		for _, item := range m.Content {
			if item.Kind != domain.ContentKindFile || item.File.Data != "" {
				continue
			}
			if err := p.resolveFile(ctx, item.File); err != nil {
				return domain.NewProviderError(domain.CodeInvalidFile,
					"downloading file for inline-only provider").WithCause(err).WithCapture(false)
			}
		}
	}
	return nil
}

func providerEntryFor(model *catalog.ModelData, vendor catalog.Vendor) (catalog.ProviderEntry, bool) {
	for _, entry := range model.Providers {
		if entry.Vendor == vendor {
			return entry, true
		}
	}
	return catalog.ProviderEntry{}, false
}

func inputModalities(messages []domain.Message) []catalog.Modality {
	seen := map[catalog.Modality]bool{catalog.ModalityText: true}
	for _, m := range messages {
		for _, item := range m.Content {
			if item.Kind != domain.ContentKindFile {
				continue
			}
			switch {
			case item.File.IsImage():
				seen[catalog.ModalityImage] = true
			case item.File.IsAudio():
				seen[catalog.ModalityAudio] = true
			case item.File.IsPDF():
				seen[catalog.ModalityPDF] = true
			}
		}
	}
	out := make([]catalog.Modality, 0, len(seen))
	for mod := range seen {
		out = append(out, mod)
	}
	return out
}

func attemptCost(pricing catalog.Pricing, usage domain.Usage) float64 {
	cost := float64(usage.PromptTokens-usage.CachedTokens)/1e6*pricing.InputPerMTok +
		float64(usage.CachedTokens)/1e6*pricing.CachedPerMTok +
		float64(usage.CompletionTokens)/1e6*pricing.OutputPerMTok +
		float64(usage.Images)*pricing.PerImage
	if cost < 0 {
		return 0
	}
	return cost
}

func asProviderError(err error) *domain.ProviderError {
	if perr, ok := err.(*domain.ProviderError); ok {
		return perr
	}
	return domain.NewProviderError(domain.CodeUnknown, "provider attempt failed").WithCause(err)
}
