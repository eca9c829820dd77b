// Command relayforge runs a single completion through the translation and
// fallback core. It exists for smoke-testing configured credentials and
// model routes from a shell.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/relayforge/relayforge/internal/catalog"
	"github.com/relayforge/relayforge/internal/config"
	"github.com/relayforge/relayforge/internal/httpx"
	"github.com/relayforge/relayforge/internal/pipeline"
	"github.com/relayforge/relayforge/internal/telemetry"
	"github.com/relayforge/relayforge/internal/tokens"
	"github.com/relayforge/relayforge/pkg/completion"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	model := flag.String("model", "gpt-4o-mini", "logical model id from the catalog")
	stream := flag.Bool("stream", false, "stream the completion instead of waiting for the final output")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	prompt, err := readPrompt(flag.Args())
	if err != nil {
		log.Fatalf("Failed to read prompt: %v", err)
	}

	httpClient := httpx.NewClient(httpOptions(cfg.HTTP))
	counter := tokens.NewRegistry(tokens.NewTiktokenCounter())

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(telemetry.NewMetrics(prometheus.NewRegistry())),
	}
	for vendor, creds := range cfg.Providers.Credentials() {
		opts = append(opts, pipeline.WithCredentials(vendor, creds...))
	}
	p := pipeline.New(catalog.Default(), pipeline.NewAdapterFactory(httpClient, counter), opts...)

	svc, err := completion.New(p, logger)
	if err != nil {
		log.Fatalf("Failed to create completion service: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := completion.Request{
		Stored: []completion.StoredMessage{
			{Role: "user", Items: []completion.StoredItem{{Text: prompt}}},
		},
		Options: completion.ProviderOptions{
			Model:   *model,
			Timeout: cfg.Pipeline.DefaultTimeout,
		},
	}

	if *stream {
		if err := runStream(ctx, svc, req); err != nil {
			log.Fatalf("Stream failed: %v", err)
		}
		return
	}

	out, err := svc.Complete(ctx, req)
	if err != nil {
		log.Fatalf("Completion failed: %v", err)
	}
	fmt.Println(out.Text)
	logger.Info("completion finished",
		slog.String("model", out.Model),
		slog.String("provider", out.Provider),
		slog.Int("prompt_tokens", out.Usage.PromptTokens),
		slog.Int("completion_tokens", out.Usage.CompletionTokens))
}

func runStream(ctx context.Context, svc *completion.Service, req completion.Request) error {
	chunks, err := svc.Stream(ctx, req)
	if err != nil {
		return err
	}
	for ch := range chunks {
		if ch.Err != nil {
			return ch.Err
		}
		fmt.Print(ch.TextDelta)
	}
	fmt.Println()
	return nil
}

func readPrompt(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	var prompt string
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		prompt += scanner.Text() + "\n"
	}
	return prompt, scanner.Err()
}

func httpOptions(cfg config.HTTPConfig) httpx.Options {
	opts := httpx.DefaultOptions()
	if cfg.ConnectTimeout > 0 {
		opts.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.ResponseHeaderTimeout > 0 {
		opts.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout
	}
	if cfg.MaxIdleConnsPerHost > 0 {
		opts.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	return opts
}
