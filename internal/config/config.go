// Package config loads pipeline configuration from an optional YAML file
// overlaid with RELAYFORGE_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "RELAYFORGE_"

// Config is the full process configuration.
type Config struct {
	Providers ProvidersConfig `koanf:"providers"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Tenant    TenantConfig    `koanf:"tenant"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	HTTP      HTTPConfig      `koanf:"http"`
}

// ProvidersConfig holds the default credential pool, keyed by vendor.
type ProvidersConfig struct {
	OpenAI       []CredentialConfig `koanf:"openai"`
	Anthropic    []CredentialConfig `koanf:"anthropic"`
	Google       []CredentialConfig `koanf:"google"`
	Groq         []CredentialConfig `koanf:"groq"`
	Mistral      []CredentialConfig `koanf:"mistral"`
	OpenAIImage  []CredentialConfig `koanf:"openai_image"`
	GoogleImagen []CredentialConfig `koanf:"google_imagen"`
}

// CredentialConfig is one provider instance.
type CredentialConfig struct {
	ID      string            `koanf:"id"`
	APIKey  string            `koanf:"api_key"`
	BaseURL string            `koanf:"base_url"`
	Extra   map[string]string `koanf:"extra"`
}

// PipelineConfig holds request-level defaults.
type PipelineConfig struct {
	DefaultTimeout  time.Duration `koanf:"default_timeout"`
	DisableFallback bool          `koanf:"disable_fallback"`
}

// TenantConfig holds the credential sealing key.
type TenantConfig struct {
	// EncryptionKey is hex-free raw-string keyed material; must be 16, 24,
	// or 32 bytes when tenant custom providers are enabled.
	EncryptionKey string `koanf:"encryption_key"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	ServiceName string `koanf:"service_name"`
	Enabled     bool   `koanf:"enabled"`
}

// HTTPConfig tunes the shared outbound HTTP pool.
type HTTPConfig struct {
	ConnectTimeout        time.Duration `koanf:"connect_timeout"`
	ResponseHeaderTimeout time.Duration `koanf:"response_header_timeout"`
	MaxIdleConnsPerHost   int           `koanf:"max_idle_conns_per_host"`
}

// Load reads configuration. A .env file in the working directory is applied
// first, then the YAML file at path (if non-empty), then environment
// variables, which win.
func Load(path string) (*Config, error) {
	// Missing .env is the common case, not an error.
	_ = godotenv.Load()

	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{
		Pipeline: PipelineConfig{
			DefaultTimeout: 2 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "relayforge",
		},
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
