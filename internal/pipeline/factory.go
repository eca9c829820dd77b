package pipeline

import (
	"fmt"
	"net/http"

	"github.com/relayforge/relayforge/internal/adapter/anthropic"
	"github.com/relayforge/relayforge/internal/adapter/google"
	"github.com/relayforge/relayforge/internal/adapter/googleimagen"
	"github.com/relayforge/relayforge/internal/adapter/groq"
	"github.com/relayforge/relayforge/internal/adapter/mistral"
	"github.com/relayforge/relayforge/internal/adapter/openai"
	"github.com/relayforge/relayforge/internal/adapter/openaiimage"
	"github.com/relayforge/relayforge/internal/catalog"
	"github.com/relayforge/relayforge/internal/domain"
	"github.com/relayforge/relayforge/internal/tokens"
)

// AdapterFactory builds a protocol adapter for one vendor and credential.
// The pipeline calls it once per attempt; factories should be cheap and hold
// no per-request state.
type AdapterFactory func(vendor catalog.Vendor, cred domain.Credential) (domain.ProtocolAdapter, error)

// NewAdapterFactory returns the standard factory covering every built-in
// vendor. httpClient is the shared pool; counter backfills usage for vendors
// that under-report it.
func NewAdapterFactory(httpClient *http.Client, counter *tokens.Registry) AdapterFactory {
	return func(vendor catalog.Vendor, cred domain.Credential) (domain.ProtocolAdapter, error) {
		switch vendor {
		case catalog.VendorOpenAI:
			return openai.New(cred, httpClient), nil
		case catalog.VendorAnthropic:
			return anthropic.New(cred, httpClient), nil
		case catalog.VendorGoogle:
			return google.New(cred, httpClient, counter), nil
		case catalog.VendorGroq:
			return groq.New(cred, httpClient), nil
		case catalog.VendorMistral:
			return mistral.New(cred, httpClient), nil
		case catalog.VendorOpenAIImage:
			return openaiimage.New(cred, httpClient), nil
		case catalog.VendorGoogleImagen:
			return googleimagen.New(cred, httpClient), nil
		default:
			return nil, fmt.Errorf("no adapter for vendor %q", vendor)
		}
	}
}
