package config

import (
	"github.com/relayforge/relayforge/internal/catalog"
	"github.com/relayforge/relayforge/internal/domain"
)

// Credentials converts the configured provider pool into the pipeline's
// vendor-keyed credential map. Vendors with no configured instances are
// absent from the map.
func (p ProvidersConfig) Credentials() map[catalog.Vendor][]domain.Credential {
	out := make(map[catalog.Vendor][]domain.Credential)
	add := func(vendor catalog.Vendor, configs []CredentialConfig) {
		for _, c := range configs {
			out[vendor] = append(out[vendor], domain.Credential{
				ID:      c.ID,
				APIKey:  c.APIKey,
				BaseURL: c.BaseURL,
				Extra:   c.Extra,
			})
		}
	}
	add(catalog.VendorOpenAI, p.OpenAI)
	add(catalog.VendorAnthropic, p.Anthropic)
	add(catalog.VendorGoogle, p.Google)
	add(catalog.VendorGroq, p.Groq)
	add(catalog.VendorMistral, p.Mistral)
	add(catalog.VendorOpenAIImage, p.OpenAIImage)
	add(catalog.VendorGoogleImagen, p.GoogleImagen)
	return out
}
