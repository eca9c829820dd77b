package catalog

import "github.com/relayforge/relayforge/internal/domain"

// builtinModels is the static capability table. Pricing is per million
// tokens. The provider list order is the pipeline's attempt order.
func builtinModels() []*ModelData {
	return []*ModelData{
		{
			ID:                       "gpt-4o",
			InputModalities:          []Modality{ModalityText, ModalityImage, ModalityAudio},
			OutputModalities:         []Modality{ModalityText},
			SupportsStructuredOutput: true,
			SupportsTools:            true,
			MaxContextTokens:         128000,
			MaxOutputTokens:          16384,
			Providers: []ProviderEntry{
				{Vendor: VendorOpenAI, Pricing: Pricing{InputPerMTok: 2.5, OutputPerMTok: 10, CachedPerMTok: 1.25}},
			},
			Fallback: FallbackPolicy{
				domain.FallbackAvailability: "gpt-4o-mini",
				domain.FallbackUnknown:      "gpt-4o-mini",
			},
		},
		{
			ID:                       "gpt-4o-mini",
			InputModalities:          []Modality{ModalityText, ModalityImage},
			OutputModalities:         []Modality{ModalityText},
			SupportsStructuredOutput: true,
			SupportsTools:            true,
			MaxContextTokens:         128000,
			MaxOutputTokens:          16384,
			Providers: []ProviderEntry{
				{Vendor: VendorOpenAI, Pricing: Pricing{InputPerMTok: 0.15, OutputPerMTok: 0.6}},
			},
		},
		{
			ID:                       "claude-sonnet-4",
			InputModalities:          []Modality{ModalityText, ModalityImage, ModalityPDF},
			OutputModalities:         []Modality{ModalityText},
			SupportsStructuredOutput: true,
			SupportsTools:            true,
			MaxContextTokens:         200000,
			MaxOutputTokens:          64000,
			Providers: []ProviderEntry{
				{Vendor: VendorAnthropic, Pricing: Pricing{InputPerMTok: 3, OutputPerMTok: 15, CachedPerMTok: 0.3}},
				{Vendor: VendorGoogle, Overrides: map[string]string{"model": "claude-sonnet-4@vertex"}, Pricing: Pricing{InputPerMTok: 3, OutputPerMTok: 15}},
			},
			Fallback: FallbackPolicy{
				domain.FallbackModeration:           "gpt-4o",
				domain.FallbackStructuredGeneration: "gpt-4o",
				domain.FallbackContextExceeded:      "gemini-2.5-pro",
				domain.FallbackAvailability:         "claude-haiku-4",
				domain.FallbackUnknown:              "gpt-4o",
			},
		},
		{
			ID:                       "claude-haiku-4",
			InputModalities:          []Modality{ModalityText, ModalityImage},
			OutputModalities:         []Modality{ModalityText},
			SupportsStructuredOutput: true,
			SupportsTools:            true,
			MaxContextTokens:         200000,
			MaxOutputTokens:          32000,
			Providers: []ProviderEntry{
				{Vendor: VendorAnthropic, Pricing: Pricing{InputPerMTok: 0.8, OutputPerMTok: 4}},
			},
		},
		{
			ID:                       "gemini-2.5-pro",
			InputModalities:          []Modality{ModalityText, ModalityImage, ModalityAudio, ModalityPDF},
			OutputModalities:         []Modality{ModalityText},
			SupportsStructuredOutput: true,
			SupportsTools:            true,
			MaxContextTokens:         1048576,
			MaxOutputTokens:          65536,
			Providers: []ProviderEntry{
				{Vendor: VendorGoogle, Pricing: Pricing{InputPerMTok: 1.25, OutputPerMTok: 10}},
			},
			Fallback: FallbackPolicy{
				domain.FallbackAvailability: "gemini-2.5-flash",
			},
		},
		{
			ID:               "gemini-2.5-flash",
			InputModalities:  []Modality{ModalityText, ModalityImage, ModalityAudio},
			OutputModalities: []Modality{ModalityText},
			SupportsTools:    true,
			MaxContextTokens: 1048576,
			MaxOutputTokens:  65536,
			Providers: []ProviderEntry{
				{Vendor: VendorGoogle, Pricing: Pricing{InputPerMTok: 0.3, OutputPerMTok: 2.5}},
			},
		},
		{
			ID:                       "llama-3.3-70b",
			InputModalities:          []Modality{ModalityText},
			OutputModalities:         []Modality{ModalityText},
			SupportsStructuredOutput: true,
			SupportsTools:            true,
			MaxContextTokens:         131072,
			MaxOutputTokens:          32768,
			Providers: []ProviderEntry{
				{Vendor: VendorGroq, Overrides: map[string]string{"model": "llama-3.3-70b-versatile"}, Pricing: Pricing{InputPerMTok: 0.59, OutputPerMTok: 0.79}},
			},
			Fallback: FallbackPolicy{
				domain.FallbackStructuredGeneration: "gpt-4o-mini",
				domain.FallbackAvailability:         "mistral-large",
			},
		},
		{
			ID:                       "mistral-large",
			InputModalities:          []Modality{ModalityText},
			OutputModalities:         []Modality{ModalityText},
			SupportsStructuredOutput: true,
			SupportsTools:            true,
			MaxContextTokens:         131072,
			MaxOutputTokens:          32768,
			Providers: []ProviderEntry{
				{Vendor: VendorMistral, Overrides: map[string]string{"model": "mistral-large-latest"}, Pricing: Pricing{InputPerMTok: 2, OutputPerMTok: 6}},
			},
		},
		{
			ID:               "gpt-image-1",
			InputModalities:  []Modality{ModalityText},
			OutputModalities: []Modality{ModalityImage},
			MaxOutputTokens:  0,
			Providers: []ProviderEntry{
				{Vendor: VendorOpenAIImage, Pricing: Pricing{PerImage: 0.04}},
			},
			Fallback: FallbackPolicy{
				domain.FallbackModeration: "imagen-3",
			},
		},
		{
			ID:               "imagen-3",
			InputModalities:  []Modality{ModalityText},
			OutputModalities: []Modality{ModalityImage},
			Providers: []ProviderEntry{
				{Vendor: VendorGoogleImagen, Overrides: map[string]string{"model": "imagen-3.0-generate-002"}, Pricing: Pricing{PerImage: 0.03}},
			},
		},
	}
}
