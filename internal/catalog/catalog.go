// Package catalog is the read-only model capability table consumed by the
// pipeline and adapters. It maps a logical model identifier to modalities,
// limits, per-provider configuration, and the fallback policy applied when a
// model-level error category is hit.
package catalog

import (
	"fmt"

	"github.com/relayforge/relayforge/internal/domain"
)

// Vendor identifies a protocol adapter family.
type Vendor string

const (
	VendorOpenAI       Vendor = "openai"
	VendorAnthropic    Vendor = "anthropic"
	VendorGoogle       Vendor = "google"
	VendorGroq         Vendor = "groq"
	VendorMistral      Vendor = "mistral"
	VendorOpenAIImage  Vendor = "openai-image"
	VendorGoogleImagen Vendor = "google-imagen"
)

// Modality is an input or output media type a model supports.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityImage Modality = "image"
	ModalityAudio Modality = "audio"
	ModalityPDF   Modality = "pdf"
)

// Pricing is the per-million-token price for one provider of a model.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
	CachedPerMTok float64
	PerImage      float64
}

// ProviderEntry is one (vendor, overrides) pair in a model's priority list.
type ProviderEntry struct {
	Vendor Vendor
	// Overrides are vendor-specific request tweaks (api version, upstream
	// model alias, base URL) applied when this entry is attempted.
	Overrides map[string]string
	Pricing   Pricing
}

// FallbackPolicy maps an error category to a replacement model id. A missing
// key means no fallback for that category.
type FallbackPolicy map[domain.FallbackCategory]string

// ModelData is the immutable static record for one logical model.
type ModelData struct {
	ID                       string
	InputModalities          []Modality
	OutputModalities         []Modality
	SupportsStructuredOutput bool
	SupportsTools            bool
	MaxContextTokens         int
	MaxOutputTokens          int
	Providers                []ProviderEntry
	Fallback                 FallbackPolicy
}

// SupportsInput reports whether the model accepts the given input modality.
func (m *ModelData) SupportsInput(mod Modality) bool {
	for _, im := range m.InputModalities {
		if im == mod {
			return true
		}
	}
	return false
}

// SupportsOutput reports whether the model can produce the given modality.
func (m *ModelData) SupportsOutput(mod Modality) bool {
	for _, om := range m.OutputModalities {
		if om == mod {
			return true
		}
	}
	return false
}

// Satisfies reports whether the model can serve a request needing the given
// input modalities, and structured output when required.
func (m *ModelData) Satisfies(inputs []Modality, needStructured bool) bool {
	for _, mod := range inputs {
		if !m.SupportsInput(mod) {
			return false
		}
	}
	if needStructured && !m.SupportsStructuredOutput {
		return false
	}
	return true
}

// ErrUnsupportedModel is returned by Get for unknown model ids.
type ErrUnsupportedModel struct{ Model string }

func (e *ErrUnsupportedModel) Error() string {
	return fmt.Sprintf("unsupported model: %s", e.Model)
}

// Catalog looks up model data by logical id.
type Catalog struct {
	models map[string]*ModelData
}

// New builds a catalog from model records. Later duplicates win, letting a
// host application layer overrides on top of the built-in table.
func New(models ...*ModelData) *Catalog {
	c := &Catalog{models: make(map[string]*ModelData, len(models))}
	for _, m := range models {
		c.models[m.ID] = m
	}
	return c
}

// Default returns a catalog seeded with the built-in model table.
func Default() *Catalog {
	return New(builtinModels()...)
}

// Get returns the record for a model id.
func (c *Catalog) Get(modelID string) (*ModelData, error) {
	m, ok := c.models[modelID]
	if !ok {
		return nil, &ErrUnsupportedModel{Model: modelID}
	}
	return m, nil
}

// IDs returns all known model ids.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.models))
	for id := range c.models {
		ids = append(ids, id)
	}
	return ids
}
