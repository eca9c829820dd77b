package catalog

import (
	"errors"
	"testing"
)

func TestGetKnownModel(t *testing.T) {
	c := Default()
	m, err := c.Get("gpt-4o")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(m.Providers) == 0 {
		t.Error("model has no providers")
	}
	if !m.SupportsStructuredOutput {
		t.Error("gpt-4o should support structured output")
	}
}

func TestGetUnknownModel(t *testing.T) {
	c := Default()
	_, err := c.Get("gpt-99-ultra")
	var unsupported *ErrUnsupportedModel
	if !errors.As(err, &unsupported) {
		t.Fatalf("err = %v, want ErrUnsupportedModel", err)
	}
	if unsupported.Model != "gpt-99-ultra" {
		t.Errorf("err model = %q", unsupported.Model)
	}
}

func TestLaterDuplicateWins(t *testing.T) {
	base := &ModelData{ID: "m", MaxOutputTokens: 100}
	override := &ModelData{ID: "m", MaxOutputTokens: 200}
	c := New(base, override)
	m, err := c.Get("m")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m.MaxOutputTokens != 200 {
		t.Errorf("max output = %d, want the override", m.MaxOutputTokens)
	}
}

func TestSatisfies(t *testing.T) {
	m := &ModelData{
		InputModalities:          []Modality{ModalityText, ModalityImage},
		SupportsStructuredOutput: false,
	}
	tests := []struct {
		name           string
		inputs         []Modality
		needStructured bool
		want           bool
	}{
		{"text only", []Modality{ModalityText}, false, true},
		{"text and image", []Modality{ModalityText, ModalityImage}, false, true},
		{"pdf unsupported", []Modality{ModalityPDF}, false, false},
		{"structured unsupported", []Modality{ModalityText}, true, false},
		{"no inputs", nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Satisfies(tt.inputs, tt.needStructured); got != tt.want {
				t.Errorf("Satisfies(%v, %v) = %v, want %v", tt.inputs, tt.needStructured, got, tt.want)
			}
		})
	}
}

func TestBuiltinFallbackTargetsExist(t *testing.T) {
	c := Default()
	for _, id := range c.IDs() {
		m, err := c.Get(id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		for category, target := range m.Fallback {
			if target == id {
				t.Errorf("%s: %s fallback points at itself", id, category)
			}
			if _, err := c.Get(target); err != nil {
				t.Errorf("%s: %s fallback target %q is not in the catalog", id, category, target)
			}
		}
	}
}

func TestBuiltinProvidersHaveVendors(t *testing.T) {
	known := map[Vendor]bool{
		VendorOpenAI: true, VendorAnthropic: true, VendorGoogle: true,
		VendorGroq: true, VendorMistral: true,
		VendorOpenAIImage: true, VendorGoogleImagen: true,
	}
	c := Default()
	for _, id := range c.IDs() {
		m, _ := c.Get(id)
		if len(m.Providers) == 0 {
			t.Errorf("%s has no providers", id)
		}
		for _, p := range m.Providers {
			if !known[p.Vendor] {
				t.Errorf("%s references unknown vendor %q", id, p.Vendor)
			}
		}
	}
}
