// Package tokens provides client-side token counting for vendors that do
// not report authoritative usage. Counts produced here are marked estimated
// and never overwrite vendor-reported numbers.
package tokens

import (
	"encoding/json"
	"strings"

	"github.com/relayforge/relayforge/internal/domain"
)

// Counter estimates prompt tokens for a message list.
type Counter interface {
	Count(model string, messages []domain.Message, tools []domain.ToolDefinition) int
	SupportsModel(model string) bool
}

// Registry picks the first counter supporting a model, falling back to the
// character-heuristic estimator.
type Registry struct {
	counters []Counter
	fallback Counter
}

// NewRegistry creates a registry with the default estimator fallback.
func NewRegistry(counters ...Counter) *Registry {
	return &Registry{counters: counters, fallback: NewEstimator()}
}

// Count estimates prompt tokens for the model.
func (r *Registry) Count(model string, messages []domain.Message, tools []domain.ToolDefinition) int {
	for _, c := range r.counters {
		if c.SupportsModel(model) {
			return c.Count(model, messages, tools)
		}
	}
	return r.fallback.Count(model, messages, tools)
}

// CountText estimates tokens for a bare string using the same selection.
func (r *Registry) CountText(model, text string) int {
	msg := []domain.Message{domain.TextMessage(domain.RoleUser, text)}
	return r.Count(model, msg, nil)
}

// Estimator approximates token counts from character length. Four
// characters per token tracks most current vocabularies closely enough for
// accounting purposes.
type Estimator struct {
	CharsPerToken float64
}

// NewEstimator creates the default estimator.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

// Count estimates tokens for the message list.
func (e *Estimator) Count(model string, messages []domain.Message, tools []domain.ToolDefinition) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Role) + 4 // role plus separators
		for _, item := range m.Content {
			switch item.Kind {
			case domain.ContentKindText:
				chars += len(item.Text)
			case domain.ContentKindToolCall:
				chars += len(item.ToolCall.Name)
				if raw, err := json.Marshal(item.ToolCall.Input); err == nil {
					chars += len(raw)
				}
			case domain.ContentKindToolResult:
				if raw, err := json.Marshal(item.ToolResult.Value); err == nil {
					chars += len(raw)
				}
				chars += len(item.ToolResult.Error)
			}
		}
	}
	for _, t := range tools {
		chars += len(t.Name) + len(t.Description) + 50
	}
	return int(float64(chars) / e.CharsPerToken)
}

// SupportsModel always returns true; the estimator is the fallback.
func (e *Estimator) SupportsModel(model string) bool { return true }

// matchesPrefix reports whether model starts with any of the prefixes.
func matchesPrefix(model string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
