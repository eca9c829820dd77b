package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the completion core.
type Metrics struct {
	AttemptsTotal   *prometheus.CounterVec
	FallbacksTotal  *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	TokensTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors. Pass a dedicated registry
// in tests; prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayforge",
			Name:      "provider_attempts_total",
			Help:      "Provider attempts by vendor, model, and outcome.",
		}, []string{"vendor", "model", "outcome"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayforge",
			Name:      "model_fallbacks_total",
			Help:      "Model fallback activations by source model and error category.",
		}, []string{"model", "category"}),
		AttemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relayforge",
			Name:      "provider_attempt_duration_seconds",
			Help:      "Wall time of one provider attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"vendor", "model"}),
		TokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayforge",
			Name:      "tokens_total",
			Help:      "Token consumption by model and direction.",
		}, []string{"model", "direction"}),
	}
	reg.MustRegister(m.AttemptsTotal, m.FallbacksTotal, m.AttemptDuration, m.TokensTotal)
	return m
}
