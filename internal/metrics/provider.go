package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Provider operations.
const (
	OpEmbed    = "embed"
	OpComplete = "complete"
)

// Provider call, token spend and budget metrics.
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragstream",
			Name:      "provider_requests_total",
			Help:      "Provider API requests by operation and outcome",
		},
		[]string{"operation", "model", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragstream",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider request duration; for completions until the stream ends",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation", "model"},
	)

	ProviderErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragstream",
			Name:      "provider_errors_total",
			Help:      "Provider failures by cause",
		},
		[]string{"operation", "model", "error_type"},
	)

	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragstream",
			Name:      "tokens_total",
			Help:      "Provider tokens spent per pipeline stage",
		},
		[]string{"stage", "kind"},
	)

	BudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ragstream",
			Name:      "budget_tokens_remaining",
			Help:      "Tokens left in the current budget window",
		},
		[]string{"period"},
	)

	BudgetRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragstream",
			Name:      "budget_rejections_total",
			Help:      "Provider calls refused because a budget window is spent",
		},
		[]string{"stage"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragstream",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var providerOnce sync.Once

// RegisterProviderMetrics registers provider, token and budget metrics with the default registry.
func RegisterProviderMetrics() {
	providerOnce.Do(func() {
		prometheus.MustRegister(
			ProviderRequestsTotal,
			ProviderRequestDuration,
			ProviderErrorsTotal,
			TokensTotal,
			BudgetTokensRemaining,
			BudgetRejectionsTotal,
			EmbeddingCacheTotal,
		)
	})
}
