package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ingestion, generation and streaming Prometheus metrics.
var (
	IngestDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragstream",
			Name:      "ingest_documents_total",
			Help:      "Total number of ingested documents",
		},
		[]string{"status"}, // "success" / "partial" / "error"
	)

	IngestChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragstream",
			Name:      "ingest_chunks_total",
			Help:      "Total number of chunks stored",
		},
	)

	GenerationTokensStreamed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ragstream",
			Name:      "generation_tokens_streamed_total",
			Help:      "Total number of completion deltas forwarded to clients",
		},
	)

	GenerationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragstream",
			Name:      "generation_errors_total",
			Help:      "Total completion failures",
		},
		[]string{"stage"}, // "open" / "stream"
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ragstream",
			Name:      "generation_duration_seconds",
			Help:      "Time from opening the completion stream to its end",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	StreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragstream",
			Name:      "stream_events_total",
			Help:      "Total framed events written to response bodies",
		},
		[]string{"framing", "type"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers ingestion, generation and stream metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(IngestDocumentsTotal)
	prometheus.MustRegister(IngestChunksTotal)
	prometheus.MustRegister(GenerationTokensStreamed)
	prometheus.MustRegister(GenerationErrorsTotal)
	prometheus.MustRegister(GenerationDuration)
	prometheus.MustRegister(StreamEventsTotal)
	pipelineMetricsRegistered = true
}
