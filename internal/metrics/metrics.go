// Package metrics exposes Wisp's internal counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReactionsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wisp_reactions_emitted_total",
			Help: "Companion lines emitted, by source (template, model, summary)",
		},
		[]string{"source"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wisp_response_cache_hits_total",
			Help: "Chat replies served from the response cache",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wisp_response_cache_misses_total",
			Help: "Cache lookups that fell through to the model",
		},
	)

	ChatFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wisp_chat_failures_total",
			Help: "Chat invocations that failed after fallback",
		},
	)

	InferenceLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "wisp_inference_latency_seconds",
			Help: "Model round-trip latency in seconds",
		},
	)

	MemoryOperations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wisp_memory_operations_total",
			Help: "Memory store mutations",
		},
	)
)
