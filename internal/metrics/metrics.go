// Package metrics exposes Prometheus collectors for embedding, indexing and search.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every Tasklens collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	embedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklens_embed_requests_total",
			Help: "Embedding provider calls by provider and status",
		},
		[]string{"provider", "status"},
	)
	embedDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tasklens_embed_duration_seconds",
			Help:    "Latency of embedding provider calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"provider"},
	)
	indexOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklens_index_operations_total",
			Help: "Index maintenance operations by outcome (indexed, removed, skipped, failed)",
		},
		[]string{"outcome"},
	)
	searchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklens_search_requests_total",
			Help: "Similarity searches by status",
		},
		[]string{"status"},
	)
	searchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tasklens_search_duration_seconds",
			Help:    "End-to-end latency of similarity searches",
			Buckets: prometheus.DefBuckets,
		},
	)
	searchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tasklens_search_results",
			Help:    "Number of results returned per search",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)
)

func init() {
	Registry.MustRegister(
		embedRequests, embedDuration, indexOutcomes,
		searchRequests, searchDuration, searchResults,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveEmbed records one provider call.
func ObserveEmbed(provider string, err error, d time.Duration) {
	embedRequests.WithLabelValues(provider, status(err)).Inc()
	embedDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveIndex records the outcome of one index or cleanup operation.
func ObserveIndex(outcome string) {
	indexOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveSearch records one search.
func ObserveSearch(err error, results int, d time.Duration) {
	searchRequests.WithLabelValues(status(err)).Inc()
	searchDuration.Observe(d.Seconds())
	if err == nil {
		searchResults.Observe(float64(results))
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
