package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Vector index and retrieval metrics.
var (
	IndexRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_requests_total",
			Help:      "Total number of vector index queries",
		},
		[]string{"backend", "status"},
	)

	IndexRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_request_duration_seconds",
			Help:      "Vector index query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"backend"},
	)

	RetrievalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Retrieval operations by outcome kind",
		},
		[]string{"kind"},
	)

	RetrievalMatches = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_matches",
			Help:      "Number of matches returned per retrieval",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	// RetrievalAnomaliesTotal counts raw index entries dropped for a missing id or score.
	RetrievalAnomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_anomalies_total",
			Help:      "Index entries dropped during retrieval",
		},
		[]string{"reason"},
	)
)

var retrievalOnce sync.Once

// RegisterRetrievalMetrics registers index and retrieval metrics on the default registry.
func RegisterRetrievalMetrics() {
	retrievalOnce.Do(func() {
		prometheus.MustRegister(
			IndexRequestsTotal,
			IndexRequestDuration,
			RetrievalsTotal,
			RetrievalMatches,
			RetrievalAnomaliesTotal,
		)
	})
}
