package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HuntQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_hunt_queries_total",
			Help: "Total number of hunt query attempts by outcome",
		},
		[]string{"status"},
	)

	HuntQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_hunt_query_duration_seconds",
			Help:    "End-to-end hunt query latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	HuntRowsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_hunt_rows_returned",
			Help:    "Rows returned per hunt query after capping",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	SavedQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "argus_saved_queries_total",
			Help: "Total number of saved hunt queries created",
		},
	)
)
