package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Query and index Prometheus metrics.
var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "semdex",
			Name:      "queries_total",
			Help:      "Total number of executed queries",
		},
		[]string{"status"}, // "ok" / "rejected" / "error"
	)

	QueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "semdex",
			Name:      "query_duration_seconds",
			Help:      "Query execution duration in seconds, snapshot load included",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	QueryMatches = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "semdex",
			Name:      "query_matches",
			Help:      "Number of items matched per query before pagination",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "semdex",
			Name:      "validations_total",
			Help:      "Descriptor validations by outcome",
		},
		[]string{"result"}, // "valid" / "invalid"
	)

	ItemOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "semdex",
			Name:      "item_operations_total",
			Help:      "Item write operations by kind and outcome",
		},
		[]string{"op", "status"},
	)
)

var registerOnce sync.Once

// RegisterQueryMetrics registers query and index metrics. Must be called once from main.
func RegisterQueryMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(QueriesTotal)
		prometheus.MustRegister(QueryDuration)
		prometheus.MustRegister(QueryMatches)
		prometheus.MustRegister(ValidationsTotal)
		prometheus.MustRegister(ItemOperationsTotal)
	})
}

// ObserveValidation counts one validation outcome.
func ObserveValidation(valid bool) {
	if valid {
		ValidationsTotal.WithLabelValues("valid").Inc()
		return
	}
	ValidationsTotal.WithLabelValues("invalid").Inc()
}

// ObserveItemOp counts one item write.
func ObserveItemOp(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ItemOperationsTotal.WithLabelValues(op, status).Inc()
}
