package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tripvault"

var (
	expenseMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expense_mutations_total",
		Help:      "Successful expense mutations by action.",
	}, []string{"action"})

	validationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validation_failures_total",
		Help:      "Rejected ledger inputs by field.",
	}, []string{"field"})

	publishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_publish_failures_total",
		Help:      "Expense events that could not be published.",
	}, []string{"action"})

	aggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "aggregation_duration_seconds",
		Help:      "Time spent computing statistics, balances and settlement plans.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"kind"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"method", "route", "status"})
)

func ExpenseMutation(action string) {
	expenseMutations.WithLabelValues(action).Inc()
}

func ValidationFailure(field string) {
	if field == "" {
		field = "unknown"
	}
	validationFailures.WithLabelValues(field).Inc()
}

func PublishFailure(action string) {
	publishFailures.WithLabelValues(action).Inc()
}

// ObserveAggregation records the time since start under kind.
func ObserveAggregation(kind string, start time.Time) {
	aggregationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func HTTPRequest(method, route, status string) {
	httpRequests.WithLabelValues(method, route, status).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
