package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(backendRequestsTotal, backendRequestDuration) }

var (
	// op: list_plans|create_order|verify; result: ok|rejected|network
	backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Requests to the fitness-center backend by operation and result.",
		},
		[]string{"op", "result"},
	)

	backendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend request latency in seconds.",
			Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"op", "code"},
	)
)

func ObserveBackendRequest(op, result string, code int, d time.Duration) {
	backendRequestsTotal.WithLabelValues(norm(op), norm(result)).Inc()
	backendRequestDuration.WithLabelValues(norm(op), strconv.Itoa(code)).Observe(d.Seconds())
}
