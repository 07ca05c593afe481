package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		gatewayResultsTotal,
		gatewayStaleCallbacksTotal,
		verificationFailuresTotal,
	)
}

var (
	// status: succeeded|failed|dismissed
	gatewayResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_results_total",
			Help:      "Gateway session results by provider and status.",
		},
		[]string{"provider", "status"},
	)

	gatewayStaleCallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_stale_callbacks_total",
			Help:      "Gateway callbacks discarded because their session or order handle was not current.",
		},
	)

	// reason: rejected|timeout|network
	verificationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verification_failures_total",
			Help:      "Payments the gateway reported as succeeded that did not verify.",
		},
		[]string{"reason"},
	)
)

func IncGatewayResult(provider, status string) {
	gatewayResultsTotal.WithLabelValues(norm(provider), norm(status)).Inc()
}

func IncStaleCallback() { gatewayStaleCallbacksTotal.Inc() }

func IncVerificationFailure(reason string) {
	verificationFailuresTotal.WithLabelValues(norm(reason)).Inc()
}
