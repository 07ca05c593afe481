package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		checkoutAttemptsTotal,
		checkoutActive,
		checkoutStepDuration,
		checkoutRejectedTotal,
		purchasesRevenueTotal,
	)
}

var (
	// state: completed|failed|cancelled; kind: failure kind or "none".
	checkoutAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_attempts_total",
			Help:      "Terminal checkout attempts by final state and failure kind.",
		},
		[]string{"state", "kind"},
	)

	checkoutActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "checkout_active",
			Help:      "Checkout attempts currently in flight.",
		},
	)

	checkoutStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_step_duration_seconds",
			Help:      "Time spent in each checkout state.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300, 900},
		},
		[]string{"state"},
	)

	// reason: in_progress|rate_limited|plan_unavailable|busy
	checkoutRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_rejected_total",
			Help:      "Checkout starts refused before an attempt was created.",
		},
		[]string{"reason"},
	)

	purchasesRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchases_revenue_total",
			Help:      "The total plan value of verified purchases, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncCheckoutAttempt(state, kind string) {
	if kind == "" {
		kind = "none"
	}
	checkoutAttemptsTotal.WithLabelValues(norm(state), norm(kind)).Inc()
}

func CheckoutStarted()  { checkoutActive.Inc() }
func CheckoutFinished() { checkoutActive.Dec() }

func ObserveCheckoutStep(state string, d time.Duration) {
	checkoutStepDuration.WithLabelValues(norm(state)).Observe(d.Seconds())
}

func IncCheckoutRejected(reason string) {
	checkoutRejectedTotal.WithLabelValues(norm(reason)).Inc()
}

func AddPurchaseRevenue(currency string, amount int64) {
	purchasesRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}
