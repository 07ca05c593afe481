package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheLookupsTotal) }

// Cache names and lookup results used as label values.
const (
	CacheCustomer = "customer"
	CachePlans    = "plans"

	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var cacheLookupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Customer prefill and plan catalog cache lookups by result.",
	},
	[]string{"cache", "result"},
)

func IncCacheRequest(cache, result string) {
	cacheLookupsTotal.WithLabelValues(norm(cache), norm(result)).Inc()
}
