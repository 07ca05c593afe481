package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(journalPoolConns, journalWritesTotal) }

var (
	journalPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "journal_pool_connections",
			Help:      "Attempt journal connection pool by state (total, idle, acquired).",
		},
		[]string{"state"},
	)

	journalWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_writes_total",
			Help:      "Terminal attempts written to the journal, by result.",
		},
		[]string{"result"},
	)
)

func SetDBPoolStats(total, idle, acquired int32) {
	journalPoolConns.WithLabelValues("total").Set(float64(total))
	journalPoolConns.WithLabelValues("idle").Set(float64(idle))
	journalPoolConns.WithLabelValues("acquired").Set(float64(acquired))
}

// IncJournalWrite counts one journal write; result is "ok" or "error".
func IncJournalWrite(result string) {
	journalWritesTotal.WithLabelValues(norm(result)).Inc()
}
