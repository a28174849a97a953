package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	txnCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omvcc",
			Name:      "txn_events_total",
			Help:      "Counter of transaction events.",
		}, []string{"type"})

	conflictCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "omvcc",
			Name:      "conflicts_total",
			Help:      "Counter of refused writes and failed commits by reason.",
		}, []string{"reason"})

	commitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "omvcc",
			Name:      "commit_duration_seconds",
			Help:      "Bucketed histogram of commit processing time.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 20),
		})

	activeTxnGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "omvcc",
			Name:      "active_txns",
			Help:      "Number of active transactions.",
		})

	gcVersionCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "omvcc",
			Name:      "gc_versions_total",
			Help:      "Counter of versions dropped by garbage collection.",
		})
)

func init() {
	prometheus.MustRegister(txnCounter)
	prometheus.MustRegister(conflictCounter)
	prometheus.MustRegister(commitDuration)
	prometheus.MustRegister(activeTxnGauge)
	prometheus.MustRegister(gcVersionCounter)
}
