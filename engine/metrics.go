package engine

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the batch-level counters and histograms the daemon registers
// once at startup, mirroring contractcourt's resolver counters and
// htlcswitch's per-link Prometheus metrics.
var (
	batchesCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "defuse",
		Subsystem: "engine",
		Name:      "batches_committed_total",
		Help:      "Number of execute_intents batches that committed.",
	})
	batchesReverted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "defuse",
		Subsystem: "engine",
		Name:      "batches_reverted_total",
		Help:      "Number of execute_intents batches that reverted, by reason.",
	}, []string{"reason"})
	batchDispatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "defuse",
		Subsystem: "engine",
		Name:      "batch_dispatch_seconds",
		Help:      "Wall-clock time spent inside one ExecuteIntents call.",
		Buckets:   prometheus.DefBuckets,
	})
)

// RegisterMetrics registers the engine's collectors with reg. Safe to call
// once per process; calling it twice returns the AlreadyRegisteredError from
// the second registerer.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{batchesCommitted, batchesReverted, batchDispatchSeconds} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
