package matching

import "github.com/prometheus/client_golang/prometheus"

// metrics is a small struct of pre-registered collectors threaded into
// the engine, rather than reaching for the global registry ad hoc.
type metrics struct {
	tickDuration       prometheus.Histogram
	tradesTotal        *prometheus.CounterVec
	settlementFailures prometheus.Counter
	lockRetries        prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "clob_matching_tick_duration_seconds",
			Help:    "Duration of one matching engine tick across all markets.",
			Buckets: prometheus.DefBuckets,
		}),
		tradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clob_trades_total",
			Help: "Trades produced by the matching engine, by trade type.",
		}, []string{"trade_type"}),
		settlementFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clob_settlement_failures_total",
			Help: "Best-effort settlement dispatch failures.",
		}),
		lockRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clob_lock_retries_total",
			Help: "fillOrder calls that bounced off a held order lock and will retry next tick.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.tickDuration, m.tradesTotal, m.settlementFailures, m.lockRetries)
	}
	return m
}
