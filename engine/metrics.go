package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics are owned by one engine and registered only when a registerer is
// supplied.
type metrics struct {
	commits         prometheus.Counter
	rollbacks       *prometheus.CounterVec
	historyOps      *prometheus.CounterVec
	instances       prometheus.Gauge
	executeDuration prometheus.Histogram
}

func newMetrics() *metrics {
	return &metrics{
		commits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "schemagraph_engine_commits_total",
				Help: "Number of committed transactions, imports included.",
			},
		),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemagraph_engine_rollbacks_total",
				Help: "Number of rejected transactions by the kind of their first failure.",
			},
			[]string{"reason"},
		),
		historyOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemagraph_engine_history_ops_total",
				Help: "Number of applied undo and redo operations.",
			},
			[]string{"op"},
		),
		instances: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "schemagraph_engine_instances",
				Help: "Number of live instances after the last commit.",
			},
		),
		executeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "schemagraph_engine_execute_duration_seconds",
				Help:    "Time taken to validate and commit a transaction.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.commits, m.rollbacks, m.historyOps, m.instances, m.executeDuration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
