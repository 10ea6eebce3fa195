// Package metrics exposes the daemon's prometheus collectors, grounded on
// the teacher's prometheus/client_golang instrumentation of its own
// devops subprocess manager.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors groups every metric the coordinator updates each tick.
type Collectors struct {
	TickDuration prometheus.Histogram
	ReadySetSize prometheus.Gauge
	SpawnsTotal  prometheus.Counter
	AgentsAlive  prometheus.Gauge
	TicksTotal   prometheus.Counter
}

// New registers and returns a fresh Collectors set against reg.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "workgraph",
			Subsystem: "coordinator",
			Name:      "tick_duration_seconds",
			Help:      "Duration of each coordinator tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		ReadySetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "workgraph",
			Subsystem: "coordinator",
			Name:      "ready_set_size",
			Help:      "Number of tasks in the ready set at the end of the last tick.",
		}),
		SpawnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workgraph",
			Subsystem: "coordinator",
			Name:      "spawns_total",
			Help:      "Total number of agent subprocesses spawned.",
		}),
		AgentsAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "workgraph",
			Subsystem: "coordinator",
			Name:      "agents_alive",
			Help:      "Number of agents currently considered alive.",
		}),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "workgraph",
			Subsystem: "coordinator",
			Name:      "ticks_total",
			Help:      "Total number of coordinator ticks run.",
		}),
	}
	reg.MustRegister(c.TickDuration, c.ReadySetSize, c.SpawnsTotal, c.AgentsAlive, c.TicksTotal)
	return c
}
