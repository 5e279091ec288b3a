package graph

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics wires the engine's run statistics into Prometheus, grounded on
// the promauto metrics registered by the zerostate DAG executor in the
// examples pack (inFlight gauge, retries/failures counters).
type Metrics struct {
	nodesSucceeded prometheus.Counter
	nodesFailed    prometheus.Counter
	nonCritical    prometheus.Counter
	runsTotal      prometheus.Counter
	checkpoints    prometheus.Gauge
}

// NewMetrics registers the engine's collectors against reg. Pass
// prometheus.DefaultRegisterer to use the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		nodesSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "ragdag_nodes_succeeded_total",
			Help: "Number of node executions that produced a result.",
		}),
		nodesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ragdag_nodes_failed_total",
			Help: "Number of node executions that recorded an error.",
		}),
		nonCritical: factory.NewCounter(prometheus.CounterOpts{
			Name: "ragdag_nodes_non_critical_failed_total",
			Help: "Number of non-critical node failures that did not halt a run.",
		}),
		runsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ragdag_runs_total",
			Help: "Number of Execute calls completed, successful or not.",
		}),
		checkpoints: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ragdag_checkpoints_stored",
			Help: "Number of checkpoints currently held in memory.",
		}),
	}
}

func (m *Metrics) observeRun(results map[string]any, errs map[string]error) {
	m.runsTotal.Inc()
	m.nodesSucceeded.Add(float64(len(results)))
	m.nodesFailed.Add(float64(len(errs)))
}

// observeNonCritical records a node failure the scheduler tolerated
// instead of halting the run.
func (m *Metrics) observeNonCritical() {
	m.nonCritical.Inc()
}

func (m *Metrics) setCheckpointCount(n int) {
	m.checkpoints.Set(float64(n))
}
