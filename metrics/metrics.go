// Package metrics exposes Prometheus instrumentation for the workflow
// engine, grounded on the teacher's PrometheusMetrics (graph/metrics.go)
// — same registration pattern via promauto, renamed from node/LLM-call
// gauges to the stage-pipeline vocabulary this domain actually produces.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records workflow execution metrics for Prometheus scraping.
// All methods are safe for concurrent use and are no-ops when nil.
type Collector struct {
	stageLatency *prometheus.HistogramVec
	gateOutcomes *prometheus.CounterVec
	fixAttempts  *prometheus.CounterVec
	refineIterations *prometheus.CounterVec
	sweepPassCount *prometheus.HistogramVec
	workflowsByStatus *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// New creates and registers every metric with registry (use
// prometheus.DefaultRegisterer for the global registry, or
// prometheus.NewRegistry() for test isolation).
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Collector{
		enabled: true,

		stageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ea_stress_lab",
			Name:      "stage_latency_ms",
			Help:      "Execution duration of a pipeline stage in milliseconds",
			Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 30000, 300000, 3600000},
		}, []string{"stage", "status"}),

		gateOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ea_stress_lab",
			Name:      "gate_outcomes_total",
			Help:      "Gate pass/fail counts per gate name",
		}, []string{"gate", "passed"}),

		fixAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ea_stress_lab",
			Name:      "fix_attempts_total",
			Help:      "S5b patch-and-restart attempts, by triggering stage",
		}, []string{"stage"}),

		refineIterations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ea_stress_lab",
			Name:      "refine_iterations_total",
			Help:      "S8b refinement loop iterations consumed",
		}, []string{"workflow_id"}),

		sweepPassCount: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ea_stress_lab",
			Name:      "sweep_pass_count",
			Help:      "Number of passes a run-optimization sweep produced",
			Buckets:   []float64{1, 10, 100, 1000, 5000, 20000},
		}, []string{}),

		workflowsByStatus: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ea_stress_lab",
			Name:      "workflows_total",
			Help:      "Workflow terminations by final status",
		}, []string{"status"}),
	}
}

// RecordStageLatency records how long one stage's Execute call took.
func (c *Collector) RecordStageLatency(stage, status string, d time.Duration) {
	if c == nil || !c.enabled {
		return
	}
	c.stageLatency.WithLabelValues(stage, status).Observe(float64(d.Milliseconds()))
}

// RecordGate records one gate evaluation outcome.
func (c *Collector) RecordGate(gateName string, passed bool) {
	if c == nil || !c.enabled {
		return
	}
	passedLabel := "false"
	if passed {
		passedLabel = "true"
	}
	c.gateOutcomes.WithLabelValues(gateName, passedLabel).Inc()
}

// RecordFixAttempt records one S5b patch-and-restart cycle, labeled by
// the stage whose gate failure triggered it (compile or validate-trades).
func (c *Collector) RecordFixAttempt(triggeringStage string) {
	if c == nil || !c.enabled {
		return
	}
	c.fixAttempts.WithLabelValues(triggeringStage).Inc()
}

// RecordRefineIteration records one S8b refine-decision iteration.
func (c *Collector) RecordRefineIteration(workflowID string) {
	if c == nil || !c.enabled {
		return
	}
	c.refineIterations.WithLabelValues(workflowID).Inc()
}

// RecordSweepPassCount records how many passes an S7 sweep produced.
func (c *Collector) RecordSweepPassCount(count int) {
	if c == nil || !c.enabled {
		return
	}
	c.sweepPassCount.WithLabelValues().Observe(float64(count))
}

// RecordWorkflowTerminal records a workflow reaching a terminal status.
func (c *Collector) RecordWorkflowTerminal(status string) {
	if c == nil || !c.enabled {
		return
	}
	c.workflowsByStatus.WithLabelValues(status).Inc()
}

// Disable stops recording without unregistering metrics (useful in tests
// that want to assert no side effects).
func (c *Collector) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
}

// Enable re-enables recording after Disable.
func (c *Collector) Enable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = true
}
