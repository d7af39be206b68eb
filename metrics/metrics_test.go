package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordGateIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordGate("profit-factor", true)
	c.RecordGate("profit-factor", false)

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() != "ea_stress_lab_gate_outcomes_total" {
			continue
		}
		found = true
		if len(mf.Metric) != 2 {
			t.Fatalf("expected 2 label combinations, got %d", len(mf.Metric))
		}
	}
	if !found {
		t.Fatal("gate_outcomes_total metric not registered")
	}
}

func TestDisableSuppressesRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.Disable()

	c.RecordStageLatency("compile", "success", 5*time.Millisecond)

	mf := gatherOne(t, reg, "ea_stress_lab_stage_latency_ms")
	if len(mf.Metric) != 0 {
		t.Fatalf("expected no observations while disabled, got %d", len(mf.Metric))
	}
}

func TestNilCollectorMethodsAreNoOps(t *testing.T) {
	var c *Collector
	c.RecordStageLatency("compile", "success", time.Second)
	c.RecordGate("profit-factor", true)
	c.RecordFixAttempt("compile")
	c.RecordRefineIteration("wf-1")
	c.RecordSweepPassCount(100)
	c.RecordWorkflowTerminal("completed")
}

func gatherOne(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return &dto.MetricFamily{}
}
