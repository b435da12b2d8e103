package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestEngineMetricsObserve(t *testing.T) {
	m := NewEngineMetrics(prometheus.NewRegistry())
	m.ObserveClassification("HIGH")
	m.ObserveEscalation("crisis_pending")
	m.ObserveAuditFailure()
	m.ObserveTurnLatency("NORMAL", 0.02)
}

func TestEngineMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics(reg)
	m.ObserveClassification("LOW")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}

func TestEngineMetricsNilSafe(t *testing.T) {
	var m *EngineMetrics
	m.ObserveClassification("HIGH")
	m.ObserveEscalation("crisis_pending")
	m.ObserveAuditFailure()
	m.ObserveTurnLatency("HIGH", 0.1)
}
