package health

import (
	"testing"
)

func TestOverallStatusIsWorstComponent(t *testing.T) {
	m := NewMonitor()

	m.SetComponentStatus("pool", StatusHealthy, "running")
	m.SetComponentStatus("backend", StatusHealthy, "reachable")
	if got := m.GetHealth(0).Status; got != StatusHealthy {
		t.Errorf("Expected healthy, got %s", got)
	}

	m.SetComponentStatus("pool", StatusDegraded, "saturated")
	if got := m.GetHealth(0).Status; got != StatusDegraded {
		t.Errorf("Expected degraded, got %s", got)
	}

	m.SetComponentStatus("backend", StatusUnhealthy, "unreachable")
	if got := m.GetHealth(0).Status; got != StatusUnhealthy {
		t.Errorf("Expected unhealthy, got %s", got)
	}
}

func TestComponentStatusOverwrite(t *testing.T) {
	m := NewMonitor()

	m.SetComponentStatus("pool", StatusUnhealthy, "starting")
	m.SetComponentStatus("pool", StatusHealthy, "running")

	report := m.GetHealth(3)
	if report.Status != StatusHealthy {
		t.Errorf("Expected healthy after recovery, got %s", report.Status)
	}
	if len(report.Components) != 1 {
		t.Errorf("Expected 1 component, got %d", len(report.Components))
	}
	if report.ActiveConnections != 3 {
		t.Errorf("Expected 3 active connections, got %d", report.ActiveConnections)
	}
}

func TestComponentDetails(t *testing.T) {
	m := NewMonitor()

	details := map[string]int{"waiting": 4}
	m.SetComponentStatusWithDetails("pool", StatusDegraded, "saturated", details)

	report := m.GetHealth(0)
	if len(report.Components) != 1 {
		t.Fatalf("Expected 1 component, got %d", len(report.Components))
	}
	comp := report.Components[0]
	if comp.Details == nil {
		t.Error("Expected details to be carried through")
	}
	if comp.LastChecked.IsZero() {
		t.Error("Expected last checked timestamp to be set")
	}
}

func TestRuntimeReadings(t *testing.T) {
	m := NewMonitor()
	report := m.GetHealth(0)

	if report.Goroutines < 1 {
		t.Errorf("Expected at least one goroutine, got %d", report.Goroutines)
	}
	if report.Uptime < 0 {
		t.Errorf("Negative uptime: %d", report.Uptime)
	}
	if report.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}
