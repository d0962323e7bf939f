package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestRequestMetrics(t *testing.T) {
	RequestsTotal.WithLabelValues("local", "ok").Inc()
	RequestLatency.WithLabelValues("local").Observe(0.3)
	ComplexityScore.Observe(0.42)

	names := gatheredNames(t)
	for _, want := range []string{"loka_requests_total", "loka_request_latency_seconds", "loka_complexity_score"} {
		if !names[want] {
			t.Errorf("metric %q not found", want)
		}
	}
}

func TestPIIBlocked(t *testing.T) {
	PIIBlocked.Inc()

	names := gatheredNames(t)
	if !names["loka_pii_blocked_total"] {
		t.Error("loka_pii_blocked_total not found")
	}
}

func TestBudgetMetrics(t *testing.T) {
	BudgetSpendTodayEUR.Set(1.23)

	names := gatheredNames(t)
	if !names["loka_budget_spend_today_eur"] {
		t.Error("loka_budget_spend_today_eur not found")
	}
}

func TestDelegateMetrics(t *testing.T) {
	SubtasksExecuted.WithLabelValues("ok").Inc()
	SubtasksExecuted.WithLabelValues("failed").Inc()

	names := gatheredNames(t)
	if !names["loka_delegate_subtasks_total"] {
		t.Error("loka_delegate_subtasks_total not found")
	}
}

func TestMeshMetrics(t *testing.T) {
	MeshNodesKnown.Set(3)

	names := gatheredNames(t)
	if !names["loka_mesh_nodes_known"] {
		t.Error("loka_mesh_nodes_known not found")
	}
}

func TestHealthMetrics(t *testing.T) {
	HealthCheckStatus.WithLabelValues("budget-store").Set(1)
	HealthCheckStatus.WithLabelValues("local").Set(0)

	names := gatheredNames(t)
	if !names["loka_health_check_status"] {
		t.Error("loka_health_check_status not found")
	}
}

func TestAllMetricsGatherable(t *testing.T) {
	names := gatheredNames(t)

	lokaMetrics := 0
	for name := range names {
		if len(name) > 5 && name[:5] == "loka_" {
			lokaMetrics++
		}
	}
	if lokaMetrics < 7 {
		t.Errorf("expected at least 7 loka_ metrics, got %d", lokaMetrics)
	}
}
