// Package metrics provides Loka's Prometheus metrics: counters, gauges,
// and histograms for routing, budget spend, delegation, and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Routing ────────────────────────────────────────────────────────────────

// RequestsTotal counts completed requests by tier and outcome.
var RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "loka",
	Name:      "requests_total",
	Help:      "Total routed requests by tier and outcome.",
}, []string{"tier", "outcome"})

// RequestLatency tracks end-to-end request duration in seconds by tier.
var RequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "loka",
	Name:      "request_latency_seconds",
	Help:      "Request duration in seconds by routing tier.",
	Buckets:   prometheus.DefBuckets,
}, []string{"tier"})

// ComplexityScore tracks the classifier's score distribution, useful for
// re-tuning the local/specialist/cloud thresholds.
var ComplexityScore = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "loka",
	Name:      "complexity_score",
	Help:      "Distribution of classified query complexity scores (0-1).",
	Buckets:   []float64{0.1, 0.2, 0.3, 0.35, 0.4, 0.5, 0.6, 0.65, 0.7, 0.8, 0.9},
})

// PIIBlocked counts requests rejected by the privacy-mode PII scan.
var PIIBlocked = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "loka",
	Name:      "pii_blocked_total",
	Help:      "Total requests blocked by privacy-mode PII detection.",
})

// ─── Budget ─────────────────────────────────────────────────────────────────

// BudgetSpendTodayEUR tracks today's cumulative paid-provider spend.
var BudgetSpendTodayEUR = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "loka",
	Name:      "budget_spend_today_eur",
	Help:      "Cumulative cloud-provider spend today, in EUR.",
})

// ─── Delegation ─────────────────────────────────────────────────────────────

// SubtasksExecuted counts specialist-tier subtasks by outcome.
var SubtasksExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "loka",
	Name:      "delegate_subtasks_total",
	Help:      "Total delegated subtasks executed, by outcome.",
}, []string{"outcome"})

// ─── Mesh ───────────────────────────────────────────────────────────────────

// MeshNodesKnown tracks the number of nodes currently in the registry.
var MeshNodesKnown = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "loka",
	Name:      "mesh_nodes_known",
	Help:      "Number of mesh nodes currently tracked by the registry.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks the latest health check result per component
// (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "loka",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})
