// Package metrics exposes Prometheus counters and histograms for the
// pipeline's stage workers, orchestrator routing decisions, and ingest
// endpoints, following ariadne's CounterVec/HistogramVec-per-registry
// exporter shape rather than the unlabeled default-registry globals
// most small services reach for.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps a dedicated prometheus.Registry plus the pipeline's
// metric families, mirroring ariadne's PrometheusExporter rather than
// registering onto the global default registry.
type Registry struct {
	reg *prometheus.Registry

	stageInvocations *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	routingDecisions *prometheus.CounterVec
	humanReviews     *prometheus.CounterVec
	ingestRequests   *prometheus.CounterVec
}

// New builds a Registry with namespace "pipeline" and registers every
// metric family.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg: reg,
		stageInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline",
			Subsystem: "stage",
			Name:      "invocations_total",
			Help:      "Stage worker invocations by stage and outcome.",
		}, []string{"stage", "outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pipeline",
			Subsystem: "stage",
			Name:      "duration_seconds",
			Help:      "Stage worker end-to-end handling latency, including the model call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		routingDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline",
			Subsystem: "orchestrator",
			Name:      "routing_decisions_total",
			Help:      "Orchestrator routing decisions by source stage and decision.",
		}, []string{"stage", "decision"}),
		humanReviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline",
			Subsystem: "orchestrator",
			Name:      "human_reviews_total",
			Help:      "Cases routed to human review by the stage that triggered the gate.",
		}, []string{"stage"}),
		ingestRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline",
			Subsystem: "ingest",
			Name:      "requests_total",
			Help:      "HTTP ingest requests by endpoint and status class.",
		}, []string{"endpoint", "status"}),
	}

	reg.MustRegister(
		m.stageInvocations,
		m.stageDuration,
		m.routingDecisions,
		m.humanReviews,
		m.ingestRequests,
	)
	return m
}

// Handler returns the promhttp handler serving this registry's metrics.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveStage records one stage invocation's outcome and latency.
func (m *Registry) ObserveStage(stage, outcome string, d time.Duration) {
	m.stageInvocations.WithLabelValues(stage, outcome).Inc()
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRouting records one orchestrator routing decision: "routed",
// "human_review", or "completed".
func (m *Registry) ObserveRouting(stage, decision string) {
	m.routingDecisions.WithLabelValues(stage, decision).Inc()
	if decision == "human_review" {
		m.humanReviews.WithLabelValues(stage).Inc()
	}
}

// ObserveIngest records one ingest HTTP request.
func (m *Registry) ObserveIngest(endpoint, statusClass string) {
	m.ingestRequests.WithLabelValues(endpoint, statusClass).Inc()
}
