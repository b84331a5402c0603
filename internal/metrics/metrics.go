package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters for timeline planning and rendering.
type Metrics struct {
	registry          *prometheus.Registry
	plansTotal        *prometheus.CounterVec
	invalidPlansTotal prometheus.Counter
	paddingsTotal     *prometheus.CounterVec
	fragmentsTotal    *prometheus.CounterVec
	toolFailuresTotal *prometheus.CounterVec
	toolRetriesTotal  prometheus.Counter
	rendersTotal      *prometheus.CounterVec
	renderDuration    prometheus.Histogram
}

// New creates and registers the metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	plansTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_plans_total",
		Help: "Total number of padding plans computed",
	}, []string{"namespace"})
	invalidPlansTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timeline_invalid_plans_total",
		Help: "Total number of planning requests rejected as invalid input",
	})
	paddingsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_paddings_total",
		Help: "Total number of gap paddings planned",
	}, []string{"namespace"})
	fragmentsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_fragments_generated_total",
		Help: "Total number of fragments produced by external tools",
	}, []string{"kind"})
	toolFailuresTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_tool_failures_total",
		Help: "Total number of failed external tool invocations",
	}, []string{"stage"})
	toolRetriesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timeline_tool_retries_total",
		Help: "Total number of retried external tool invocations",
	})
	rendersTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timeline_renders_total",
		Help: "Total number of timeline renders by outcome",
	}, []string{"status"})
	renderDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timeline_render_duration_seconds",
		Help:    "Wall time of complete timeline renders",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	registry.MustRegister(
		plansTotal,
		invalidPlansTotal,
		paddingsTotal,
		fragmentsTotal,
		toolFailuresTotal,
		toolRetriesTotal,
		rendersTotal,
		renderDuration,
	)

	return &Metrics{
		registry:          registry,
		plansTotal:        plansTotal,
		invalidPlansTotal: invalidPlansTotal,
		paddingsTotal:     paddingsTotal,
		fragmentsTotal:    fragmentsTotal,
		toolFailuresTotal: toolFailuresTotal,
		toolRetriesTotal:  toolRetriesTotal,
		rendersTotal:      rendersTotal,
		renderDuration:    renderDuration,
	}
}

// ObservePlan records one successful plan with n paddings.
func (m *Metrics) ObservePlan(namespace string, n int) {
	if m == nil {
		return
	}
	m.plansTotal.WithLabelValues(namespace).Inc()
	m.paddingsTotal.WithLabelValues(namespace).Add(float64(n))
}

// IncInvalidPlans increments the invalid input counter.
func (m *Metrics) IncInvalidPlans() {
	if m == nil {
		return
	}
	m.invalidPlansTotal.Inc()
}

// IncFragments counts one produced fragment ("blank", "stripped", "canvas").
func (m *Metrics) IncFragments(kind string) {
	if m == nil {
		return
	}
	m.fragmentsTotal.WithLabelValues(kind).Inc()
}

// IncToolFailures counts a failed tool run at a render stage.
func (m *Metrics) IncToolFailures(stage string) {
	if m == nil {
		return
	}
	m.toolFailuresTotal.WithLabelValues(stage).Inc()
}

// IncToolRetries counts one retried tool run.
func (m *Metrics) IncToolRetries() {
	if m == nil {
		return
	}
	m.toolRetriesTotal.Inc()
}

// ObserveRender records a finished render.
func (m *Metrics) ObserveRender(status string, seconds float64) {
	if m == nil {
		return
	}
	m.rendersTotal.WithLabelValues(status).Inc()
	m.renderDuration.Observe(seconds)
}

// Handler returns an http.Handler that serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
