// Package metrics exposes the worker's cleanup instrumentation as prometheus
// collectors, served from the health endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors for one worker instance. Each worker owns
// its own prometheus registry so tests and multi-worker processes never fight
// over global collector registration.
type Metrics struct {
	registry *prometheus.Registry

	// CleanupRuns counts coordinator runs, labelled by request outcome.
	CleanupRuns *prometheus.CounterVec
	// StepFailures counts fault-isolated step failures, labelled by step.
	StepFailures *prometheus.CounterVec
	// RegistryResets counts entries reset to their defaults.
	RegistryResets prometheus.Counter
	// SingletonEvictions counts request-scoped singleton evictions.
	SingletonEvictions prometheus.Counter
}

// New creates an isolated metrics bundle.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CleanupRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantscope_cleanup_runs_total",
			Help: "Coordinator cleanup runs by request outcome.",
		}, []string{"outcome"}),
		StepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tenantscope_cleanup_step_failures_total",
			Help: "Cleanup step failures by step name.",
		}, []string{"step"}),
		RegistryResets: factory.NewCounter(prometheus.CounterOpts{
			Name: "tenantscope_registry_resets_total",
			Help: "Resettable entries restored to their declared defaults.",
		}),
		SingletonEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "tenantscope_singleton_evictions_total",
			Help: "Request-scoped singleton instances evicted.",
		}),
	}
}

// Handler serves the worker's collectors over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
