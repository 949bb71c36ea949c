// Package metrics exposes graph and runner activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nodeflow"

// Metrics holds the collectors fed by LifecycleHooks.
type Metrics struct {
	registry *prometheus.Registry

	dispatches    *prometheus.CounterVec
	persistErrors *prometheus.CounterVec
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	running       prometheus.Gauge
	revision      *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Actions dispatched to the graph, by action type and whether the state changed.",
		}, []string{"action", "changed"}),
		persistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Snapshot persistence or locking failures, by operation.",
		}, []string{"op"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_runs_total",
			Help:      "Finished node runs, by node kind and status.",
		}, []string{"kind", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_run_duration_seconds",
			Help:      "Duration of node runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_runs_in_flight",
			Help:      "Node runs currently executing.",
		}),
		revision: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_revision",
			Help:      "Latest revision of each graph.",
		}, []string{"graph"}),
	}
	m.registry.MustRegister(
		m.dispatches,
		m.persistErrors,
		m.runs,
		m.runDuration,
		m.running,
		m.revision,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks recording into the collectors. They can be
// given to both the graph store and the runner.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(_ context.Context, e *domain.DispatchEvent) {
			changed := "false"
			if e.Changed {
				changed = "true"
			}
			m.dispatches.WithLabelValues(string(e.Action), changed).Inc()
			m.revision.WithLabelValues(e.GraphID).Set(float64(e.Revision))
		},
		OnPersistError: func(_ context.Context, op string, _ error) {
			m.persistErrors.WithLabelValues(op).Inc()
		},
		OnRunStart: func(_ context.Context, _ *domain.RunEvent) {
			m.running.Inc()
		},
		OnRunFinish: func(_ context.Context, e *domain.RunEvent) {
			m.running.Dec()
			status := "success"
			if !e.Success {
				status = "failure"
			}
			m.runs.WithLabelValues(string(e.Kind), status).Inc()
			m.runDuration.WithLabelValues(string(e.Kind)).Observe(e.Duration.Seconds())
		},
	}
}
