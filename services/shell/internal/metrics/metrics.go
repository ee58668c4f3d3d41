// Package metrics exposes Prometheus instrumentation for bridge calls and
// backend readiness.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"structview/agent-shell/services/shell/internal/readiness"
)

const namespace = "structview"

// Metrics collects shell metrics on its own registry.
type Metrics struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	ready    prometheus.Gauge
}

// New creates the collectors and registers them, along with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "calls_total",
			Help:      "Bridge calls by method and outcome.",
		}, []string{"method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "call_duration_seconds",
			Help:      "Time spent in bridge calls, including the wait for readiness.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "ready",
			Help:      "Backend readiness: 1 ready, 0 pending, -1 failed.",
		}),
	}
	m.registry.MustRegister(
		m.calls,
		m.duration,
		m.ready,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordCall counts one bridge call. outcome is "ok" or an error kind.
func (m *Metrics) RecordCall(method, outcome string, d time.Duration) {
	m.calls.WithLabelValues(method, outcome).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}

// SetBackendState updates the readiness gauge.
func (m *Metrics) SetBackendState(state readiness.State) {
	switch state {
	case readiness.Ready:
		m.ready.Set(1)
	case readiness.Failed:
		m.ready.Set(-1)
	default:
		m.ready.Set(0)
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
