package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "bmai"

// Registry is the pull-side metrics registry served on /metrics. It carries
// the Go runtime and process collectors plus the session collectors.
type Registry struct {
	reg *prometheus.Registry

	Sessions *SessionMetrics
}

// NewRegistry creates a registry with every collector registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		reg:      reg,
		Sessions: newSessionMetrics(reg),
	}
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// SessionMetrics implements session.Observer.
type SessionMetrics struct {
	refreshes *prometheus.CounterVec
	coalesced prometheus.Counter
	open      prometheus.Gauge
}

func newSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "refreshes_total",
			Help:      "Completed session refreshes by outcome.",
		}, []string{"outcome"}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "refreshes_coalesced_total",
			Help:      "Refresh requests that joined an in-flight refresh.",
		}),
		open: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "open",
			Help:      "Sessions currently held by the manager.",
		}),
	}
	reg.MustRegister(m.refreshes, m.coalesced, m.open)
	return m
}

// RefreshCompleted counts one finished refresh.
func (m *SessionMetrics) RefreshCompleted(outcome string) {
	m.refreshes.WithLabelValues(outcome).Inc()
}

// RefreshCoalesced counts a caller that joined an in-flight refresh.
func (m *SessionMetrics) RefreshCoalesced() {
	m.coalesced.Inc()
}

// SessionsOpen records the current number of open sessions.
func (m *SessionMetrics) SessionsOpen(n int) {
	m.open.Set(float64(n))
}
