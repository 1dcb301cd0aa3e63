// Package monitoring exposes Prometheus metrics for the wrapper backend.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Tab metrics
	TabsActive prometheus.Gauge
	TabsOpened prometheus.Counter
	TabsClosed prometheus.Counter

	// Surface metrics
	SurfaceLoads        *prometheus.CounterVec
	SurfaceLoadDuration prometheus.Histogram

	// Navigation policy metrics
	PolicyDecisions *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSEvents      prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector on its own registry, so tests can
// construct it repeatedly without duplicate-registration panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := newMetrics(reg)
	m.registry = reg
	return m
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		TabsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sitewrap_tabs_active",
			Help: "Number of open tabs",
		}),
		TabsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "sitewrap_tabs_opened_total",
			Help: "Total tabs opened",
		}),
		TabsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sitewrap_tabs_closed_total",
			Help: "Total tabs closed",
		}),

		SurfaceLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitewrap_surface_loads_total",
			Help: "Surface load attempts by outcome",
		}, []string{"outcome"}),
		SurfaceLoadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitewrap_surface_load_duration_seconds",
			Help:    "Surface load latency",
			Buckets: prometheus.DefBuckets,
		}),

		PolicyDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sitewrap_policy_decisions_total",
			Help: "Navigation policy outcomes",
		}, []string{"decision"}),

		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sitewrap_ws_connections",
			Help: "Connected UI clients",
		}),
		WSEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "sitewrap_ws_events_total",
			Help: "Tab events pushed to UI clients",
		}),

		Uptime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sitewrap_uptime_seconds",
			Help: "Process uptime",
		}),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric.
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// Registry returns the private registry backing this collector, for wiring
// the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TabOpened records a tab creation and the new active count.
func (m *Metrics) TabOpened(total int) {
	m.TabsOpened.Inc()
	m.TabsActive.Set(float64(total))
}

// TabClosed records a tab closure and the new active count.
func (m *Metrics) TabClosed(total int) {
	m.TabsClosed.Inc()
	m.TabsActive.Set(float64(total))
}

// RecordSurfaceLoad records one surface load attempt.
func (m *Metrics) RecordSurfaceLoad(duration time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.SurfaceLoads.WithLabelValues(outcome).Inc()
	m.SurfaceLoadDuration.Observe(duration.Seconds())
}

// RecordPolicyDecision records one navigation policy outcome.
func (m *Metrics) RecordPolicyDecision(decision string) {
	m.PolicyDecisions.WithLabelValues(decision).Inc()
}

// ClientConnected tracks a new WebSocket client.
func (m *Metrics) ClientConnected() {
	m.WSConnections.Inc()
}

// ClientDisconnected tracks a departed WebSocket client.
func (m *Metrics) ClientDisconnected() {
	m.WSConnections.Dec()
}

// EventPushed tracks one event delivered to a client.
func (m *Metrics) EventPushed() {
	m.WSEvents.Inc()
}
