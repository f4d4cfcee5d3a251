package authcore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exposes a Metrics block to a prometheus registry. Each
// counter surfaces as auth_events_total{event="..."} plus the recorder's
// dropped-event count.
type MetricsCollector struct {
	metrics *Metrics
	core    *Core

	eventsDesc  *prometheus.Desc
	droppedDesc *prometheus.Desc
}

// NewMetricsCollector returns a collector reading from the core's counters.
// Register it with prometheus.MustRegister.
func NewMetricsCollector(core *Core) *MetricsCollector {
	return &MetricsCollector{
		metrics: core.metrics,
		core:    core,
		eventsDesc: prometheus.NewDesc(
			"auth_events_total",
			"Authentication events by type",
			[]string{"event"}, nil),
		droppedDesc: prometheus.NewDesc(
			"auth_audit_dropped_total",
			"Audit events dropped because the recorder buffer was full",
			nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.eventsDesc
	ch <- c.droppedDesc
}

// Collect implements prometheus.Collector.
func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	for id, v := range c.metrics.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.eventsDesc, prometheus.CounterValue, float64(v), id.String())
	}
	ch <- prometheus.MustNewConstMetric(c.droppedDesc, prometheus.CounterValue, float64(c.core.Audit().Dropped()))
}
