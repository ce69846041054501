// Package metrics exposes Prometheus metrics for tool calls, runs and the
// shared proverb list.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/hupe1980/proverbs/tool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the service. It implements
// tool.Hook for the catalog and runner.RunObserver for the runner.
type Metrics struct {
	registry *prometheus.Registry

	// Tool metrics
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
}

// Counter reports a current count, e.g. the proverb store length.
type Counter interface {
	Len() int
}

// NewMetrics creates and registers all metrics. When proverbs is non-nil a
// proverbs_count gauge samples its length at scrape time.
func NewMetrics(proverbs Counter) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_calls_total",
				Help: "Total number of tool calls",
			},
			[]string{"tool", "status", "code"},
		),
		ToolCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_call_duration_seconds",
				Help:    "Duration of tool calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runs_total",
				Help: "Total number of agent runs",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "run_duration_seconds",
				Help:    "Duration of agent runs in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(m.ToolCallsTotal)
	m.registry.MustRegister(m.ToolCallDuration)
	m.registry.MustRegister(m.RunsTotal)
	m.registry.MustRegister(m.RunDuration)

	if proverbs != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "proverbs_count",
				Help: "Number of proverbs in the shared list",
			},
			func() float64 { return float64(proverbs.Len()) },
		))
	}

	return m
}

// BeforeCall implements tool.Hook.
func (m *Metrics) BeforeCall(context.Context, *tool.CallRecord) {}

// AfterCall implements tool.Hook.
func (m *Metrics) AfterCall(_ context.Context, rec *tool.CallRecord) {
	m.ToolCallsTotal.WithLabelValues(rec.Name, rec.Status(), rec.Code()).Inc()
	m.ToolCallDuration.WithLabelValues(rec.Name).Observe(rec.Duration.Seconds())
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

var _ tool.Hook = (*Metrics)(nil)
