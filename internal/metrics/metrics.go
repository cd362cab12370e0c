// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is what the workflows depend on, so they can run without a registry.
type Recorder interface {
	// RecordOperation counts one workflow call; outcome is "ok" or an error code.
	RecordOperation(workflow, outcome string)
	RecordDuration(workflow string, d time.Duration)
	RecordEvent(topic, status string)
}

type Nop struct{}

func (Nop) RecordOperation(string, string) {}
func (Nop) RecordDuration(string, time.Duration) {}
func (Nop) RecordEvent(string, string) {}

type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	eventsTotal *prometheus.CounterVec
}

var _ Recorder = (*Metrics)(nil)

// New creates the collectors and registers them on registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sway_http_request_duration_seconds",
				Help:    "Time taken for HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sway_workflow_operations_total",
				Help: "Workflow calls by outcome",
			},
			[]string{"workflow", "outcome"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sway_workflow_duration_seconds",
				Help:    "Time spent inside a workflow, transaction included",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"workflow"},
		),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sway_events_total",
				Help: "Domain events by topic and status (published, dropped, projected, duplicate, failed)",
			},
			[]string{"topic", "status"},
		),
	}
	for _, c := range m.collectors() {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.operationsTotal,
		m.operationDuration,
		m.eventsTotal,
	}
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) RecordOperation(workflow, outcome string) {
	m.operationsTotal.WithLabelValues(workflow, outcome).Inc()
}

func (m *Metrics) RecordDuration(workflow string, d time.Duration) {
	m.operationDuration.WithLabelValues(workflow).Observe(d.Seconds())
}

func (m *Metrics) RecordEvent(topic, status string) {
	m.eventsTotal.WithLabelValues(topic, status).Inc()
}
