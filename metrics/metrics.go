// Package metrics exposes Prometheus instrumentation for stages, backend
// calls, tasks and HTTP requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all planner metrics. A nil *Metrics records nothing.
type Metrics struct {
	StageOutcomes *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec

	BackendCalls   *prometheus.CounterVec
	BackendLatency *prometheus.HistogramVec

	TasksFinished *prometheus.CounterVec
	TaskQueueWait prometheus.Histogram
	TaskDuration  *prometheus.HistogramVec

	HTTPRequests *prometheus.CounterVec
}

// New creates and registers all metrics with registry
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		StageOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planner_stage_outcomes_total",
				Help: "Pipeline stage outcomes (succeeded, defaulted, aborted)",
			},
			[]string{"kind", "outcome"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "planner_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds, retries included",
				Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),
		BackendCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planner_backend_calls_total",
				Help: "Generation backend attempts by outcome",
			},
			[]string{"outcome"},
		),
		BackendLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "planner_backend_latency_seconds",
				Help:    "Generation backend attempt latency in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),
		TasksFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planner_tasks_finished_total",
				Help: "Background tasks reaching a terminal status",
			},
			[]string{"status"},
		),
		TaskQueueWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "planner_task_queue_wait_seconds",
				Help:    "Time a task spent queued before processing started",
				Buckets: prometheus.DefBuckets,
			},
		),
		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "planner_task_duration_seconds",
				Help:    "Background task duration from creation to terminal status",
				Buckets: []float64{10, 30, 60, 120, 180, 300, 600},
			},
			[]string{"status"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planner_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// NewRegistry creates a registry with Go and process collectors and the
// planner metrics
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, New(reg)
}

// Handler serves the metrics in reg
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// StageFinished records one pipeline stage
func (m *Metrics) StageFinished(stage, kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = stage
	}
	m.StageOutcomes.WithLabelValues(kind, outcome).Inc()
	m.StageDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// BackendCall records one backend attempt
func (m *Metrics) BackendCall(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BackendCalls.WithLabelValues(outcome).Inc()
	m.BackendLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// TaskFinished records a task reaching a terminal status
func (m *Metrics) TaskFinished(status string, queued, total time.Duration) {
	if m == nil {
		return
	}
	m.TasksFinished.WithLabelValues(status).Inc()
	m.TaskQueueWait.Observe(queued.Seconds())
	m.TaskDuration.WithLabelValues(status).Observe(total.Seconds())
}

// HTTPRequest records a served request
func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
