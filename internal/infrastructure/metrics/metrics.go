// Package metrics owns the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wakeup-hub/wakeup-hub/internal/domain/shared"
)

const namespace = "wakeup"

// Metrics holds every collector on its own registry so tests can create
// independent instances.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	eventsPublished *prometheus.CounterVec
	handlerRuns     *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec

	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	breakerState *prometheus.GaugeVec
	wakesPlanned prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),

		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events published, by type.",
		}, []string{"type"}),
		handlerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handler_runs_total",
			Help:      "Event handler executions, by type and outcome.",
		}, []string{"type", "success"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handler_duration_seconds",
			Help:      "Duration of event handler executions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"type"}),

		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Background job runs, by job and outcome.",
		}, []string{"job", "success"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Duration of background job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"job"}),

		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),
		wakesPlanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alarm",
			Name:      "wakes_planned_total",
			Help:      "Next wake-ups handed to the wake scheduler.",
		}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.eventsPublished,
		m.handlerRuns,
		m.handlerDuration,
		m.jobRuns,
		m.jobDuration,
		m.breakerState,
		m.wakesPlanned,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with request counters and timings.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

// RecordPublish counts a published event.
func (m *Metrics) RecordPublish(t shared.EventType) {
	m.eventsPublished.WithLabelValues(string(t)).Inc()
}

// RecordHandlerExecution records one event handler run.
func (m *Metrics) RecordHandlerExecution(t shared.EventType, d time.Duration, success bool) {
	m.handlerRuns.WithLabelValues(string(t), strconv.FormatBool(success)).Inc()
	m.handlerDuration.WithLabelValues(string(t)).Observe(d.Seconds())
}

// RecordJob records one background job run.
func (m *Metrics) RecordJob(name string, d time.Duration, success bool) {
	if name == "" {
		name = "unknown"
	}
	m.jobRuns.WithLabelValues(name, strconv.FormatBool(success)).Inc()
	m.jobDuration.WithLabelValues(name).Observe(d.Seconds())
}

// SetBreakerState publishes a breaker transition.
func (m *Metrics) SetBreakerState(name string, state int) {
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// RecordWakePlanned counts a planned wake-up.
func (m *Metrics) RecordWakePlanned() {
	m.wakesPlanned.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// canonicalPath keeps label cardinality bounded: every route is a single
// segment, anything deeper collapses to its first segment.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	first, _, _ := strings.Cut(trimmed, "/")
	return "/" + first
}
