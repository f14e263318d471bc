package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benagdipa/fwpm-sub001/internal/shared"
)

// Metrics collects Prometheus metrics for the console.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	sessionEvents    *prometheus.CounterVec
	jobsTotal        *prometheus.CounterVec
}

// NewMetrics initialises the registry and the console metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_http_requests_total",
		Help: "HTTP requests served, by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_http_request_duration_seconds",
		Help:    "HTTP request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	upstream := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_upstream_requests_total",
		Help: "Backend API calls, by method, route and status.",
	}, []string{"method", "route", "code"})
	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_upstream_request_duration_seconds",
		Help:    "Backend API call latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_session_events_total",
		Help: "Session lifecycle events, by kind and reason.",
	}, []string{"kind", "reason"})
	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_jobs_total",
		Help: "Background jobs processed, by task type and outcome.",
	}, []string{"type", "status"})
	registry.MustRegister(requests, duration, upstream, upstreamDuration, sessions, jobs)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		upstreamTotal:    upstream,
		upstreamDuration: upstreamDuration,
		sessionEvents:    sessions,
		jobsTotal:        jobs,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveUpstream implements apiclient.Observer. Status 0 means the call
// never got a response.
func (m *Metrics) ObserveUpstream(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	if status == 0 {
		code = "error"
	}
	m.upstreamTotal.WithLabelValues(method, route, code).Inc()
	m.upstreamDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveJob counts one processed background job.
func (m *Metrics) ObserveJob(taskType string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.jobsTotal.WithLabelValues(taskType, status).Inc()
}

// WatchSessions counts session events until the returned func is called.
func (m *Metrics) WatchSessions(sessions *shared.SessionManager) func() {
	if m == nil || sessions == nil {
		return func() {}
	}
	return sessions.Subscribe(func(_ context.Context, evt shared.SessionEvent) {
		m.sessionEvents.WithLabelValues(string(evt.Kind), evt.Reason).Inc()
	})
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
