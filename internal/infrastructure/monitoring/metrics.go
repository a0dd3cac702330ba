package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bpforge"

// Metrics holds all Prometheus metrics on a private registry
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Pipeline metrics
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	RunsActive        prometheus.Gauge
	ComponentsTotal   *prometheus.CounterVec
	ComponentDuration *prometheus.HistogramVec
	Verdicts          *prometheus.CounterVec
	VerdictScore      prometheus.Histogram
	Transitions       *prometheus.CounterVec
	Rejections        *prometheus.CounterVec

	// Synthesizer metrics
	SynthesisCalls    *prometheus.CounterVec
	SynthesisDuration *prometheus.HistogramVec

	// Sandbox metrics
	SandboxExecutions *prometheus.CounterVec
	SandboxDuration   prometheus.Histogram

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON stats endpoint
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	AvgLatencyMS      float64 `json:"avg_latency_ms"`
	Runs              int64   `json:"runs"`
	RunsPassed        int64   `json:"runs_passed"`
	ActiveRuns        int64   `json:"active_runs"`
	SynthesisCalls    int64   `json:"synthesis_calls"`
	Rejections        int64   `json:"rejections"`
	ActiveConnections int64   `json:"active_connections"`
	UptimeSeconds     float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a metrics collector backed by its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{registry: reg, startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	m.RequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "path"})
	m.RequestSize = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_size_bytes",
		Help:      "HTTP request size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})
	m.ResponseSize = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	m.RunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Pipeline runs by overall result",
	}, []string{"result"})
	m.RunDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Pipeline run duration in seconds",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	})
	m.RunsActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "runs_active",
		Help:      "Pipeline runs in progress",
	})
	m.ComponentsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "components_total",
		Help:      "Components processed by final status",
	}, []string{"status"})
	m.ComponentDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "component_duration_seconds",
		Help:      "Per-component synthesis, validation and healing time",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"status"})
	m.Verdicts = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verdicts_total",
		Help:      "Validation gate verdicts",
	}, []string{"passed"})
	m.VerdictScore = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "verdict_score",
		Help:      "Validation gate composite scores",
		Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
	})
	m.Transitions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "healing_transitions_total",
		Help:      "Self-healing state transitions",
	}, []string{"from", "to"})
	m.Rejections = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blueprint_rejections_total",
		Help:      "Blueprints rejected before synthesis, by stage",
	}, []string{"stage"})

	m.SynthesisCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "synthesis_calls_total",
		Help:      "Synthesizer calls by outcome",
	}, []string{"outcome"})
	m.SynthesisDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "synthesis_duration_seconds",
		Help:      "Synthesizer call duration in seconds",
		Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	m.SandboxExecutions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sandbox_executions_total",
		Help:      "Sandbox script executions by outcome",
	}, []string{"outcome"})
	m.SandboxDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sandbox_execution_duration_seconds",
		Help:      "Sandbox script execution time in seconds",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5},
	})

	m.WSConnections = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
	m.WSMessages = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_messages_total",
		Help:      "Total number of WebSocket messages",
	}, []string{"direction", "type"})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Server uptime in seconds",
	}, func() float64 { return time.Since(m.startTime).Seconds() })

	return m
}

// Registry returns the registry all metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// ObserveVerdict records one validation gate verdict
func (m *Metrics) ObserveVerdict(passed bool, score float64) {
	m.Verdicts.WithLabelValues(strconv.FormatBool(passed)).Inc()
	m.VerdictScore.Observe(score)
}

// ObserveTransition records one healing state transition
func (m *Metrics) ObserveTransition(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

// ObserveComponent records a component reaching its final status
func (m *Metrics) ObserveComponent(status string, duration time.Duration) {
	m.ComponentsTotal.WithLabelValues(status).Inc()
	m.ComponentDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// ObserveRun records a finished pipeline run
func (m *Metrics) ObserveRun(passed bool, duration time.Duration) {
	result := "failed"
	if passed {
		result = "passed"
	}
	m.RunsTotal.WithLabelValues(result).Inc()
	m.RunDuration.Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Runs++
	if passed {
		m.snapshot.RunsPassed++
	}
	m.mu.Unlock()
}

// ObserveSynthesis records one synthesizer call
func (m *Metrics) ObserveSynthesis(outcome string, duration time.Duration) {
	m.SynthesisCalls.WithLabelValues(outcome).Inc()
	m.SynthesisDuration.WithLabelValues(outcome).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.SynthesisCalls++
	m.mu.Unlock()
}

// RunStarted marks a run in progress; the returned func marks it done
func (m *Metrics) RunStarted() func() {
	m.RunsActive.Inc()
	m.mu.Lock()
	m.snapshot.ActiveRuns++
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.RunsActive.Dec()
			m.mu.Lock()
			m.snapshot.ActiveRuns--
			m.mu.Unlock()
		})
	}
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// RecordRejection counts a blueprint rejected at stage (parse, expansion or graph)
func (m *Metrics) RecordRejection(stage string) {
	m.Rejections.WithLabelValues(stage).Inc()

	m.mu.Lock()
	m.snapshot.Rejections++
	m.mu.Unlock()
}

// Snapshot returns the current JSON-friendly metric values
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	s := m.snapshot
	m.mu.RUnlock()

	if s.TotalRequests > 0 {
		s.AvgLatencyMS = s.totalDuration / float64(s.TotalRequests) * 1000
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
