// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Admission results.
const (
	AdmissionAccepted  = "accepted"
	AdmissionDuplicate = "duplicate"
	AdmissionRejected  = "rejected"
)

// Fetch statuses.
const (
	FetchOK    = "ok"
	FetchError = "error"
	FetchEmpty = "empty"
)

// Sample outcomes.
const (
	SampleStored    = "stored"
	SampleDuplicate = "duplicate"
	SampleFailed    = "failed"
)

// Sandbox submission outcomes.
const (
	SandboxSubmitted = "submitted"
	SandboxFailed    = "failed"
)

var (
	admissionsTotal            *prometheus.CounterVec
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchDurationSeconds       prometheus.Histogram
	samplesTotal               *prometheus.CounterVec
	sandboxSubmissionsTotal    *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	queuePending               prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		admissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maltrieve_admissions_total",
				Help: "Candidate URLs seen by the admission gate, labeled by source and result.",
			},
			[]string{"source", "result"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maltrieve_fetches_total",
				Help: "Sample fetches, labeled by feed source and status.",
			},
			[]string{"source", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maltrieve_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by feed source.",
			},
			[]string{"source"},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "maltrieve_fetch_duration_seconds",
				Help:    "Histogram of sample fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		samplesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maltrieve_samples_total",
				Help: "Fetched payloads by outcome (stored, duplicate, failed).",
			},
			[]string{"outcome"},
		)

		sandboxSubmissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maltrieve_sandbox_submissions_total",
				Help: "Sandbox submissions, labeled by target and outcome.",
			},
			[]string{"target", "outcome"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "maltrieve_active_workers",
				Help: "Number of workers currently processing a URL.",
			},
		)

		queuePending = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "maltrieve_queue_pending",
				Help: "URLs admitted but not yet finished.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAdmission counts one admission decision.
func ObserveAdmission(source, result string) {
	Init()
	if source == "" {
		source = "unknown"
	}
	admissionsTotal.WithLabelValues(source, result).Inc()
}

// ObserveFetch records the outcome, size and latency of one fetch. Series are
// keyed by the feed that supplied the URL, never by the sample's host.
func ObserveFetch(source, status string, bytesFetched int, duration time.Duration) {
	Init()
	if source == "" {
		source = "unknown"
	}
	fetchesTotal.WithLabelValues(source, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(source).Add(float64(bytesFetched))
	}
	if duration > 0 {
		fetchDurationSeconds.Observe(duration.Seconds())
	}
}

// ObserveSample counts a payload outcome.
func ObserveSample(outcome string) {
	Init()
	samplesTotal.WithLabelValues(outcome).Inc()
}

// ObserveSandbox counts a sandbox submission outcome.
func ObserveSandbox(target, outcome string) {
	Init()
	sandboxSubmissionsTotal.WithLabelValues(target, outcome).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// SetQueuePending records how many admitted URLs are still unfinished.
func SetQueuePending(n int) {
	Init()
	queuePending.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
