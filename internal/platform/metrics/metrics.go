package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the lesson VOD pipeline.
type Metrics struct {
	registry               *prometheus.Registry
	requestsTotal          prometheus.Counter
	errorsTotal            prometheus.Counter
	uploadsTotal           prometheus.Counter
	transcodesTotal        prometheus.Counter
	transcodeFailuresTotal prometheus.Counter
	pathEscapesTotal       prometheus.Counter
	activeTranscodes       prometheus.Gauge
}

// New creates and registers Prometheus metrics for the pipeline.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	uploadsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_uploads_total",
		Help: "Total number of video uploads accepted for transcoding",
	})
	transcodesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_transcodes_total",
		Help: "Total number of successfully verified transcodes",
	})
	transcodeFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_transcode_failures_total",
		Help: "Total number of failed or incomplete transcodes",
	})
	pathEscapesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vod_path_escapes_total",
		Help: "Total number of rejected path traversal attempts",
	})
	activeTranscodes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vod_active_transcodes",
		Help: "Number of transcodes currently in flight",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		uploadsTotal,
		transcodesTotal,
		transcodeFailuresTotal,
		pathEscapesTotal,
		activeTranscodes,
	)

	return &Metrics{
		registry:               registry,
		requestsTotal:          requestsTotal,
		errorsTotal:            errorsTotal,
		uploadsTotal:           uploadsTotal,
		transcodesTotal:        transcodesTotal,
		transcodeFailuresTotal: transcodeFailuresTotal,
		pathEscapesTotal:       pathEscapesTotal,
		activeTranscodes:       activeTranscodes,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncUploads increments the accepted uploads counter.
func (m *Metrics) IncUploads() {
	m.uploadsTotal.Inc()
}

// IncTranscodes increments the successful transcodes counter.
func (m *Metrics) IncTranscodes() {
	m.transcodesTotal.Inc()
}

// IncTranscodeFailures increments the failed transcodes counter.
func (m *Metrics) IncTranscodeFailures() {
	m.transcodeFailuresTotal.Inc()
}

// IncPathEscapes increments the rejected traversal attempts counter.
func (m *Metrics) IncPathEscapes() {
	m.pathEscapesTotal.Inc()
}

// SetActiveTranscodes sets the in-flight transcodes gauge.
func (m *Metrics) SetActiveTranscodes(n int) {
	m.activeTranscodes.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active transcodes).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
