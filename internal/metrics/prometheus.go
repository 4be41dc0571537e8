// Package metrics defines the Prometheus instrumentation shared by the
// voice assistant client and the development assistant server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice assistant tools.
type Metrics struct {
	// Capture session metrics
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionDuration   prometheus.Histogram
	ChunksCaptured    prometheus.Counter
	BytesCaptured     prometheus.Counter

	// Upload metrics
	UploadRequests  prometheus.Counter
	UploadSuccesses prometheus.Counter
	UploadFailures  prometheus.Counter
	UploadDuration  prometheus.Histogram
	PayloadSize     prometheus.Histogram

	// Response handling metrics
	DecodeFailures   prometheus.Counter
	Playbacks        prometheus.Counter
	PlaybackFailures prometheus.Counter

	// Assistant server metrics
	SynthesisRequests prometheus.Counter
	SynthesisDuration prometheus.Histogram
	RegisteredVoices  prometheus.Gauge

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsFor(prometheus.DefaultRegisterer)
}

// NewMetricsFor creates all metrics on the given registerer. Tests use
// this with a private registry to avoid duplicate registration.
func NewMetricsFor(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceassist_sessions_started_total",
			Help: "Total number of capture sessions started",
		}),
		SessionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceassist_sessions_completed_total",
			Help: "Total number of capture sessions stopped and submitted",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceassist_session_duration_seconds",
			Help:    "Duration of capture sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),
		ChunksCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceassist_chunks_captured_total",
			Help: "Total number of audio chunks delivered by the recorder",
		}),
		BytesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceassist_bytes_captured_total",
			Help: "Total number of audio bytes captured",
		}),

		UploadRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceassist_upload_requests_total",
			Help: "Total number of assistant upload requests sent",
		}),
		UploadSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceassist_upload_successes_total",
			Help: "Total number of successful assistant uploads",
		}),
		UploadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceassist_upload_failures_total",
			Help: "Total number of failed assistant uploads",
		}),
		UploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceassist_upload_duration_seconds",
			Help:    "Duration of assistant upload requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		PayloadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceassist_payload_size_bytes",
			Help:    "Size of uploaded audio payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		DecodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceassist_decode_failures_total",
			Help: "Total number of malformed assistant responses",
		}),
		Playbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceassist_playbacks_total",
			Help: "Total number of synthesized replies played",
		}),
		PlaybackFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceassist_playback_failures_total",
			Help: "Total number of playback failures",
		}),

		SynthesisRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "voiceassist_synthesis_requests_total",
			Help: "Total number of assistant synthesis requests handled",
		}),
		SynthesisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voiceassist_synthesis_duration_seconds",
			Help:    "Duration of transcribe-chat-synthesize round trips",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		RegisteredVoices: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voiceassist_registered_voices",
			Help: "Current number of registered voice profiles",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceassist_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voiceassist_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceassist_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordSessionStarted increments the sessions started counter.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
}

// RecordSessionCompleted records a stopped session and its duration.
func (m *Metrics) RecordSessionCompleted(durationSeconds float64) {
	m.SessionsCompleted.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordChunk records one delivered capture chunk.
func (m *Metrics) RecordChunk(sizeBytes int) {
	m.ChunksCaptured.Inc()
	m.BytesCaptured.Add(float64(sizeBytes))
}

// RecordUploadStarted records an upload attempt and its payload size.
func (m *Metrics) RecordUploadStarted(payloadBytes int) {
	m.UploadRequests.Inc()
	m.PayloadSize.Observe(float64(payloadBytes))
}

// RecordUploadSuccess records a successful upload.
func (m *Metrics) RecordUploadSuccess(durationSeconds float64) {
	m.UploadSuccesses.Inc()
	m.UploadDuration.Observe(durationSeconds)
}

// RecordUploadFailure records a failed upload.
func (m *Metrics) RecordUploadFailure(durationSeconds float64) {
	m.UploadFailures.Inc()
	m.UploadDuration.Observe(durationSeconds)
}

// RecordDecodeFailure increments the malformed-response counter.
func (m *Metrics) RecordDecodeFailure() {
	m.DecodeFailures.Inc()
}

// RecordPlayback records a playback attempt.
func (m *Metrics) RecordPlayback(err error) {
	m.Playbacks.Inc()
	if err != nil {
		m.PlaybackFailures.Inc()
	}
}

// RecordSynthesis records a handled synthesis request.
func (m *Metrics) RecordSynthesis(durationSeconds float64) {
	m.SynthesisRequests.Inc()
	m.SynthesisDuration.Observe(durationSeconds)
}

// SetRegisteredVoices sets the current voice registry size.
func (m *Metrics) SetRegisteredVoices(count int) {
	m.RegisteredVoices.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error.
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
