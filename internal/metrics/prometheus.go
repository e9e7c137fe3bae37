// Package metrics defines the Prometheus collectors exported by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transcription outcomes used as label values
const (
	OutcomeSuccess        = "success"
	OutcomeServiceError   = "service_error"
	OutcomeTransportError = "transport_error"
)

// Metrics contains all Prometheus metrics for the transcription service
type Metrics struct {
	Registry *prometheus.Registry

	// Transcription metrics
	TranscriptionRequests *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
	TranscriptionsReused  prometheus.Counter
	UtterancesReturned    prometheus.Histogram

	// Upload metrics
	UploadSize      prometheus.Histogram
	UploadsRejected *prometheus.CounterVec

	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsRemoved *prometheus.CounterVec
	SessionLifetime prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		// Transcription metrics
		TranscriptionRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "diarize_transcription_requests_total",
			Help: "Transcription attempts sent to the service, by outcome",
		}, []string{"outcome"}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "diarize_transcription_duration_seconds",
			Help:    "Wall time of upload, transcription and polling",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),
		TranscriptionsReused: factory.NewCounter(prometheus.CounterOpts{
			Name: "diarize_transcriptions_reused_total",
			Help: "Submissions answered from the session without calling the service",
		}),
		UtterancesReturned: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "diarize_utterances_per_transcript",
			Help:    "Number of utterances in completed transcripts",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),

		// Upload metrics
		UploadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "diarize_upload_size_bytes",
			Help:    "Size of uploaded audio files",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 12), // 64KB to ~128MB
		}),
		UploadsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "diarize_uploads_rejected_total",
			Help: "Uploads refused before transcription, by reason",
		}, []string{"reason"}),

		// Session metrics
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "diarize_active_sessions",
			Help: "Current number of browser sessions",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "diarize_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		SessionsRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "diarize_sessions_removed_total",
			Help: "Total number of sessions removed, by reason",
		}, []string{"reason"}),
		SessionLifetime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "diarize_session_lifetime_seconds",
			Help:    "Lifetime of removed sessions",
			Buckets: prometheus.ExponentialBuckets(60, 2, 8), // 1 minute to ~4 hours
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "diarize_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "diarize_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "diarize_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordTranscription records a finished transcription attempt
func (m *Metrics) RecordTranscription(outcome string, durationSeconds float64, utterances int) {
	m.TranscriptionRequests.WithLabelValues(outcome).Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
	if outcome == OutcomeSuccess {
		m.UtterancesReturned.Observe(float64(utterances))
	}
}

// RecordTranscriptionReused increments the reused-result counter
func (m *Metrics) RecordTranscriptionReused() {
	m.TranscriptionsReused.Inc()
}

// RecordUpload records the size of an accepted upload
func (m *Metrics) RecordUpload(sizeBytes int) {
	m.UploadSize.Observe(float64(sizeBytes))
}

// RecordUploadRejected records an upload refused for reason
func (m *Metrics) RecordUploadRejected(reason string) {
	m.UploadsRejected.WithLabelValues(reason).Inc()
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionRemoved records a removed session and its lifetime
func (m *Metrics) RecordSessionRemoved(reason string, lifetimeSeconds float64) {
	m.SessionsRemoved.WithLabelValues(reason).Inc()
	m.SessionLifetime.Observe(lifetimeSeconds)
}

// SetActiveSessions sets the current number of sessions
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
