// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "speech_capture"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session lifecycle metrics
	SessionsCreated prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsStopped prometheus.Counter
	SessionsFailed  prometheus.Counter
	SessionDuration prometheus.Histogram

	// Audio metrics
	AudioBytesReceived prometheus.Counter
	AudioFeedsRejected prometheus.Counter

	// Streaming path metrics
	StreamingMessages *prometheus.CounterVec
	StreamingTimeouts prometheus.Counter
	StreamingSegments prometheus.Counter
	StreamingFailures *prometheus.CounterVec
	StreamingDrain    prometheus.Histogram

	// HTTP API metrics
	RequestDuration *prometheus.HistogramVec

	// Batch path metrics
	BatchJobs         prometheus.Counter
	BatchPollAttempts prometheus.Histogram
	BatchFailures     *prometheus.CounterVec
	BatchSkippedSize  prometheus.Counter

	// Handoff metrics
	HandoffPublished prometheus.Counter
	HandoffFailed    prometheus.Counter
}

// DefaultMetrics is the shared metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of capture sessions created",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions not yet terminal",
		}),
		SessionsStopped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_stopped_total",
			Help:      "Total number of sessions that reached STOPPED",
		}),
		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of sessions that reached ERROR",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall-clock session duration from create to terminal state",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),

		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total raw audio bytes buffered across sessions",
		}),
		AudioFeedsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_feeds_rejected_total",
			Help:      "Total audio feeds rejected by session state or limits",
		}),

		StreamingMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streaming_messages_total",
			Help:      "Total realtime provider messages by kind",
		}, []string{"kind"}),
		StreamingTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streaming_read_timeouts_total",
			Help:      "Total per-read timeouts in the realtime receive loop",
		}),
		StreamingSegments: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streaming_segments_total",
			Help:      "Total transcript segments produced by the realtime path",
		}),
		StreamingFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streaming_failures_total",
			Help:      "Total realtime path failures by error type",
		}, []string{"error_type"}),
		StreamingDrain: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "streaming_drain_seconds",
			Help:      "Time spent in the realtime send and receive loops",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Session API request latency by route and status",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"method", "route", "status"}),

		BatchJobs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_jobs_total",
			Help:      "Total batch transcription jobs submitted",
		}),
		BatchPollAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_poll_attempts",
			Help:      "Polling attempts needed for a batch job to finish",
			Buckets:   []float64{1, 2, 3, 5, 10, 15, 20, 30},
		}),
		BatchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_failures_total",
			Help:      "Total batch path failures by error type",
		}, []string{"error_type"}),
		BatchSkippedSize: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_skipped_size_total",
			Help:      "Batch runs skipped because the audio exceeded the size ceiling",
		}),

		HandoffPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoff_published_total",
			Help:      "Finalized results handed off to the scoring collaborator",
		}),
		HandoffFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handoff_failed_total",
			Help:      "Scoring handoffs that failed (session result unaffected)",
		}),
	}
}

// RecordSessionCreated records a new session.
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session reaching a terminal state.
func (m *Metrics) RecordSessionEnd(stopped bool, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
	if stopped {
		m.SessionsStopped.Inc()
	} else {
		m.SessionsFailed.Inc()
	}
}

// RecordAudioReceived records buffered audio bytes.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
}

// RecordAudioRejected records a rejected audio feed.
func (m *Metrics) RecordAudioRejected() {
	m.AudioFeedsRejected.Inc()
}

// RecordStreamingMessage records one received realtime provider message.
func (m *Metrics) RecordStreamingMessage(kind string) {
	m.StreamingMessages.WithLabelValues(kind).Inc()
}

// RecordStreamingTimeout records one per-read timeout in the receive loop.
func (m *Metrics) RecordStreamingTimeout() {
	m.StreamingTimeouts.Inc()
}

// RecordStreamingResult records the realtime path outcome for one session.
func (m *Metrics) RecordStreamingResult(segments int, errType string, drainSeconds float64) {
	m.StreamingSegments.Add(float64(segments))
	m.StreamingDrain.Observe(drainSeconds)
	if errType != "" {
		m.StreamingFailures.WithLabelValues(errType).Inc()
	}
}

// RecordRequest records one session API request.
func (m *Metrics) RecordRequest(method, route, status string, seconds float64) {
	m.RequestDuration.WithLabelValues(method, route, status).Observe(seconds)
}

// RecordBatchResult records the batch path outcome for one session.
func (m *Metrics) RecordBatchResult(errType string) {
	m.BatchJobs.Inc()
	if errType != "" {
		m.BatchFailures.WithLabelValues(errType).Inc()
	}
}

// RecordBatchPollAttempts records how many polls a completed job needed.
func (m *Metrics) RecordBatchPollAttempts(attempts int) {
	m.BatchPollAttempts.Observe(float64(attempts))
}

// RecordBatchSkipped records a batch run skipped by the size guard.
func (m *Metrics) RecordBatchSkipped() {
	m.BatchSkippedSize.Inc()
}

// RecordHandoff records a scoring handoff attempt.
func (m *Metrics) RecordHandoff(err error) {
	if err != nil {
		m.HandoffFailed.Inc()
		return
	}
	m.HandoffPublished.Inc()
}
