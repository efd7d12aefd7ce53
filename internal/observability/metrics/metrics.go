// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "media_transcription"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Upload metrics
	UploadsActive     prometheus.Gauge
	UploadsTotal      *prometheus.CounterVec
	UploadBytes       prometheus.Counter
	ExtractionLatency *prometheus.HistogramVec
	ExtractionErrors  *prometheus.CounterVec

	// Temp file metrics
	TempFilesRemoved      prometheus.Counter
	TempFileCleanupErrors prometheus.Counter

	// ffmpeg metrics
	FFmpegRuns             *prometheus.CounterVec
	FFmpegDuration         prometheus.Histogram
	SubprocessesTerminated prometheus.Counter

	// STT metrics
	STTSegments         *prometheus.CounterVec
	STTPartials         *prometheus.CounterVec
	STTErrors           *prometheus.CounterVec
	StreamBytes         *prometheus.CounterVec
	StreamLimitExceeded *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// gRPC metrics
	GRPCCalls *prometheus.CounterVec

	// Ready is 1 while models are loaded and uploads are accepted.
	Ready prometheus.Gauge
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"route"}),

		UploadsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uploads_active",
			Help:      "Number of uploads currently being processed",
		}),
		UploadsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of uploads by category and outcome",
		}, []string{"category", "outcome"}),
		UploadBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Total bytes persisted from uploads",
		}),
		ExtractionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Text extraction latency by category and method",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"category", "method"}),
		ExtractionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_errors_total",
			Help:      "Total number of failed extractions by error kind",
		}, []string{"kind"}),

		TempFilesRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temp_files_removed_total",
			Help:      "Total number of request temp files removed",
		}),
		TempFileCleanupErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "temp_file_cleanup_errors_total",
			Help:      "Total number of temp file removals that failed",
		}),

		FFmpegRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ffmpeg_runs_total",
			Help:      "Total number of ffmpeg invocations by result",
		}, []string{"result"}),
		FFmpegDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ffmpeg_duration_seconds",
			Help:      "Duration of ffmpeg audio extraction",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		SubprocessesTerminated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subprocesses_terminated_total",
			Help:      "Total number of subprocesses killed at shutdown",
		}),

		STTSegments: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_segments_total",
			Help:      "Total number of finalized transcript segments",
		}, []string{"method"}),
		STTPartials: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_partials_total",
			Help:      "Total number of partial results received from recognizers",
		}, []string{"method"}),
		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of recognizer errors",
		}, []string{"method"}),
		StreamBytes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_audio_bytes_total",
			Help:      "Total audio bytes fed to streaming recognizers",
		}, []string{"method"}),
		StreamLimitExceeded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_limit_exceeded_total",
			Help:      "Total number of times a stream limit was exceeded",
		}, []string{"limit_type"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		GRPCCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of gRPC calls by method and code",
		}, []string{"method", "code"}),

		Ready: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ready",
			Help:      "Whether the service accepts uploads",
		}),
	}
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(route, status string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(route, status).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(durationSeconds)
}

// RecordUploadStart marks an upload as in flight.
func (m *Metrics) RecordUploadStart() {
	m.UploadsActive.Inc()
}

// RecordUploadEnd records an upload outcome.
func (m *Metrics) RecordUploadEnd(category, outcome string) {
	m.UploadsActive.Dec()
	m.UploadsTotal.WithLabelValues(category, outcome).Inc()
}

// RecordUploadBytes records bytes written to a temp file.
func (m *Metrics) RecordUploadBytes(n int64) {
	m.UploadBytes.Add(float64(n))
}

// RecordExtraction records a successful extraction's latency.
func (m *Metrics) RecordExtraction(category, method string, durationSeconds float64) {
	m.ExtractionLatency.WithLabelValues(category, method).Observe(durationSeconds)
}

// RecordExtractionError records a failed extraction.
func (m *Metrics) RecordExtractionError(kind string) {
	m.ExtractionErrors.WithLabelValues(kind).Inc()
}

// RecordTempFileRemoved records a temp file removal attempt.
func (m *Metrics) RecordTempFileRemoved(err error) {
	if err != nil {
		m.TempFileCleanupErrors.Inc()
		return
	}
	m.TempFilesRemoved.Inc()
}

// RecordFFmpegRun records an ffmpeg invocation.
func (m *Metrics) RecordFFmpegRun(err error, durationSeconds float64) {
	m.FFmpegDuration.Observe(durationSeconds)
	if err != nil {
		m.FFmpegRuns.WithLabelValues("error").Inc()
		return
	}
	m.FFmpegRuns.WithLabelValues("ok").Inc()
}

// RecordSubprocessTerminated records a subprocess killed at shutdown.
func (m *Metrics) RecordSubprocessTerminated() {
	m.SubprocessesTerminated.Inc()
}

// RecordSegment records a finalized transcript segment.
func (m *Metrics) RecordSegment(method string) {
	m.STTSegments.WithLabelValues(method).Inc()
}

// RecordPartial records a partial recognizer result.
func (m *Metrics) RecordPartial(method string) {
	m.STTPartials.WithLabelValues(method).Inc()
}

// RecordSTTError records a recognizer error.
func (m *Metrics) RecordSTTError(method string) {
	m.STTErrors.WithLabelValues(method).Inc()
}

// RecordStreamAudio records audio bytes fed to a streaming recognizer.
func (m *Metrics) RecordStreamAudio(method string, bytes int) {
	m.StreamBytes.WithLabelValues(method).Add(float64(bytes))
}

// RecordLimitExceeded records when a stream limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.StreamLimitExceeded.WithLabelValues(limitType).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordGRPCCall records a gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string) {
	m.GRPCCalls.WithLabelValues(method, code).Inc()
}

// SetReady records the readiness state.
func (m *Metrics) SetReady(ready bool) {
	if ready {
		m.Ready.Set(1)
		return
	}
	m.Ready.Set(0)
}
