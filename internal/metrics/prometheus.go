package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the audio relay service
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	ActiveSessions   prometheus.Gauge
	SessionsStarted  *prometheus.CounterVec
	SessionsFinished *prometheus.CounterVec
	SessionDuration  prometheus.Histogram

	// Playback metrics
	BytesStreamed  prometheus.Counter
	ChunksStreamed prometheus.Counter

	// Transcoding metrics
	TranscodeRequests prometheus.Counter
	TranscodeFailures prometheus.Counter
	TranscodeDuration prometheus.Histogram

	// Echo metrics
	EchoFramesRelayed prometheus.Counter
	EchoBytesRelayed  prometheus.Counter
	EchoTextsRejected prometheus.Counter

	// Webhook metrics
	CallbacksReceived prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics on a private registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_sessions",
			Help: "Current number of active websocket sessions",
		}),
		SessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_sessions_started_total",
			Help: "Total number of sessions started, by kind",
		}, []string{"kind"}),
		SessionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_sessions_finished_total",
			Help: "Total number of sessions finished, by kind and outcome",
		}, []string{"kind", "outcome"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_session_duration_seconds",
			Help:    "Duration of websocket sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7 minutes
		}),

		BytesStreamed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_bytes_streamed_total",
			Help: "Total number of audio bytes streamed to peers",
		}),
		ChunksStreamed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_chunks_streamed_total",
			Help: "Total number of audio chunks streamed to peers",
		}),

		TranscodeRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_transcode_requests_total",
			Help: "Total number of transcoding pipeline invocations",
		}),
		TranscodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_transcode_failures_total",
			Help: "Total number of failed transcoding pipeline invocations",
		}),
		TranscodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_transcode_duration_seconds",
			Help:    "Duration of transcoding pipeline invocations",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 11), // 50ms to ~1 minute
		}),

		EchoFramesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_echo_frames_total",
			Help: "Total number of binary frames echoed back to peers",
		}),
		EchoBytesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_echo_bytes_total",
			Help: "Total number of binary bytes echoed back to peers",
		}),
		EchoTextsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_echo_texts_rejected_total",
			Help: "Total number of text frames rejected on the echo channel",
		}),

		CallbacksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_callbacks_received_total",
			Help: "Total number of call-event callbacks received",
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of HTTP requests by method, endpoint and status",
		}, []string{"method", "endpoint", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"method", "endpoint"}),
	}
}

// Handler returns an http.Handler serving this registry's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, seconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(seconds)
}
