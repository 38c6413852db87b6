package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry           *prometheus.Registry
	registryOnce       sync.Once
	defaultMetricsPath = "/metrics"
	metricsEnabled     = false

	// Inbound protocol metrics
	FramesReceived    *prometheus.CounterVec
	DecodeErrors      *prometheus.CounterVec
	UnknownFrames     prometheus.Counter
	InsightsDecoded   *prometheus.CounterVec
	InsightsSkipped   prometheus.Counter
	AssistanceKept    *prometheus.CounterVec
	AssistanceDropped prometheus.Counter
	TranscriptChunks  prometheus.Counter

	// Fan-out metrics
	SubscriberDrops *prometheus.CounterVec

	// Outbound metrics
	AudioChunksSent prometheus.Counter
	AudioBytesSent  prometheus.Counter

	// Connection metrics
	ConnectionStatus prometheus.Gauge
	TransportErrors  prometheus.Counter
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		FramesReceived = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liveinsights_frames_received_total",
				Help: "Total inbound frames by message type",
			},
			[]string{"type"},
		)

		DecodeErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liveinsights_decode_errors_total",
				Help: "Total decode failures by stage",
			},
			[]string{"stage"},
		)

		UnknownFrames = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "liveinsights_unknown_frames_total",
				Help: "Total frames with an unrecognized type discriminant",
			},
		)

		InsightsDecoded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liveinsights_insights_decoded_total",
				Help: "Total insights decoded by insight type",
			},
			[]string{"insight_type"},
		)

		InsightsSkipped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "liveinsights_insights_skipped_total",
				Help: "Total malformed insight entries skipped inside otherwise valid batches",
			},
		)

		AssistanceKept = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liveinsights_assistance_entries_total",
				Help: "Total proactive assistance entries decoded by kind",
			},
			[]string{"kind"},
		)

		AssistanceDropped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "liveinsights_assistance_dropped_total",
				Help: "Total proactive assistance entries dropped for missing required fields",
			},
		)

		TranscriptChunks = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "liveinsights_transcript_chunks_total",
				Help: "Total transcript chunks received",
			},
		)

		SubscriberDrops = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liveinsights_subscriber_drops_total",
				Help: "Total events dropped because a subscriber channel was full",
			},
			[]string{"channel"},
		)

		AudioChunksSent = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "liveinsights_audio_chunks_sent_total",
				Help: "Total outbound audio chunks sent",
			},
		)

		AudioBytesSent = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "liveinsights_audio_bytes_sent_total",
				Help: "Total raw audio bytes sent before base64 encoding",
			},
		)

		ConnectionStatus = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "liveinsights_connection_status",
				Help: "Connection status (1 = connected, 0 = disconnected)",
			},
		)

		TransportErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "liveinsights_transport_errors_total",
				Help: "Total transport-level errors",
			},
		)

		registry.MustRegister(
			FramesReceived,
			DecodeErrors,
			UnknownFrames,
			InsightsDecoded,
			InsightsSkipped,
			AssistanceKept,
			AssistanceDropped,
			TranscriptChunks,
			SubscriberDrops,
			AudioChunksSent,
			AudioBytesSent,
			ConnectionStatus,
			TransportErrors,
		)

		metricsEnabled = true
		logger.Debug("Metrics registry initialized")
	})
}

// GetRegistry returns the Prometheus registry
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsMetricsEnabled returns whether metrics collection is enabled
func IsMetricsEnabled() bool {
	return metricsEnabled
}

// RegisterHandler registers the metrics HTTP handler on the given mux
func RegisterHandler(mux *http.ServeMux) {
	if metricsEnabled {
		handler := promhttp.HandlerFor(
			registry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
				Registry:          registry,
			},
		)
		mux.Handle(defaultMetricsPath, handler)
	}
}

// RecordFrame records an inbound frame by message type
func RecordFrame(msgType string) {
	if metricsEnabled {
		FramesReceived.WithLabelValues(msgType).Inc()
	}
}

// RecordDecodeError records a decode failure at the given stage
func RecordDecodeError(stage string) {
	if metricsEnabled {
		DecodeErrors.WithLabelValues(stage).Inc()
	}
}

// RecordUnknownFrame records a frame with an unrecognized discriminant
func RecordUnknownFrame() {
	if metricsEnabled {
		UnknownFrames.Inc()
	}
}

// RecordInsight records a decoded insight by type
func RecordInsight(insightType string) {
	if metricsEnabled {
		InsightsDecoded.WithLabelValues(insightType).Inc()
	}
}

// RecordInsightSkipped records a malformed insight entry skipped inside a batch
func RecordInsightSkipped() {
	if metricsEnabled {
		InsightsSkipped.Inc()
	}
}

// RecordAssistance records a decoded assistance entry by kind
func RecordAssistance(kind string) {
	if metricsEnabled {
		AssistanceKept.WithLabelValues(kind).Inc()
	}
}

// RecordAssistanceDropped records an invalid assistance entry dropped from a batch
func RecordAssistanceDropped() {
	if metricsEnabled {
		AssistanceDropped.Inc()
	}
}

// RecordTranscriptChunk records a received transcript chunk
func RecordTranscriptChunk() {
	if metricsEnabled {
		TranscriptChunks.Inc()
	}
}

// RecordSubscriberDrop records an event dropped on a full subscriber channel
func RecordSubscriberDrop(channel string) {
	if metricsEnabled {
		SubscriberDrops.WithLabelValues(channel).Inc()
	}
}

// RecordAudioChunk records an outbound audio chunk of the given raw size
func RecordAudioChunk(rawBytes int) {
	if metricsEnabled {
		AudioChunksSent.Inc()
		AudioBytesSent.Add(float64(rawBytes))
	}
}

// SetConnectionStatus records the current connection state
func SetConnectionStatus(connected bool) {
	if metricsEnabled {
		if connected {
			ConnectionStatus.Set(1)
		} else {
			ConnectionStatus.Set(0)
		}
	}
}

// RecordTransportError records a transport-level error
func RecordTransportError() {
	if metricsEnabled {
		TransportErrors.Inc()
	}
}
