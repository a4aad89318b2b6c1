// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_practice_session"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Connection metrics
	ConnectionsTotal   prometheus.Counter
	ConnectionsActive  prometheus.Gauge
	ConnectionsSuccess prometheus.Counter
	ConnectionsFailed  prometheus.Counter
	ConnectionDuration prometheus.Histogram

	// Session metrics
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter

	// Turn metrics
	TurnsRecorded    prometheus.Counter
	TurnsAfterEnd    prometheus.Counter
	FeedbackMessages prometheus.Counter
	TurnConfidence   prometheus.Histogram

	// Audio metrics
	AudioBytesUpstream    prometheus.Counter
	AudioFramesUpstream   prometheus.Counter
	AudioBytesDownstream  prometheus.Counter
	AudioChunksDownstream prometheus.Counter

	// Upstream agent metrics
	AgentEvents *prometheus.CounterVec
	AgentErrors *prometheus.CounterVec

	// Retrieval metrics
	RetrievalLatency     prometheus.Histogram
	RetrievalCacheHits   prometheus.Counter
	RetrievalCacheMisses prometheus.Counter
	RankerFallbacks      *prometheus.CounterVec
	LookupErrors         *prometheus.CounterVec

	// LLM metrics
	LLMLatency *prometheus.HistogramVec
	LLMErrors  prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of client voice connections accepted",
		}),
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently active client voice connections",
		}),
		ConnectionsSuccess: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_success_total",
			Help:      "Total number of voice connections closed cleanly",
		}),
		ConnectionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_failed_total",
			Help:      "Total number of voice connections closed on error",
		}),
		ConnectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connection_duration_seconds",
			Help:      "Duration of client voice connections in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),

		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of practice sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of practice sessions completed with a summary",
		}),

		TurnsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_recorded_total",
			Help:      "Total number of conversation turns recorded",
		}),
		TurnsAfterEnd: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_after_end_total",
			Help:      "Total number of turn records ignored because the session was completed",
		}),
		FeedbackMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_messages_total",
			Help:      "Total number of feedback messages sent to clients",
		}),
		TurnConfidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_confidence",
			Help:      "Per-turn average confidence (0-1 fraction)",
			Buckets:   []float64{0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		}),

		AudioBytesUpstream: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_upstream_total",
			Help:      "Total audio bytes relayed from clients to the voice agent",
		}),
		AudioFramesUpstream: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_upstream_total",
			Help:      "Total audio frames relayed from clients to the voice agent",
		}),
		AudioBytesDownstream: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_downstream_total",
			Help:      "Total synthesized audio bytes forwarded to clients",
		}),
		AudioChunksDownstream: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_downstream_total",
			Help:      "Total synthesized audio chunks forwarded to clients",
		}),

		AgentEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_events_total",
			Help:      "Total upstream agent events received, by type",
		}, []string{"type"}),
		AgentErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_errors_total",
			Help:      "Total upstream agent errors, by kind",
		}, []string{"kind"}),

		RetrievalLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_latency_seconds",
			Help:      "Context retrieval latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		RetrievalCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_cache_hits_total",
			Help:      "Total retrieval cache hits",
		}),
		RetrievalCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_cache_misses_total",
			Help:      "Total retrieval cache misses",
		}),
		RankerFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranker_fallbacks_total",
			Help:      "Total semantic ranker failures resolved by keyword fallback",
		}, []string{"reason"}),
		LookupErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_errors_total",
			Help:      "Total material lookup failures, by kind",
		}, []string{"kind"}),

		LLMLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_latency_seconds",
			Help:      "LLM call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"operation"}),
		LLMErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_errors_total",
			Help:      "Total LLM call failures",
		}),

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
	}
}

// RecordConnectionStart records a new client connection.
func (m *Metrics) RecordConnectionStart() {
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

// RecordConnectionEnd records a client connection ending.
func (m *Metrics) RecordConnectionEnd(success bool, durationSeconds float64) {
	m.ConnectionsActive.Dec()
	m.ConnectionDuration.Observe(durationSeconds)
	if success {
		m.ConnectionsSuccess.Inc()
	} else {
		m.ConnectionsFailed.Inc()
	}
}

// RecordSessionStarted records a practice session being created.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
}

// RecordSessionCompleted records a practice session being finalized.
func (m *Metrics) RecordSessionCompleted() {
	m.SessionsCompleted.Inc()
}

// RecordTurn records a turn appended to a session.
func (m *Metrics) RecordTurn(avgConfidence float64) {
	m.TurnsRecorded.Inc()
	m.TurnConfidence.Observe(avgConfidence)
}

// RecordTurnAfterEnd records a turn ignored because the session was completed.
func (m *Metrics) RecordTurnAfterEnd() {
	m.TurnsAfterEnd.Inc()
}

// RecordAudioUpstream records audio relayed toward the voice agent.
func (m *Metrics) RecordAudioUpstream(bytes int) {
	m.AudioBytesUpstream.Add(float64(bytes))
	m.AudioFramesUpstream.Inc()
}

// RecordAudioDownstream records synthesized audio forwarded to a client.
func (m *Metrics) RecordAudioDownstream(bytes int) {
	m.AudioBytesDownstream.Add(float64(bytes))
	m.AudioChunksDownstream.Inc()
}

// RecordAgentEvent records an upstream agent event by type.
func (m *Metrics) RecordAgentEvent(eventType string) {
	m.AgentEvents.WithLabelValues(eventType).Inc()
}

// RecordAgentError records an upstream agent error.
func (m *Metrics) RecordAgentError(kind string) {
	m.AgentErrors.WithLabelValues(kind).Inc()
}

// RecordRetrieval records one Retrieve call.
func (m *Metrics) RecordRetrieval(cacheHit bool, latencySeconds float64) {
	m.RetrievalLatency.Observe(latencySeconds)
	if cacheHit {
		m.RetrievalCacheHits.Inc()
	} else {
		m.RetrievalCacheMisses.Inc()
	}
}

// RecordRankerFallback records a semantic ranker failure.
func (m *Metrics) RecordRankerFallback(reason string) {
	m.RankerFallbacks.WithLabelValues(reason).Inc()
}

// RecordLookupError records a failed material lookup.
func (m *Metrics) RecordLookupError(kind string) {
	m.LookupErrors.WithLabelValues(kind).Inc()
}

// RecordLLMCall records an LLM call attempt.
func (m *Metrics) RecordLLMCall(operation string, err error, latencySeconds float64) {
	m.LLMLatency.WithLabelValues(operation).Observe(latencySeconds)
	if err != nil {
		m.LLMErrors.Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
