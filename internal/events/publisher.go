// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-practice-session-service/internal/models"
	"ai-practice-session-service/internal/observability/metrics"
)

// TurnEvent is published for every final user turn.
type TurnEvent struct {
	EventType string      `json:"eventType"`
	SessionID string      `json:"sessionId"`
	UserID    string      `json:"userId"`
	Turn      models.Turn `json:"turn"`
}

// SessionCompletedEvent is published when a session is finalized.
type SessionCompletedEvent struct {
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	UserID    string          `json:"userId"`
	Summary   *models.Summary `json:"summary"`
}

// Publisher publishes practice events to separate Kafka topics.
type Publisher struct {
	writerTurns    *kafka.Writer
	writerSessions *kafka.Writer
	principal      string
	topicTurns     string
	topicSessions  string
	enabled        bool
	metrics        *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicTurns    string
	TopicSessions string
	Principal     string
	Enabled       bool
}

// New creates a new Kafka event publisher with separate topics for turn
// finals and completed sessions.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	// Handle nil config case
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:     cfg.Principal,
			topicTurns:    cfg.TopicTurns,
			topicSessions: cfg.TopicSessions,
			enabled:       false,
			metrics:       m,
		}
	}

	// Create a custom dialer with longer timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerTurns := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicTurns,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerSessions := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicSessions,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTurns", cfg.TopicTurns).
		Str("topicSessions", cfg.TopicSessions).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerTurns:    writerTurns,
		writerSessions: writerSessions,
		principal:      cfg.Principal,
		topicTurns:     cfg.TopicTurns,
		topicSessions:  cfg.TopicSessions,
		enabled:        true,
		metrics:        m,
	}
}

// PublishTurn publishes a final user turn event to the turns topic.
func (p *Publisher) PublishTurn(ctx context.Context, key string, event TurnEvent) error {
	return p.publish(ctx, p.writerTurns, p.topicTurns, "turn", key, event)
}

// PublishSessionCompleted publishes a completed session summary to the
// sessions topic.
func (p *Publisher) PublishSessionCompleted(ctx context.Context, key string, event SessionCompletedEvent) error {
	return p.publish(ctx, p.writerSessions, p.topicSessions, "session", key, event)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	// Log the event
	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(topic)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTurns != nil {
		if e := p.writerTurns.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing turns writer")
			err = e
		}
	}
	if p.writerSessions != nil {
		if e := p.writerSessions.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing sessions writer")
			err = e
		}
	}
	return err
}
