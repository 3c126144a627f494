// Package events hands finalized sessions off to the scoring pipeline.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"speech-capture-service/internal/intelligence"
	"speech-capture-service/internal/observability/metrics"
	"speech-capture-service/internal/schema"
	"speech-capture-service/internal/transcript"
)

// ScoringEvent is the handoff payload for one finalized session.
type ScoringEvent struct {
	SessionID       string                  `json:"sessionId"`
	CompletedAt     time.Time               `json:"completedAt"`
	Language        string                  `json:"language,omitempty"`
	DurationSeconds float64                 `json:"durationSeconds"`
	Transcript      transcript.Collection   `json:"transcript"`
	Annotations     *transcript.Annotations `json:"annotations,omitempty"`
	Report          intelligence.Report     `json:"report"`
}

// Publisher publishes scoring events to Kafka. Delivery is best-effort: the
// session outcome never depends on the handoff.
type Publisher struct {
	writer    *kafka.Writer
	principal string
	topic     string
	enabled   bool
	metrics   *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers   []string
	Topic     string
	Principal string
	Enabled   bool
}

// New creates a scoring-event publisher. A nil or disabled config yields a
// log-only publisher so the rest of the service needs no Kafka special cases.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

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
			principal: cfg.Principal,
			topic:     cfg.Topic,
			enabled:   false,
			metrics:   m,
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

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writer:    writer,
		principal: cfg.Principal,
		topic:     cfg.Topic,
		enabled:   true,
		metrics:   m,
	}
}

// Publish sends one scoring event, keyed by session id.
func (p *Publisher) Publish(ctx context.Context, event ScoringEvent) error {
	if err := schema.ValidateScoringEvent(event.SessionID, event.CompletedAt, event.Report.DeliveryScore); err != nil {
		log.Error().Err(err).Str("topic", p.topic).Msg("Refusing to publish invalid scoring event")
		p.metrics.RecordHandoff(err)
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", p.topic).Msg("Failed to marshal scoring event")
		p.metrics.RecordHandoff(err)
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", p.topic).
		Str("sessionId", event.SessionID).
		RawJSON("payload", payload).
		Msg("Publishing scoring event")

	// If Kafka is disabled, just log
	if !p.enabled || p.writer == nil {
		p.metrics.RecordHandoff(nil)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(event.SessionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte("session.scoring.requested")},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", p.topic).
			Str("sessionId", event.SessionID).
			Msg("Failed to write to Kafka")
		p.metrics.RecordHandoff(err)
		return err
	}

	p.metrics.RecordHandoff(nil)
	return nil
}

// Close closes the Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing Kafka writer")
		return err
	}
	return nil
}
