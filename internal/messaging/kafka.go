package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"trendpulse/internal/config"
	"trendpulse/internal/core"
	"trendpulse/internal/logger"
)

// Event types carried in the message header.
const (
	EventTrendUpserted = "trend.upserted"
	EventCardsReplaced = "pitch_cards.replaced"
	EventRunFinished   = "run.finished"
)

// Event is the envelope published for every change.
type Event struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// KafkaPublisher publishes pipeline events to Kafka topics
type KafkaPublisher struct {
	brokers []string
	topics  config.Kafka

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaPublisher creates a publisher. It returns nil when no brokers
// are configured; a nil publisher drops every event.
func NewKafkaPublisher(cfg config.Kafka) *KafkaPublisher {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	return &KafkaPublisher{
		brokers: cfg.Brokers,
		topics:  cfg,
		writers: make(map[string]*kafka.Writer),
	}
}

// getWriter returns or creates a writer for a topic
func (p *KafkaPublisher) getWriter(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := p.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	p.writers[topic] = w
	return w
}

// PublishRecords emits one event per record keyed by fingerprint so a
// trend's updates stay ordered within a partition.
func (p *KafkaPublisher) PublishRecords(ctx context.Context, runID string, records []core.TrendRecord) error {
	if p == nil || len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		msg, err := message(r.Fingerprint, Event{Type: EventTrendUpserted, RunID: runID, OccurredAt: now, Payload: r})
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.write(ctx, p.topics.RecordsTopic, msgs)
}

// PublishCards emits the replaced card set for each market.
func (p *KafkaPublisher) PublishCards(ctx context.Context, cards []core.PitchCard) error {
	if p == nil || len(cards) == 0 {
		return nil
	}
	byMarket := make(map[string][]core.PitchCard)
	var order []string
	for _, c := range cards {
		if _, ok := byMarket[c.Market]; !ok {
			order = append(order, c.Market)
		}
		byMarket[c.Market] = append(byMarket[c.Market], c)
	}
	now := time.Now().UTC()
	msgs := make([]kafka.Message, 0, len(order))
	for _, market := range order {
		msg, err := message(market, Event{Type: EventCardsReplaced, OccurredAt: now, Payload: byMarket[market]})
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.write(ctx, p.topics.CardsTopic, msgs)
}

// PublishRun emits the run summary.
func (p *KafkaPublisher) PublishRun(ctx context.Context, run *core.RunSummary) error {
	if p == nil || run == nil {
		return nil
	}
	msg, err := message(run.RunID, Event{Type: EventRunFinished, RunID: run.RunID, OccurredAt: time.Now().UTC(), Payload: run})
	if err != nil {
		return err
	}
	return p.write(ctx, p.topics.RunsTopic, []kafka.Message{msg})
}

func message(key string, event Event) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}
	return kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(event.Type)}},
	}, nil
}

func (p *KafkaPublisher) write(ctx context.Context, topic string, msgs []kafka.Message) error {
	if topic == "" {
		return nil
	}
	if err := p.getWriter(topic).WriteMessages(ctx, msgs...); err != nil {
		logger.Error("Failed to publish events", err, "topic", topic, "count", len(msgs))
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	logger.Debug("Published events", "topic", topic, "count", len(msgs))
	return nil
}

// Close closes all writers
func (p *KafkaPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close writer for %s: %w", topic, err)
		}
	}
	return firstErr
}
