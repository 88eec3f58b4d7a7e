package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher writes events to a Kafka topic. Publishing is synchronous:
// audit-run records are compliance artifacts, so a lost event should surface
// as an error rather than vanish from an async buffer.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// KafkaOption configures the publisher.
type KafkaOption func(*KafkaPublisher)

func WithLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) { p.logger = logger }
}

// NewKafka connects to the brokers and ensures the topic exists.
func NewKafka(ctx context.Context, brokers []string, topic string, opts ...KafkaOption) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopic(ctx, 1, 1, nil, topic); err != nil && !isTopicExists(err) {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topic, err)
	}

	p := &KafkaPublisher{client: client, topic: topic, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Type),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	p.logger.DebugContext(ctx, "event published",
		"type", event.Type,
		"run_id", event.RunID,
	)
	return nil
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

func isTopicExists(err error) bool {
	return errors.Is(err, kerr.TopicAlreadyExists)
}
