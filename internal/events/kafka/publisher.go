// Package kafka mirrors pipeline events onto a Kafka topic so downstream
// compliance consumers get a durable feed alongside the best-effort live
// stream.
package kafka

import (
	"context"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"consentry/internal/events"
)

// Publisher produces event frames to a single topic. Delivery is
// asynchronous; produce failures are logged and dropped, matching the
// fire-and-forget contract of events.Publisher.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects a Kafka producer.
func New(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Publish implements events.Publisher.
func (p *Publisher) Publish(ctx context.Context, event events.Event) {
	frame, err := event.MarshalJSON()
	if err != nil {
		p.logger.ErrorContext(ctx, "kafka event marshal failed", "type", event.Type, "error", err)
		return
	}

	record := &kgo.Record{Topic: p.topic, Value: frame}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("kafka produce failed", "topic", p.topic, "type", event.Type, "error", err)
		}
	})
}

// Close flushes outstanding records and releases the client.
func (p *Publisher) Close() {
	p.client.Close()
}
