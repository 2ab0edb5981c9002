package events

import (
	"context"
	"fmt"

	"minidoodle/pkg/kafka"
	"minidoodle/pkg/middleware"
)

const schemaVersion = "1"

type producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaPublisher struct {
	producer producer
	source   string
}

func NewKafkaPublisher(p *kafka.Producer, source string) Publisher {
	return &kafkaPublisher{producer: p, source: source}
}

func (k *kafkaPublisher) Publish(ctx context.Context, evt Event) error {
	msg, err := kafka.NewMessage().
		WithKey(evt.Key).
		WithEventType(string(evt.Type)).
		WithSource(k.source).
		WithSchemaVersion(schemaVersion).
		WithCorrelationID(middleware.GetRequestID(ctx)).
		WithTimestamp(evt.OccurredAt).
		WithValue(evt).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build %s message: %w", evt.Type, err)
	}

	if err := k.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Type, err)
	}
	return nil
}
