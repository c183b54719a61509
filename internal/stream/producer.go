// Package stream carries row-level change events between the store and
// the reconciler over Kafka. Events are keyed by row id so updates for
// one emergency stay ordered within a partition; consumers must still
// tolerate cross-partition reordering.
package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/roadside-dispatch/internal/models"
)

// Publisher is implemented by the Kafka producer and by test fakes.
type Publisher interface {
	Publish(ctx context.Context, ev models.ChangeEvent) error
}

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaProducer{writer: w}
}

func (k *KafkaProducer) Publish(ctx context.Context, ev models.ChangeEvent) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.Row.ID), Value: b})
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// LocationProducer publishes provider position updates for the consumer
// binary to fold into the Redis geo index.
type LocationProducer struct {
	writer *kafka.Writer
}

func NewLocationProducer(brokers []string, topic string) *LocationProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &LocationProducer{writer: w}
}

func (k *LocationProducer) PublishLocation(ctx context.Context, p models.Provider) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(p.ID), Value: b})
}

func (k *LocationProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
