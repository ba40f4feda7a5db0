package repository

import (
	"context"

	"StockSight/internal/domain/models"
	"StockSight/internal/domain/repository"
	pkgkafka "StockSight/pkg/kafka"
)

// KafkaPublisher implements Publisher for Kafka.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

var _ repository.Publisher = (*KafkaPublisher)(nil)

// PublishBatch sends one message per snapshot keyed by symbol. The provenance
// of the quote travels in the "source" header.
func (p *KafkaPublisher) PublishBatch(ctx context.Context, snaps []models.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(snaps))
	for i, sn := range snaps {
		msgs[i] = snapshotMessage(sn)
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

func snapshotMessage(sn models.Snapshot) pkgkafka.Message {
	return pkgkafka.Message{
		Key:   []byte(sn.Symbol),
		Value: sn,
		Headers: map[string]string{
			"id":     sn.ID,
			"source": string(sn.Source),
		},
	}
}
