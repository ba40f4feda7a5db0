package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message is one record to publish. Value is sent as-is when it is []byte or
// string, and JSON encoded otherwise.
type Message struct {
	Key     []byte
	Value   interface{}
	Headers map[string]string
}

// Producer publishes JSON records through a kafka-go writer.
type Producer struct {
	writer *kafka.Writer
	codec  string
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, errNoBrokers
	}

	initProducerMetricsOnce()
	return &Producer{writer: cfg.writer(), codec: cfg.Compression}, nil
}

// Publish sends a single keyed record.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
}

// PublishMessage sends an unkeyed record. It satisfies logger.Publisher.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Publish(ctx, topic, nil, payload)
}

// PublishBatch encodes every message first and writes them in one call, so
// an encoding failure sends nothing.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	start := time.Now()
	now := start.UTC()
	out := make([]kafka.Message, len(messages))
	var size int64
	for i, m := range messages {
		v, err := encodeValue(m.Value)
		if err != nil {
			return err
		}
		out[i] = kafka.Message{Topic: topic, Key: m.Key, Value: v, Headers: toHeaders(m.Headers), Time: now}
		size += int64(len(v))
	}

	err := p.writer.WriteMessages(ctx, out...)
	p.observe(topic, size, len(out), time.Since(start), err)
	return err
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *Producer) observe(topic string, size int64, n int, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		producerErrors.WithLabelValues(topic).Inc()
	}
	producerMessages.WithLabelValues(topic, p.codec, result).Add(float64(n))
	producerBytes.WithLabelValues(topic, p.codec).Add(float64(size))
	producerPublishSeconds.WithLabelValues(topic).Observe(took.Seconds())
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return b, nil
}

func toHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(h))
	for k, v := range h {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

var (
	producerMessages       *prometheus.CounterVec
	producerErrors         *prometheus.CounterVec
	producerBytes          *prometheus.CounterVec
	producerPublishSeconds *prometheus.HistogramVec
	producerOnce           sync.Once
)

func initProducerMetricsOnce() {
	producerOnce.Do(func() {
		producerMessages = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stocksight_kafka_producer_messages_total",
			Help: "Published messages by outcome",
		}, []string{"topic", "compression", "result"})
		producerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stocksight_kafka_producer_errors_total",
			Help: "Failed publish calls",
		}, []string{"topic"})
		producerBytes = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stocksight_kafka_producer_bytes_total",
			Help: "Encoded payload bytes handed to the writer",
		}, []string{"topic", "compression"})
		producerPublishSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stocksight_kafka_producer_publish_seconds",
			Help:    "Time spent in WriteMessages",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})
	})
}
