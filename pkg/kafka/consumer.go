package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "StockSight/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the consumer skips retries and goes straight to the
// DLQ.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic in a consumer group and feeds a handler. Messages
// of the same partition are handled in order by the same worker. Offsets are
// committed after success, or after the message reached the DLQ.
//
// Group offsets are per-partition watermarks, so committing a later message
// would also commit a failed one before it. A message that fails without
// reaching the DLQ therefore stops the consumer, and Run returns an error.
type Consumer struct {
	cfg     *ConsumerConfig
	handler MessageHandler
	reader  messageReader
	dlq     messageWriter
	l       *applogger.Logger

	closeOnce sync.Once
}

// NewConsumer creates a consumer for handler.Topic().
func NewConsumer(handler MessageHandler, opts ...ConsumerOption) (*Consumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Consumer{
		cfg:     cfg,
		handler: handler,
		reader:  cfg.reader(handler.Topic()),
		l:       applogger.Nop(),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.Hash{}}
	}

	initConsumerMetricsOnce()
	return c, nil
}

// SetLogger injects application logger.
func (c *Consumer) SetLogger(l *applogger.Logger) {
	if l != nil {
		c.l = l
	}
}

// Run fetches until ctx is done or the consumer is closed. In-flight messages
// are drained before it returns. Messages still queued at shutdown are left
// uncommitted and redelivered. A message that could neither be handled nor
// dead-lettered stops the consumer and is returned as the error.
func (c *Consumer) Run(ctx context.Context) (err error) {
	topic := c.handler.Topic()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		failErr  error
		failOnce sync.Once
	)
	fail := func(e error) {
		failOnce.Do(func() {
			failErr = e
			cancel()
		})
	}

	lanes := make([]chan kafka.Message, c.cfg.Workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, c.cfg.BufferSize)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				// Once stopping, nothing after an uncommitted message may commit.
				if runCtx.Err() != nil {
					continue
				}
				if perr := c.process(runCtx, m); perr != nil {
					fail(perr)
				}
			}
		}(lanes[i])
	}
	defer func() {
		for _, ch := range lanes {
			close(ch)
		}
		wg.Wait()
		if failErr != nil {
			err = failErr
		}
	}()

	c.l.Info("kafka consumer started",
		applogger.String("topic", topic),
		applogger.String("group", c.cfg.GroupID),
		applogger.Int("workers", c.cfg.Workers),
	)

	failures := 0
	for {
		m, err := c.reader.FetchMessage(runCtx)
		if err != nil {
			if runCtx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			failures++
			consumerFetchErrors.WithLabelValues(topic).Inc()
			c.l.Warn("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			if !sleepCtx(runCtx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, failures)) {
				return nil
			}
			continue
		}
		failures = 0

		lane := lanes[m.Partition%len(lanes)]
		select {
		case lane <- m:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(lane)))
		case <-runCtx.Done():
			return nil
		}
	}
}

// Close stops the reader and the DLQ writer.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
		if c.dlq != nil {
			if derr := c.dlq.Close(); derr != nil && err == nil {
				err = derr
			}
		}
	})
	return err
}

// process handles m and commits its offset. It returns an error only when
// m failed and was not dead-lettered, so its offset must not be passed.
func (c *Consumer) process(ctx context.Context, m kafka.Message) error {
	start := time.Now()
	err := c.handle(ctx, m.Value)
	consumerHandleSeconds.WithLabelValues(m.Topic).Observe(time.Since(start).Seconds())

	if err != nil {
		// Shutting down: leave the offset so the message is redelivered.
		if ctx.Err() != nil {
			return nil
		}
		consumerMessages.WithLabelValues(m.Topic, "error").Inc()
		c.l.Error("kafka message failed",
			applogger.String("topic", m.Topic),
			applogger.Int("partition", m.Partition),
			applogger.Int64("offset", m.Offset),
			applogger.Error(err),
		)
		if c.dlq == nil {
			return uncommitted(m, err)
		}
		if derr := c.deadLetter(ctx, m, err); derr != nil {
			c.l.Error("dlq write failed", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(derr))
			return uncommitted(m, fmt.Errorf("dlq: %w", derr))
		}
		consumerMessages.WithLabelValues(m.Topic, "dlq").Inc()
	} else {
		consumerMessages.WithLabelValues(m.Topic, "ok").Inc()
	}

	// A lost commit is covered by the next commit on the partition.
	if cerr := c.commitWithRetry(m, 3); cerr != nil {
		c.l.Warn("kafka commit failed", applogger.Int64("offset", m.Offset), applogger.Error(cerr))
	}
	return nil
}

func uncommitted(m kafka.Message, err error) error {
	return fmt.Errorf("%s partition %d offset %d left uncommitted: %w", m.Topic, m.Partition, m.Offset, err)
}

// handle runs the handler with retries. Panics become errors.
func (c *Consumer) handle(ctx context.Context, data []byte) error {
	for attempt := 1; ; attempt++ {
		err := c.safeHandle(ctx, data)
		if err == nil || IsPermanent(err) || attempt > c.cfg.RetryMax {
			return err
		}
		if !sleepCtx(ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) safeHandle(ctx context.Context, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler.Handle(ctx, data)
}

func (c *Consumer) deadLetter(ctx context.Context, m kafka.Message, cause error) error {
	headers := append([]kafka.Header{}, m.Headers...)
	headers = append(headers,
		kafka.Header{Key: "source_topic", Value: []byte(m.Topic)},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
	)
	return c.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     m.Key,
		Value:   m.Value,
		Time:    time.Now(),
		Headers: headers,
	})
}

// commitWithRetry commits a single message offset with bounded retries.
func (c *Consumer) commitWithRetry(m kafka.Message, max int) error {
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = c.reader.CommitMessages(ctx, m)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 32 {
		if e := min << uint(attempt-1); e > 0 && e < max {
			exp = e
		}
	}
	// jitter up to 50%
	return exp - time.Duration(rand.Int64N(int64(exp)/2+1))
}

var (
	consumerMessages      *prometheus.CounterVec
	consumerFetchErrors   *prometheus.CounterVec
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandleSeconds *prometheus.HistogramVec
	consumerOnce          sync.Once
)

func initConsumerMetricsOnce() {
	consumerOnce.Do(func() {
		consumerMessages = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksight_kafka_consumer_messages_total",
				Help: "Consumed messages by outcome",
			},
			[]string{"topic", "result"},
		)
		consumerFetchErrors = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksight_kafka_consumer_fetch_errors_total",
				Help: "Failed fetches from the broker",
			},
			[]string{"topic"},
		)
		consumerQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stocksight_kafka_consumer_queue_depth",
				Help: "Messages waiting in a worker lane",
			},
			[]string{"topic"},
		)
		consumerHandleSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stocksight_kafka_consumer_handle_seconds",
				Help:    "Handling time per message, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		)
	})
}
