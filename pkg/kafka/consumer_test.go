package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type funcHandler struct {
	calls int
	fn    func(n int) error
}

func (h *funcHandler) Topic() string { return "test.topic" }

func (h *funcHandler) Handle(context.Context, []byte) error {
	h.calls++
	return h.fn(h.calls)
}

func newTestConsumer(t *testing.T, h MessageHandler, opts ...ConsumerOption) *Consumer {
	t.Helper()
	base := []ConsumerOption{
		WithConsumerBrokers([]string{"127.0.0.1:1"}),
		WithConsumerGroupID("test"),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	}
	c, err := NewConsumer(h, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewConsumerValidates(t *testing.T) {
	h := &funcHandler{fn: func(int) error { return nil }}
	if _, err := NewConsumer(nil, WithConsumerBrokers([]string{"x:1"}), WithConsumerGroupID("g")); err == nil {
		t.Errorf("expected error without handler")
	}
	if _, err := NewConsumer(h, WithConsumerGroupID("g")); err == nil {
		t.Errorf("expected error without brokers")
	}
	if _, err := NewConsumer(h, WithConsumerBrokers([]string{"x:1"})); err == nil {
		t.Errorf("expected error without group")
	}
}

func TestHandleRetriesThenSucceeds(t *testing.T) {
	h := &funcHandler{fn: func(n int) error {
		if n < 3 {
			return errors.New("flaky")
		}
		return nil
	}}
	c := newTestConsumer(t, h)
	if err := c.handle(context.Background(), nil); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if h.calls != 3 {
		t.Errorf("calls = %d, want 3", h.calls)
	}
}

func TestHandleGivesUp(t *testing.T) {
	h := &funcHandler{fn: func(int) error { return errors.New("down") }}
	c := newTestConsumer(t, h)
	if err := c.handle(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
	// first attempt plus RetryMax
	if h.calls != 3 {
		t.Errorf("calls = %d, want 3", h.calls)
	}
}

func TestPermanentErrorSkipsRetry(t *testing.T) {
	h := &funcHandler{fn: func(int) error { return Permanent(errors.New("bad payload")) }}
	c := newTestConsumer(t, h)
	err := c.handle(context.Background(), nil)
	if !IsPermanent(err) || h.calls != 1 {
		t.Fatalf("err = %v calls = %d", err, h.calls)
	}
	if Permanent(nil) != nil {
		t.Errorf("Permanent(nil) should be nil")
	}
}

func TestHandlerPanicBecomesError(t *testing.T) {
	h := &funcHandler{fn: func(int) error { panic("boom") }}
	c := newTestConsumer(t, h, WithConsumerRetry(0, time.Millisecond, time.Millisecond))
	if err := c.handle(context.Background(), nil); err == nil {
		t.Fatalf("expected error from panic")
	}
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 200*time.Millisecond, attempt)
		if d <= 0 || d > 200*time.Millisecond {
			t.Fatalf("attempt %d backoff = %s", attempt, d)
		}
	}
	if d := backoffWithJitter(0, 0, 1); d <= 0 || d > 50*time.Millisecond {
		t.Errorf("default backoff = %s", d)
	}
}

// memReader serves queued messages, then blocks until ctx is done.
type memReader struct {
	mu      sync.Mutex
	msgs    []kafka.Message
	commits []int64
}

func (r *memReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *memReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.commits = append(r.commits, m.Offset)
	}
	return nil
}

func (r *memReader) Close() error { return nil }

func (r *memReader) committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.commits...)
}

type memWriter struct {
	mu   sync.Mutex
	err  error
	msgs []kafka.Message
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

type payloadHandler struct{}

func (payloadHandler) Topic() string { return "test.topic" }

func (payloadHandler) Handle(_ context.Context, data []byte) error {
	if string(data) == "bad" {
		return errors.New("store down")
	}
	return nil
}

func partitionZero(values ...string) []kafka.Message {
	out := make([]kafka.Message, len(values))
	for i, v := range values {
		out[i] = kafka.Message{Topic: "test.topic", Partition: 0, Offset: int64(4 + i), Value: []byte(v)}
	}
	return out
}

func runWithReader(t *testing.T, r *memReader, dlq messageWriter, wait time.Duration) error {
	t.Helper()
	c := newTestConsumer(t, payloadHandler{}, WithConsumerWorkers(1), WithConsumerRetry(0, time.Millisecond, time.Millisecond))
	_ = c.reader.Close()
	c.reader = r
	c.dlq = dlq

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	return c.Run(ctx)
}

func TestFailedMessageWithoutDLQStopsCommits(t *testing.T) {
	r := &memReader{msgs: partitionZero("ok", "bad", "ok")}
	err := runWithReader(t, r, nil, 5*time.Second)
	if err == nil {
		t.Fatalf("expected error for uncommitted message")
	}
	got := r.committed()
	if len(got) != 1 || got[0] != 4 {
		t.Fatalf("commits = %v, want [4]", got)
	}
}

func TestFailedMessageGoesToDLQAndCommits(t *testing.T) {
	r := &memReader{msgs: partitionZero("ok", "bad", "ok")}
	w := &memWriter{}
	if err := runWithReader(t, r, w, 300*time.Millisecond); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := r.committed()
	if len(got) != 3 || got[2] != 6 {
		t.Fatalf("commits = %v, want [4 5 6]", got)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Value) != "bad" {
		t.Fatalf("dlq = %+v", w.msgs)
	}
}

func TestDLQWriteFailureStopsCommits(t *testing.T) {
	r := &memReader{msgs: partitionZero("bad", "ok")}
	err := runWithReader(t, r, &memWriter{err: errors.New("dlq down")}, 5*time.Second)
	if err == nil {
		t.Fatalf("expected error when dlq write fails")
	}
	if got := r.committed(); len(got) != 0 {
		t.Fatalf("commits = %v, want none", got)
	}
}
