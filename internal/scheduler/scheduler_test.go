package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"StockSight/internal/domain/models"
	applogger "StockSight/pkg/logger"
)

type countingCollector struct {
	calls atomic.Int64
	err   error
	block bool
}

func (c *countingCollector) Collect(ctx context.Context) ([]models.Snapshot, error) {
	c.calls.Add(1)
	if c.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return []models.Snapshot{{ID: "x", Symbol: "AAPL"}}, c.err
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := New(&countingCollector{}, 0)
	// Five fields are not enough once seconds are required.
	if err := s.Register("*/5 * * * *"); err == nil {
		t.Fatalf("expected error for five-field spec")
	}
	if err := s.Register("0 */15 * * * *"); err != nil {
		t.Fatalf("register: %v", err)
	}
	s.Start()
	defer s.Stop()
	if s.Next().IsZero() {
		t.Errorf("no next activation")
	}
}

func TestRunNow(t *testing.T) {
	col := &countingCollector{err: errors.New("sink down")}
	s := New(col, time.Second)
	s.SetLogger(applogger.Nop())

	s.RunNow()
	s.RunNow()
	if col.calls.Load() != 2 || s.Runs() != 2 {
		t.Fatalf("calls=%d runs=%d", col.calls.Load(), s.Runs())
	}
}

func TestRunTimeout(t *testing.T) {
	col := &countingCollector{block: true}
	s := New(col, 20*time.Millisecond)

	start := time.Now()
	s.RunNow()
	if time.Since(start) > time.Second {
		t.Fatalf("run ignored its timeout")
	}
}

func TestScheduledRuns(t *testing.T) {
	col := &countingCollector{}
	s := New(col, 0)
	if err := s.Register("@every 1s"); err != nil {
		t.Fatalf("register: %v", err)
	}
	s.Start()

	deadline := time.Now().Add(3 * time.Second)
	for col.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()
	if col.calls.Load() == 0 {
		t.Fatalf("job never ran")
	}
}
