package logger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	batches []LogBatch
	done    chan struct{}
}

func (p *capturePublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	p.mu.Lock()
	p.batches = append(p.batches, payload.(LogBatch))
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &capturePublisher{done: make(chan struct{}, 4)}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "logs",
		Publisher:      pub,
		Service:        "stocksight",
	})
	defer c.Close()

	fields := map[string]interface{}{"op": "quote"}
	c.AddLog("warn", "remote call failed", fields, "usecase/provider.go:1")
	c.AddLog("warn", "remote call failed", map[string]interface{}{"op": "quote"}, "usecase/provider.go:1")
	c.AddLog("error", "store failed", nil, "usecase/snapshot.go:9")

	select {
	case <-pub.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("threshold flush not published")
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.batches) != 1 {
		t.Fatalf("batches = %+v", pub.batches)
	}
	b := pub.batches[0]
	if b.Service != "stocksight" || len(b.Entries) != 2 {
		t.Fatalf("batch = %+v", b)
	}
	// highest count first
	if b.Entries[0].Message != "remote call failed" || b.Entries[0].Count != 2 {
		t.Errorf("first entry = %+v", b.Entries[0])
	}
}

func TestCollectorFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{done: make(chan struct{}, 4)}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Publisher: pub})

	c.AddLog("error", "boom", nil, "x.go:1")
	c.Close()
	c.AddLog("error", "after close", nil, "x.go:2")

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.batches) != 1 || len(pub.batches[0].Entries) != 1 {
		t.Fatalf("batches = %+v", pub.batches)
	}
}

func TestCollectorAccepts(t *testing.T) {
	c := &LogCollector{cfg: CollectionConfig{}}
	if !c.Accepts("error") || c.Accepts("warn") || c.Accepts("info") {
		t.Errorf("default levels wrong")
	}
	c.cfg.IncludeWarn = true
	if !c.Accepts("warn") {
		t.Errorf("warn not accepted with IncludeWarn")
	}
}
