package logger

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Publisher ships a collected batch, typically to a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// CollectionConfig configures a LogCollector.
type CollectionConfig struct {
	TimeInterval   time.Duration // flush at least this often
	CountThreshold int           // flush once this many distinct entries are held
	Topic          string
	Publisher      Publisher
	Service        string // stamped on every batch
	IncludeWarn    bool   // collect warn as well as error
}

// AggregatedLogEntry counts repeats of one (level, message, fields, caller).
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"firstSeen"`
	LastSeen  time.Time              `json:"lastSeen"`
}

// LogBatch is the payload of one flush. Entries are ordered by count, highest first.
type LogBatch struct {
	Service   string               `json:"service,omitempty"`
	Host      string               `json:"host,omitempty"`
	FlushedAt time.Time            `json:"flushedAt"`
	Entries   []AggregatedLogEntry `json:"entries"`
}

// LogCollector folds repeated log lines together and publishes them in
// batches from a single sender goroutine.
type LogCollector struct {
	cfg     CollectionConfig
	host    string
	mu      sync.Mutex
	entries map[uint64]*AggregatedLogEntry
	out     chan LogBatch
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	closed  bool
	failed  atomic.Int64
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	host, _ := os.Hostname()

	c := &LogCollector{
		cfg:     cfg,
		host:    host,
		entries: make(map[uint64]*AggregatedLogEntry),
		out:     make(chan LogBatch, 8),
		stop:    make(chan struct{}),
	}
	c.wg.Add(2)
	go c.tick()
	go c.send()
	return c
}

// Accepts reports whether level is collected.
func (c *LogCollector) Accepts(level string) bool {
	return level == "error" || (level == "warn" && c.cfg.IncludeWarn)
}

// AddLog records one occurrence.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		return
	}
	c.entries[key] = &AggregatedLogEntry{
		Level:     level,
		Message:   message,
		Fields:    fields,
		Caller:    caller,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	if len(c.entries) >= c.cfg.CountThreshold {
		c.flushLocked()
	}
}

// Failed returns the number of batches dropped or rejected by the publisher.
func (c *LogCollector) Failed() int64 { return c.failed.Load() }

// Close flushes what is held and waits for the sender to finish.
func (c *LogCollector) Close() {
	c.once.Do(func() {
		close(c.stop)
		c.wg.Wait()
	})
}

func (c *LogCollector) tick() {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.TimeInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
		case <-c.stop:
			c.mu.Lock()
			c.flushLocked()
			c.closed = true
			c.mu.Unlock()
			close(c.out)
			return
		}
	}
}

func (c *LogCollector) send() {
	defer c.wg.Done()
	for b := range c.out {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, b); err != nil {
			c.failed.Add(1)
		}
		cancel()
	}
}

// flushLocked hands the held entries to the sender. Caller holds mu.
func (c *LogCollector) flushLocked() {
	if len(c.entries) == 0 {
		return
	}
	b := LogBatch{
		Service:   c.cfg.Service,
		Host:      c.host,
		FlushedAt: time.Now().UTC(),
		Entries:   make([]AggregatedLogEntry, 0, len(c.entries)),
	}
	for _, e := range c.entries {
		b.Entries = append(b.Entries, *e)
	}
	sort.Slice(b.Entries, func(i, j int) bool { return b.Entries[i].Count > b.Entries[j].Count })
	c.entries = make(map[uint64]*AggregatedLogEntry)

	select {
	case c.out <- b:
	default:
		// sender is behind; drop rather than block the logging call
		c.failed.Add(1)
	}
}

func entryKey(level, message string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(level))
	h.Write([]byte{0})
	h.Write([]byte(message))
	h.Write([]byte{0})
	h.Write([]byte(caller))
	h.Write([]byte{0})
	// json.Marshal sorts map keys, so equal field sets hash equally.
	if b, err := json.Marshal(fields); err == nil {
		h.Write(b)
	} else {
		h.Write([]byte(strconv.Itoa(len(fields))))
	}
	return h.Sum64()
}
