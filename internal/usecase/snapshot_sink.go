package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"StockSight/internal/domain/models"
	drepo "StockSight/internal/domain/repository"
	pkgkafka "StockSight/pkg/kafka"
	"StockSight/pkg/util"
)

// SnapshotSink consumes published snapshots and writes them to a store.
type SnapshotSink struct {
	topic   string
	store   drepo.SnapshotStore
	metrics drepo.Metrics
}

func NewSnapshotSink(topic string, store drepo.SnapshotStore, metrics drepo.Metrics) *SnapshotSink {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	return &SnapshotSink{topic: topic, store: store, metrics: metrics}
}

func (h *SnapshotSink) Topic() string { return h.topic }

// Handle decodes one snapshot message. Malformed payloads are permanent
// failures; store errors are retried by the consumer.
func (h *SnapshotSink) Handle(ctx context.Context, b []byte) error {
	sn, err := decodeSnapshot(b)
	if err != nil {
		h.metrics.RecordError("sink_decode")
		return pkgkafka.Permanent(err)
	}

	// publish-to-store latency
	h.metrics.RecordLatency("sink_e2e", time.Since(sn.TakenAt).Seconds())

	start := time.Now()
	err = h.store.StoreBatch(ctx, []models.Snapshot{sn})
	h.metrics.RecordLatency("sink_store", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("sink_store")
		return err
	}
	h.metrics.RecordSnapshotSent("sink", sn.Symbol)
	return nil
}

func decodeSnapshot(b []byte) (models.Snapshot, error) {
	var sn models.Snapshot
	if err := json.Unmarshal(b, &sn); err != nil {
		return sn, fmt.Errorf("decode snapshot: %w", err)
	}
	sn.Symbol = util.NormalizeSymbol(sn.Symbol)
	if sn.ID == "" || sn.Symbol == "" {
		return sn, fmt.Errorf("snapshot missing id or symbol")
	}
	if sn.TakenAt.IsZero() {
		return sn, fmt.Errorf("snapshot %s missing takenAt", sn.ID)
	}
	if err := sn.Quote.Validate(); err != nil {
		return sn, fmt.Errorf("snapshot %s: %w", sn.ID, err)
	}
	return sn, nil
}

var _ pkgkafka.MessageHandler = (*SnapshotSink)(nil)
