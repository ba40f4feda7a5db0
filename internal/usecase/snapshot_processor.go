package usecase

import (
	"context"
	"fmt"
	"time"

	"StockSight/internal/domain/models"
	drepo "StockSight/internal/domain/repository"
)

// SnapshotProcessor routes snapshot batches to the configured backend.
type SnapshotProcessor struct {
	pub     drepo.Publisher
	store   drepo.SnapshotStore
	metrics drepo.Metrics
	backend drepo.Backend
}

// NewSnapshotProcessor creates a new SnapshotProcessor instance.
func NewSnapshotProcessor(
	pub drepo.Publisher,
	store drepo.SnapshotStore,
	metrics drepo.Metrics,
	backend drepo.Backend,
) *SnapshotProcessor {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	return &SnapshotProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

// Backend returns the configured sink.
func (p *SnapshotProcessor) Backend() drepo.Backend { return p.backend }

// Store returns the snapshot store when the backend can be read back.
func (p *SnapshotProcessor) Store() drepo.SnapshotStore {
	if !p.backend.Readable() {
		return nil
	}
	return p.store
}

// ProcessBatch writes snaps to the configured backend. The none backend
// accepts and drops everything.
func (p *SnapshotProcessor) ProcessBatch(ctx context.Context, snaps []models.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case drepo.BackendNone:
		return nil
	case drepo.BackendKafka:
		if p.pub == nil {
			err = fmt.Errorf("kafka publisher not configured")
			break
		}
		err = p.pub.PublishBatch(ctx, snaps)
	case drepo.BackendSQLite, drepo.BackendClickHouse:
		if p.store == nil {
			err = fmt.Errorf("%s store not configured", p.backend)
			break
		}
		err = p.store.StoreBatch(ctx, snaps)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, s := range snaps {
		p.metrics.RecordSnapshotSent(string(p.backend), s.Symbol)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	return nil
}

// Close closes underlying resources if available.
func (p *SnapshotProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
