package repository

import (
	"context"

	"StockSight/internal/domain/models"
)

// SnapshotStore persists collected quote snapshots.
type SnapshotStore interface {
	Init(ctx context.Context) error // ensure tables
	StoreBatch(ctx context.Context, snaps []models.Snapshot) error
	Recent(ctx context.Context, symbol string, limit int) ([]models.Snapshot, error)
	Health(ctx context.Context) error
	Close() error
}

// Publisher ships snapshots to a message broker.
type Publisher interface {
	PublishBatch(ctx context.Context, snaps []models.Snapshot) error
	Close() error
}

// Metrics records provider and pipeline activity.
type Metrics interface {
	RecordRequest(op, source string)
	RecordFallback(op, kind string)
	RecordLatency(op string, seconds float64)
	RecordLastPrice(symbol string, price float64)
	RecordSnapshotSent(backend, symbol string)
	RecordError(kind string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordRequest(string, string)      {}
func (NopMetrics) RecordFallback(string, string)     {}
func (NopMetrics) RecordLatency(string, float64)     {}
func (NopMetrics) RecordLastPrice(string, float64)   {}
func (NopMetrics) RecordSnapshotSent(string, string) {}
func (NopMetrics) RecordError(string)                {}
