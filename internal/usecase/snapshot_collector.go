package usecase

import (
	"context"
	"time"

	"StockSight/internal/domain/models"
	drepo "StockSight/internal/domain/repository"
	applogger "StockSight/pkg/logger"
	"StockSight/pkg/util"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultCollectConcurrency bounds quote fetches in flight during Collect.
const DefaultCollectConcurrency = 8

// SnapshotCollector captures a quote for every symbol of the universe and
// hands the batch to the processor.
type SnapshotCollector struct {
	p       *Provider
	proc    *SnapshotProcessor
	symbols []string
	metrics drepo.Metrics
	limit   int
	now     func() time.Time
	l       *applogger.Logger
}

// NewSnapshotCollector creates a new SnapshotCollector instance.
func NewSnapshotCollector(p *Provider, proc *SnapshotProcessor, symbols []string, metrics drepo.Metrics) *SnapshotCollector {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	return &SnapshotCollector{
		p:       p,
		proc:    proc,
		symbols: append([]string(nil), symbols...),
		metrics: metrics,
		limit:   DefaultCollectConcurrency,
		now:     time.Now,
	}
}

// SetLogger injects application logger.
func (c *SnapshotCollector) SetLogger(l *applogger.Logger) { c.l = l }

// SetConcurrency bounds the quote fetches in flight. Values below 1 are ignored.
func (c *SnapshotCollector) SetConcurrency(n int) {
	if n > 0 {
		c.limit = n
	}
}

// Symbols returns the collected universe.
func (c *SnapshotCollector) Symbols() []string { return append([]string(nil), c.symbols...) }

// Collect fetches all quotes, at most limit at a time, and processes them as
// one batch. The returned snapshots are in universe order.
func (c *SnapshotCollector) Collect(ctx context.Context) ([]models.Snapshot, error) {
	takenAt := c.now().UTC()
	snaps := make([]models.Snapshot, len(c.symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)
	for i, sym := range c.symbols {
		g.Go(func() error {
			res := c.p.Quote(gctx, sym)
			snaps[i] = models.Snapshot{
				ID:      uuid.NewString(),
				Symbol:  util.NormalizeSymbol(sym),
				Quote:   res.Data,
				Source:  res.Source,
				TakenAt: takenAt,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := c.proc.ProcessBatch(ctx, snaps); err != nil {
		if c.l != nil {
			c.l.Error("snapshot batch failed",
				applogger.String("backend", string(c.proc.Backend())),
				applogger.Int("count", len(snaps)),
				applogger.Error(err),
			)
		}
		return snaps, err
	}
	if c.l != nil {
		c.l.Debug("snapshot batch stored",
			applogger.String("backend", string(c.proc.Backend())),
			applogger.Int("count", len(snaps)),
		)
	}
	return snaps, nil
}

// Recent reads recent snapshots for symbol from a readable backend.
// ok is false when the backend cannot be queried.
func (c *SnapshotCollector) Recent(ctx context.Context, symbol string, limit int) (snaps []models.Snapshot, ok bool, err error) {
	store := c.proc.Store()
	if store == nil {
		return nil, false, nil
	}
	snaps, err = store.Recent(ctx, symbol, limit)
	return snaps, true, err
}
