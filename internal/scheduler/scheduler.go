package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"StockSight/internal/domain/models"
	applogger "StockSight/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Collector is the job the scheduler triggers.
type Collector interface {
	Collect(ctx context.Context) ([]models.Snapshot, error)
}

// Scheduler runs the snapshot collector on a cron spec with a seconds field.
// A run that is still going when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron    *cron.Cron
	col     Collector
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	runs    atomic.Int64
	l       *applogger.Logger
}

// New creates a Scheduler. timeout bounds a single collection; zero means no bound.
func New(col Collector, timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		col:     col,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetLogger injects application logger.
func (s *Scheduler) SetLogger(l *applogger.Logger) { s.l = l }

// Register adds the collection job under spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return fmt.Errorf("register snapshot task %q: %w", spec, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	if s.l != nil {
		s.l.Info("scheduler started", applogger.Int("jobs", len(s.cron.Entries())))
	}
}

// Stop cancels a running collection and waits for the job to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	if s.l != nil {
		s.l.Info("scheduler stopped", applogger.Int64("runs", s.runs.Load()))
	}
}

// RunNow executes one collection immediately.
func (s *Scheduler) RunNow() { s.run() }

// Runs returns the number of completed collections.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

// Next returns the next scheduled activation, or zero when nothing is scheduled.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) run() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	snaps, err := s.col.Collect(ctx)
	s.runs.Add(1)
	if s.l == nil {
		return
	}
	if err != nil {
		s.l.Error("snapshot task failed", applogger.Error(err))
		return
	}
	s.l.Info("snapshot task done",
		applogger.Int("count", len(snaps)),
		applogger.Duration("took", time.Since(start)),
	)
}
