package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StockSight/internal/scheduler"
	"StockSight/internal/service/ratelimit"
	"StockSight/internal/usecase"
	"StockSight/pkg/config"
	xhttp "StockSight/pkg/http"
	applogger "StockSight/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	provider   *usecase.Provider
	sched      *scheduler.Scheduler
	limiter    *ratelimit.Limiter
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, p *usecase.Provider) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, l: l, httpServer: srv, provider: p}
}

// SetScheduler attaches the snapshot scheduler. nil disables it.
func (a *App) SetScheduler(s *scheduler.Scheduler) { a.sched = s }

// SetRateLimiter attaches the limiter whose idle buckets are pruned periodically.
func (a *App) SetRateLimiter(rl *ratelimit.Limiter) { a.limiter = rl }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	a.l.Info("starting",
		applogger.String("env", a.cfg.Environment),
		applogger.String("mode", string(a.provider.Mode())),
		applogger.Strings("symbols", a.cfg.Symbols),
	)

	if a.sched != nil {
		a.sched.Start()
		a.l.Info("snapshots scheduled",
			applogger.String("cron", a.cfg.Snapshots.Cron),
			applogger.String("backend", a.cfg.Snapshots.Backend),
			applogger.String("next", a.sched.Next().Format(time.RFC3339)),
		)
		if a.cfg.Snapshots.RunOnStart {
			go a.sched.RunNow()
		}
	}

	if a.limiter != nil && a.cfg.RateLimit.Enabled {
		go a.pruneLimiter(ctx)
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) pruneLimiter(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Prune(10 * time.Minute); n > 0 {
				a.l.Debug("rate limiter pruned", applogger.Int("buckets", n))
			}
		}
	}
}

// shutdown gracefully stops all services. Infrastructure clients are closed
// by the DI cleanup function.
func (a *App) shutdown() error {
	a.l.Info("shutting down...")

	if a.sched != nil {
		a.sched.Stop()
		a.l.Info("snapshot runs", applogger.Int64("total", a.sched.Runs()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		return err
	}

	a.l.Info("shutdown complete")
	return nil
}
