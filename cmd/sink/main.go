// Command sink consumes published snapshots and writes them to SQLite or
// ClickHouse, so a kafka-backed collector can still be queried.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"StockSight/internal/di"
	"StockSight/pkg/config"
	applogger "StockSight/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatalf("kafka.brokers is required")
	}
	os.Exit(run(cfg))
}

// run returns the process exit code. A non-zero code lets the supervisor
// restart the sink, which redelivers any uncommitted message.
func run(cfg *config.Config) int {
	l, cleanupLogger, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Printf("logger: %v", err)
		return 1
	}
	defer cleanupLogger()

	consumer, cleanup, err := di.ProvideSnapshotSink(cfg, di.ProvideMetrics(), l)
	if err != nil {
		l.Error("sink init failed", applogger.Error(err))
		return 1
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Info("snapshot sink starting",
		applogger.String("topic", cfg.Kafka.Topic),
		applogger.String("store", cfg.Kafka.Consumer.Store),
	)
	if err := consumer.Run(ctx); err != nil {
		l.Error("sink stopped with error", applogger.Error(err))
		return 1
	}
	l.Info("snapshot sink stopped")
	return 0
}
