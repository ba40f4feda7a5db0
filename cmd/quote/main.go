// Command quote prints a one-shot dashboard view for a symbol as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"StockSight/internal/di"
	"StockSight/internal/usecase"
	"StockSight/pkg/config"
	applogger "StockSight/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	history := flag.Int("history", usecase.DefaultHistoryDays, "historical window in days")
	future := flag.Int("future", usecase.DefaultFutureDays, "future window in days")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] SYMBOL\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	// stderr keeps stdout clean for the JSON document
	cfg.Logging.Output = "stderr"
	l, cleanup, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer cleanup()

	remote := di.ProvideMarketData(cfg, l)
	probe := di.ProvideProbe(cfg, remote, l)
	p := di.ProvideProvider(probe, remote, di.ProvideGenerator(cfg), di.ProvideMetrics(), l)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	view, err := usecase.NewDashboard(p).Load(ctx, flag.Arg(0), usecase.DashboardOptions{
		HistoryDays: *history,
		FutureDays:  *future,
	})
	if err != nil {
		l.Error("dashboard load failed", applogger.Error(err))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(view); err != nil {
		l.Error("encode failed", applogger.Error(err))
		os.Exit(1)
	}
}
