//go:build wireinject
// +build wireinject

package di

import (
	"StockSight/pkg/config"
	"StockSight/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Logging and metrics
		ProvideLogger,
		ProvideMetrics,

		// Data sources
		ProvideMarketData,
		ProvideGenerator,
		ProvideProbe,
		ProvideProvider,
		ProvideDashboard,

		// Snapshots
		ProvideSnapshotProcessor,
		ProvideSnapshotCollector,
		ProvideScheduler,

		// HTTP
		ProvideCache,
		ProvideRateLimiter,
		ProvideHTTPHandlers,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
