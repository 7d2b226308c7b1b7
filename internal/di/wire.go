//go:build wireinject
// +build wireinject

package di

import (
	"PriceCast/pkg/config"
	"PriceCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideRetrainQueue,

		// Repositories
		ProvideHistoryFetcher,
		ProvideModelStore,
		ProvideAlertStore,
		ProvideAlertPublisher,
		ProvideMarketStream,

		// Domain services and use cases
		ProvideAlertEngine,
		ProvideCollector,
		ProvideManager,
		ProvideScheduler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
