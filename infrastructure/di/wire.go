//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"diary-backend/application/ports"
	"diary-backend/application/services"
	"diary-backend/infrastructure/config"
	"diary-backend/infrastructure/persistence/sqlite"
	"diary-backend/infrastructure/provider"
	"diary-backend/interfaces/http/rest"
)

// StoreSet binds the SQLite repositories to their ports
var StoreSet = wire.NewSet(
	ProvideDB,
	sqlite.NewEntryRepository,
	sqlite.NewAnalysisRepository,
	sqlite.NewUserRepository,
	wire.Bind(new(ports.EntryRepository), new(*sqlite.EntryRepository)),
	wire.Bind(new(ports.AnalysisRepository), new(*sqlite.AnalysisRepository)),
	wire.Bind(new(ports.UserRepository), new(*sqlite.UserRepository)),
	wire.Bind(new(ports.SessionRepository), new(*sqlite.UserRepository)),
	wire.Bind(new(rest.HealthChecker), new(*sqlite.DB)),
)

// ServiceSet builds the application services
var ServiceSet = wire.NewSet(
	services.NewSessionManager,
	services.NewWeeklyAggregator,
	services.NewAnalysisOrchestrator,
	services.NewDiaryService,
	services.NewAccountService,
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideTracerProvider,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideMetrics,
	ProvideDomainConfig,
	ProvideHTTPClient,
	ProvideProviderClient,
	wire.Bind(new(ports.AnalysisProvider), new(*provider.Client)),
	ProvideSessionLocker,
	ProvideEventPublisher,
	StoreSet,
	ServiceSet,
	ProvideJWTValidator,
	ProvideErrorHandler,
	ProvideRouterOptions,
	rest.NewRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The cleanup
// function closes the store, flushes traces and syncs the logger.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
