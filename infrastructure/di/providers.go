package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"diary-backend/application/ports"
	domainconfig "diary-backend/domain/config"
	"diary-backend/domain/core/valueobjects"
	"diary-backend/infrastructure/config"
	"diary-backend/infrastructure/messaging/eventbridge"
	"diary-backend/infrastructure/persistence/dynamodb"
	"diary-backend/infrastructure/persistence/sqlite"
	"diary-backend/infrastructure/provider"
	"diary-backend/interfaces/http/rest"
	"diary-backend/pkg/auth"
	pkgerrors "diary-backend/pkg/errors"
	"diary-backend/pkg/observability"
)

// MetricsNamespace prefixes every exported Prometheus series
const MetricsNamespace = "diary"

// developmentSecret signs tokens when no JWT_SECRET is configured outside
// production, which LoadConfig refuses.
const developmentSecret = "diary-development-secret"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	var zapCfg zap.Config
	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zapCfg.Level = level
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = logger.Sync() }
	return logger, cleanup, nil
}

// ProvideTracerProvider installs OTLP tracing when enabled. The returned
// provider is nil otherwise, which Shutdown tolerates.
func ProvideTracerProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	if !cfg.EnableTracing {
		return nil, func() {}, nil
	}
	tp, err := observability.InitTracing(ctx, observability.TracerName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// needsAWS reports whether any configured component talks to AWS
func needsAWS(cfg *config.Config) bool {
	return cfg.SessionLock == config.SessionLockDynamoDB || cfg.EnableEvents
}

// ProvideAWSConfig creates AWS configuration. Local runs that use neither
// the DynamoDB lock nor EventBridge skip credential resolution entirely.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	if !needsAWS(cfg) {
		return aws.Config{Region: cfg.AWSRegion}, nil
	}
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideDB opens the SQLite store and applies migrations
func ProvideDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sqlite.DB, func(), error) {
	db, err := sqlite.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Warn("Database close failed", zap.Error(err))
		}
	}
	return db, cleanup, nil
}

// ProvideMetrics creates the Prometheus collectors
func ProvideMetrics() *observability.Metrics {
	return observability.NewMetrics(MetricsNamespace)
}

// ProvideDomainConfig applies the configured week start and edit policy
// on top of the environment's domain rules
func ProvideDomainConfig(cfg *config.Config) (*domainconfig.DomainConfig, error) {
	rules := domainconfig.LoadDomainConfig(cfg.Environment)

	weekStart, err := valueobjects.ParseWeekStart(cfg.WeekStart)
	if err != nil {
		return nil, err
	}
	rules.WeekStart = weekStart
	rules.ReanalyzeOnEdit = cfg.ReanalyzeOnEdit

	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// ProvideHTTPClient returns the client used for provider calls. Deadlines
// are applied per call.
func ProvideHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 16,
		},
	}
}

// ProvideProviderClient creates the breaker-guarded analysis provider client
func ProvideProviderClient(cfg *config.Config, httpClient *http.Client, metrics *observability.Metrics, logger *zap.Logger) *provider.Client {
	pcfg := provider.DefaultConfig(cfg.ProviderBaseURL)
	pcfg.Timeout = cfg.ProviderTimeout
	if cfg.BreakerMinRequests > 0 {
		pcfg.BreakerMinRequests = uint32(cfg.BreakerMinRequests)
	}
	pcfg.BreakerFailureThreshold = cfg.BreakerFailureThreshold
	pcfg.BreakerInterval = cfg.BreakerInterval
	pcfg.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	return provider.NewClient(pcfg, httpClient, metrics, logger)
}

// ProvideSessionLocker returns the DynamoDB lock when SESSION_LOCK=dynamodb
// and nil otherwise. The session manager treats nil as "no locking".
func ProvideSessionLocker(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.SessionLocker {
	if cfg.SessionLock != config.SessionLockDynamoDB {
		return nil
	}
	logger.Info("Using DynamoDB session lock", zap.String("table", cfg.LockTableName))
	return dynamodb.NewDistributedLock(client, cfg.LockTableName, logger)
}

// ProvideEventPublisher publishes to EventBridge when events are enabled
// and to the log otherwise
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if !cfg.EnableEvents {
		return eventbridge.NewLogPublisher(logger)
	}
	logger.Info("Publishing domain events to EventBridge", zap.String("bus", cfg.EventBusName))
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideJWTValidator creates the bearer token validator
func ProvideJWTValidator(cfg *config.Config, logger *zap.Logger) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET not set, using the development signing key")
		secret = developmentSecret
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: secret,
		Issuer:    cfg.JWTIssuer,
	})
}

// ProvideErrorHandler creates the HTTP error renderer. Development builds
// include error causes in responses.
func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *pkgerrors.ErrorHandler {
	return pkgerrors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideRouterOptions derives router behaviour from the deployment
func ProvideRouterOptions(cfg *config.Config) rest.RouterOptions {
	options := rest.RouterOptions{
		LambdaAuth:     cfg.IsLambda,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		ExposeMetrics:  cfg.EnableMetrics,
	}
	if cfg.AnalysisRateLimit > 0 {
		options.AnalysisLimiter = auth.NewUserRateLimiter(cfg.AnalysisRateLimit)
	}
	return options
}
