package di

import (
	"go.uber.org/zap"

	"diary-backend/application/services"
	"diary-backend/infrastructure/config"
	"diary-backend/infrastructure/persistence/sqlite"
	"diary-backend/infrastructure/provider"
	"diary-backend/interfaces/http/rest"
	"diary-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	DB           *sqlite.DB
	Metrics      *observability.Metrics
	Tracer       *observability.TracerProvider
	Provider     *provider.Client
	Sessions     *services.SessionManager
	Diary        *services.DiaryService
	Orchestrator *services.AnalysisOrchestrator
	Accounts     *services.AccountService
	Router       *rest.Router
}
