package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"diary-backend/application/services"
	"diary-backend/interfaces/http/rest/handlers"
	"diary-backend/interfaces/http/rest/middleware"
	"diary-backend/pkg/auth"
	"diary-backend/pkg/common"
	pkgerrors "diary-backend/pkg/errors"
	"diary-backend/pkg/observability"
)

// HealthChecker is probed by the readiness endpoint
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// RouterOptions selects how the router authenticates and what it exposes
type RouterOptions struct {
	// LambdaAuth trusts the X-User-ID header set by the API Gateway
	// authorizer instead of validating bearer tokens
	LambdaAuth     bool
	AllowedOrigins []string
	ExposeMetrics  bool

	// AnalysisLimiter caps forced re-analysis per user; nil disables it
	AnalysisLimiter *auth.UserRateLimiter
}

// Router creates and configures the HTTP router
type Router struct {
	diary        *services.DiaryService
	orchestrator *services.AnalysisOrchestrator
	accounts     *services.AccountService
	validator    *auth.JWTValidator
	health       HealthChecker
	metrics      *observability.Metrics
	errors       *pkgerrors.ErrorHandler
	options      RouterOptions
	logger       *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	diary *services.DiaryService,
	orchestrator *services.AnalysisOrchestrator,
	accounts *services.AccountService,
	validator *auth.JWTValidator,
	health HealthChecker,
	metrics *observability.Metrics,
	errorHandler *pkgerrors.ErrorHandler,
	options RouterOptions,
	logger *zap.Logger,
) *Router {
	return &Router{
		diary:        diary,
		orchestrator: orchestrator,
		accounts:     accounts,
		validator:    validator,
		health:       health,
		metrics:      metrics,
		errors:       errorHandler,
		options:      options,
		logger:       logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errors.Middleware)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.metrics))

	origins := rt.options.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", handlers.DegradedHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.options.ExposeMetrics {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	diaryHandler := handlers.NewDiaryHandler(rt.diary, rt.orchestrator, rt.errors, rt.logger)
	accountHandler := handlers.NewAccountHandler(rt.accounts, rt.errors, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authentication())

		r.Route("/diary", func(r chi.Router) {
			r.Post("/", diaryHandler.SaveEntry)
			r.Get("/months/{year}/{month}", diaryHandler.GetMonthDates)
			r.Put("/entries/{entryID}", diaryHandler.UpdateEntry)
			r.Delete("/entries/{entryID}", diaryHandler.DeleteEntry)
			r.Get("/{date}", diaryHandler.GetEntry)
			r.Get("/{date}/advice", diaryHandler.GetAdvice)
			r.With(rt.analysisLimit()).Post("/{date}/analysis", diaryHandler.Reanalyze)
		})

		r.Delete("/users/me", accountHandler.DeleteMe)
	})

	return router
}

func (rt *Router) authentication() func(http.Handler) http.Handler {
	if rt.options.LambdaAuth {
		return middleware.AuthenticateForLambda(rt.errors)
	}
	return middleware.Authenticate(rt.validator, rt.errors, rt.logger)
}

func (rt *Router) analysisLimit() func(http.Handler) http.Handler {
	if rt.options.AnalysisLimiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimit(rt.options.AnalysisLimiter, rt.errors, rt.logger)
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports whether the store answers
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.health != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := rt.health.Ping(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
