package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yavuz-tech/helvino/internal/infra/config"
	"github.com/yavuz-tech/helvino/internal/infra/security"
	"github.com/yavuz-tech/helvino/internal/transport/http/handlers"
	"github.com/yavuz-tech/helvino/internal/transport/http/middleware"
	"github.com/yavuz-tech/helvino/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Registry *usecase.SessionRegistry
	StepUp   *usecase.StepUpManager
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	TokenIssuer *security.SessionTokenIssuer
	OrgTokens   *security.OrgTokenCodec
	HTTPMetrics *middleware.HTTPMetrics
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	// The widget embeds cross-origin, so CORS applies to the whole surface.
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))

	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		isDev := deps.Config.App.Env == "development"

		if deps.OrgTokens != nil {
			orgTokenHandler := handlers.NewOrgTokenHandler(deps.OrgTokens, deps.Config.OrgToken.DefaultTTL, deps.Logger)
			orgTokenHandler.RegisterRoutes(api.Group("/org-tokens"))
		}

		if deps.Services.Registry != nil && deps.TokenIssuer != nil {
			sessionMiddleware := middleware.RequireSession(deps.TokenIssuer)

			loginHandler := handlers.NewLoginHandler(deps.Services.Registry, deps.TokenIssuer, deps.Logger)
			loginHandler.RegisterRoutes(api.Group("/logins"), buildLoginMiddlewares(deps)...)

			sessionHandler := handlers.NewSessionHandler(deps.Services.Registry)
			sessionGroup := api.Group("/sessions")
			sessionGroup.Use(sessionMiddleware)
			sessionHandler.RegisterRoutes(sessionGroup)

			if deps.Services.StepUp != nil {
				stepUpHandler := handlers.NewStepUpHandler(deps.Services.StepUp, deps.Services.Registry, deps.Logger, isDev)
				stepUpGroup := api.Group("/step-up")
				stepUpGroup.Use(sessionMiddleware)
				stepUpHandler.RegisterRoutes(stepUpGroup, buildVerifyMiddlewares(deps)...)
			}
		}
	}

	return r
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.LoginMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "login_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}

func buildVerifyMiddlewares(deps Dependencies) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil {
		return nil
	}

	limit := deps.Config.RateLimit.VerifyMaxAttempts
	if limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       "stepup_verify_ip",
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
