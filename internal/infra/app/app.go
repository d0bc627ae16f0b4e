package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yavuz-tech/helvino/internal/core/port"
	"github.com/yavuz-tech/helvino/internal/infra/config"
	"github.com/yavuz-tech/helvino/internal/infra/database"
	kafkainfra "github.com/yavuz-tech/helvino/internal/infra/kafka"
	"github.com/yavuz-tech/helvino/internal/infra/logger"
	"github.com/yavuz-tech/helvino/internal/infra/notify"
	redisinfra "github.com/yavuz-tech/helvino/internal/infra/redis"
	"github.com/yavuz-tech/helvino/internal/infra/security"
	"github.com/yavuz-tech/helvino/internal/infra/telemetry"
	postgresrepo "github.com/yavuz-tech/helvino/internal/repository/postgres"
	redisrepo "github.com/yavuz-tech/helvino/internal/repository/redis"
	"github.com/yavuz-tech/helvino/internal/transport/http/middleware"
	"github.com/yavuz-tech/helvino/internal/transport/http/routes"
	"github.com/yavuz-tech/helvino/internal/usecase"
)

type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	// Kafka is optional: with no brokers configured events go to the log only.
	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	dispatcher := notify.NewLoggingDispatcher(log)

	elevationCache := redisrepo.NewElevationRepository(redisClient.Client(), cfg.Redis.ElevationPrefix)

	detector := usecase.NewAnomalyDetector(repos.Devices, repos.Accounts, dispatcher, eventPublisher, log).
		WithMetrics(metrics).
		WithLinks(cfg.Links.LockURL)

	registry := usecase.NewSessionRegistry(repos.Sessions, repos.Accounts, dispatcher, eventPublisher, log).
		WithLimit(cfg.Session.Limit).
		WithElevationDuration(cfg.Session.ElevationDuration).
		WithElevationCache(elevationCache).
		WithLoginInspector(detector).
		WithMetrics(metrics).
		WithLinks(cfg.Links.SessionsURL)

	stepUp := usecase.NewStepUpManager(repos.Challenges, registry, eventPublisher, log).
		WithPolicy(cfg.StepUp.TTL, cfg.StepUp.MaxAttempts, cfg.StepUp.CodeLength).
		WithMetrics(metrics)

	tokenIssuer, err := security.NewSessionTokenIssuer([]byte(cfg.Session.TokenSigningKey), cfg.App.Name, cfg.Session.TokenTTL)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init session token issuer: %w", err)
	}

	orgTokens, err := security.NewOrgTokenCodec([]byte(cfg.OrgToken.SigningKey))
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init org token codec: %w", err)
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "trust:rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		TokenIssuer: tokenIssuer,
		OrgTokens:   orgTokens,
		HTTPMetrics: httpMetrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Registry: registry,
			StepUp:   stepUp,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting trust API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
