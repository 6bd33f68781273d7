package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/arklim/storefront-account-security/internal/core/port"
	"github.com/arklim/storefront-account-security/internal/infra/config"
	"github.com/arklim/storefront-account-security/internal/infra/database"
	kafkainfra "github.com/arklim/storefront-account-security/internal/infra/kafka"
	"github.com/arklim/storefront-account-security/internal/infra/logger"
	redisinfra "github.com/arklim/storefront-account-security/internal/infra/redis"
	"github.com/arklim/storefront-account-security/internal/infra/security"
	"github.com/arklim/storefront-account-security/internal/infra/telemetry"
	postgresrepo "github.com/arklim/storefront-account-security/internal/repository/postgres"
	redisrepo "github.com/arklim/storefront-account-security/internal/repository/redis"
	"github.com/arklim/storefront-account-security/internal/transport/http/middleware"
	"github.com/arklim/storefront-account-security/internal/transport/http/routes"
	"github.com/arklim/storefront-account-security/internal/usecase"
)

// Application owns the wired service graph and the HTTP server lifecycle.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	tracer *telemetry.TracerProvider
}

// New wires configuration, infrastructure, repositories, and services into a
// runnable application.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics, err := telemetry.Attach(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			log.Warn("tracing disabled", zap.Error(err))
			tracer = nil
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	keyProvider, err := security.NewFileKeyProvider(cfg.JWT.KeyDirectory)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init key provider: %w", err)
	}

	issuer, err := security.NewTokenIssuer(keyProvider, cfg.JWT.Issuer, keyProvider.SigningKID(), cfg.JWT.AccessTokenTTL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	challengeStore := redisrepo.NewChallengeRepository(redisClient.Client(), cfg.Redis.ChallengePrefix)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	events := telemetry.InstrumentPublisher(buildEventPublisher(cfg, log), metrics)

	authService := usecase.NewAuthService(repos.Accounts, repos.Policies, challengeStore, hasher, issuer, events, log)
	authService.WithChallengeWindow(cfg.Security.TwoFactorCodeLength, cfg.Security.TwoFactorTTL, cfg.Security.TwoFactorMaxAttempts)

	passwordService := usecase.NewPasswordService(repos.Accounts, repos.Policies, hasher, events, log)

	recoveryService := usecase.NewRecoveryService(repos.Accounts, repos.Policies, hasher, passwordService, log)
	recoveryService.WithTempPasswordLength(cfg.Security.TempPasswordLength)

	policyService := usecase.NewPolicyService(repos.Policies, log)
	if err := policyService.Ensure(ctx); err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("seed security policy: %w", err)
	}

	provisionService := usecase.NewProvisionService(repos.Accounts, repos.Policies, hasher, events, log)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		TokenIssuer: issuer,
		Database:    pool,
		Cache:       redisClient,
		Metrics:     httpMetrics,
		Services: routes.ServiceSet{
			Auth:      authService,
			Passwords: passwordService,
			Recovery:  recoveryService,
			Policies:  policyService,
			Provision: provisionService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		tracer: tracer,
	}, nil
}

func buildEventPublisher(cfg *config.AppConfig, log *zap.Logger) port.EventPublisher {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(log)
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log)
	}

	log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App, log)
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		_ = a.redis.Close()
	}()
	if a.tracer != nil {
		defer func() {
			_ = a.tracer.Shutdown(context.Background())
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting account security API",
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
