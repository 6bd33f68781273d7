package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/storefront-account-security/internal/core/domain"
	"github.com/arklim/storefront-account-security/internal/infra/config"
	"github.com/arklim/storefront-account-security/internal/infra/security"
	"github.com/arklim/storefront-account-security/internal/transport/http/handlers"
	"github.com/arklim/storefront-account-security/internal/transport/http/middleware"
	"github.com/arklim/storefront-account-security/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth      *usecase.AuthService
	Passwords *usecase.PasswordService
	Recovery  *usecase.RecoveryService
	Policies  *usecase.PolicyService
	Provision *usecase.ProvisionService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	TokenIssuer *security.TokenIssuer
	Database    DatabaseChecker
	Cache       CacheChecker
	Metrics     *middleware.HTTPMetrics
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
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	authMiddleware := middleware.RequireAuth(deps.TokenIssuer)
	adminMiddlewares := []gin.HandlerFunc{
		authMiddleware,
		middleware.RequireRole(domain.RoleAdministrator),
	}

	checks := make(map[string]handlers.ReadinessCheck, 2)
	if deps.Database != nil {
		checks["database"] = deps.Database.Ping
	}
	if deps.Cache != nil {
		checks["redis"] = deps.Cache.HealthCheck
	}

	healthHandler := handlers.NewHealthHandler(checks)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Ready)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jwksHandler := handlers.NewJWKSHandler(deps.TokenIssuer)
	r.GET("/.well-known/jwks.json", jwksHandler.Keys)

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Config.JWT.AccessTokenTTL)
		authHandler.RegisterRoutes(authGroup, buildLoginMiddlewares(deps)...)

		passwordGroup := api.Group("/password")
		passwordHandler := handlers.NewPasswordHandler(deps.Services.Passwords)
		passwordHandler.RegisterRoutes(passwordGroup, authMiddleware)

		recoveryGroup := api.Group("/recovery")
		recoveryHandler := handlers.NewRecoveryHandler(deps.Services.Recovery)
		recoveryHandler.RegisterRoutes(recoveryGroup, authMiddleware, buildRecoveryMiddlewares(deps)...)

		adminGroup := api.Group("/admin")

		if deps.Services.Policies != nil {
			policyHandler := handlers.NewPolicyHandler(deps.Services.Policies)
			policyHandler.RegisterRoutes(adminGroup, adminMiddlewares...)
		}

		if deps.Services.Provision != nil {
			provisionHandler := handlers.NewProvisionHandler(deps.Services.Provision)
			provisionHandler.RegisterRoutes(adminGroup, adminMiddlewares...)
		}
	}

	return r
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	return buildRateLimitMiddlewares(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts, time.Minute)
}

func buildRecoveryMiddlewares(deps Dependencies) []gin.HandlerFunc {
	return buildRateLimitMiddlewares(deps, "recovery_ip", deps.Config.RateLimit.RecoveryMaxAttempts, time.Hour)
}

func buildRateLimitMiddlewares(deps Dependencies, name string, limit int, fallbackWindow time.Duration) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = fallbackWindow
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
