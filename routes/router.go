package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"namaste-icd-mapper/internal/auth"
	"namaste-icd-mapper/internal/config"
	"namaste-icd-mapper/internal/queue"
	"namaste-icd-mapper/internal/telemetry"
	"namaste-icd-mapper/middleware"
	"namaste-icd-mapper/services"
)

// Dependencies are the long-lived components handed to the HTTP layer.
// Redis, Queue, Tokens and Metrics are optional.
type Dependencies struct {
	Mapping  *services.MappingService
	Feedback *services.FeedbackService
	Redis    *redis.Client
	Queue    queue.Enqueuer
	Tokens   *auth.TokenManager
	Metrics  *telemetry.Metrics
}

func NewRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RequestLogger())
	if cfg.OTELEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(deps.Metrics))
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	router.Use(middleware.RequestSizeLimit(cfg.MaxRequestSize))
	if deps.Redis != nil {
		router.Use(middleware.RateLimitMiddleware(deps.Redis, cfg))
	} else {
		router.Use(middleware.LocalRateLimitMiddleware(cfg))
	}

	api := router.Group(cfg.APIPrefix)
	admin := api.Group("/admin", middleware.RequireRole(deps.Tokens, auth.RoleAdmin))
	SetupSystemRoutes(router, api, deps.Mapping)
	SetupAdminRoutes(admin, deps.Mapping, deps.Feedback, deps.Queue, cfg.ExportDir)
	SetupMappingRoutes(api, deps.Mapping, deps.Feedback)
	SetupAyushRoutes(api, deps.Mapping)

	return router
}
