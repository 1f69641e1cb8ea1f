package routes

import (
	"net/http"

	"plantao-pipeline/internal/api/handlers"
	"plantao-pipeline/internal/api/middleware"
	"plantao-pipeline/internal/config"
	"plantao-pipeline/internal/llm"
	"plantao-pipeline/internal/pipeline"
	"plantao-pipeline/internal/store"
	"plantao-pipeline/pkg/utils"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, cfg *config.Config, st store.Store, redisClient *utils.RedisClient, llmManager *llm.Manager, orchestrator *pipeline.Orchestrator) {
	// Global middleware
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(middleware.CORSConfig())
	e.Use(middleware.RequestValidation())
	e.Use(middleware.TimeoutConfig(cfg.Server.ReadTimeout))

	// Health check routes
	health := e.Group("/health")
	{
		health.GET("", handlers.HealthHandler)
		health.GET("/ready", handlers.ReadinessHandler(st, redisClient, llmManager))
		health.GET("/live", handlers.LivenessHandler)
	}

	// API v1 routes
	v1 := e.Group("/api/v1")
	{
		v1.POST("/messages", handlers.EnqueueMessageHandler(orchestrator))
		v1.POST("/cycles", handlers.RunCycleHandler(orchestrator))
		v1.GET("/status", handlers.StatusHandler(orchestrator))

		items := v1.Group("/items")
		{
			items.POST("/reprocess", handlers.ReprocessHandler(orchestrator))
			items.POST("/purge", handlers.PurgeHandler(orchestrator))
		}
	}

	// Root route
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "Plantao Pipeline",
			"version": "1.0.0",
			"status":  "running",
		})
	})
}
