package handlers

import (
	"net/http"
	"time"

	"plantao-pipeline/internal/llm"
	"plantao-pipeline/internal/logging"
	"plantao-pipeline/internal/store"
	"plantao-pipeline/pkg/models"
	"plantao-pipeline/pkg/utils"

	"github.com/labstack/echo/v4"
)

var startTime = time.Now()

// HealthHandler handles health check requests
func HealthHandler(c echo.Context) error {
	requestID := utils.GenerateRequestID()
	logger := logging.GetGlobalLogger()

	logger.Debug("Health check requested", map[string]interface{}{"request_id": requestID})

	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Uptime:    time.Since(startTime),
		Checks: map[string]string{
			"api": "ok",
		},
	}

	return c.JSON(http.StatusOK, response)
}

// ReadinessHandler reports whether the store, redis and LLM provider are
// reachable.
func ReadinessHandler(st store.Store, redisClient *utils.RedisClient, llmManager *llm.Manager) echo.HandlerFunc {
	return func(c echo.Context) error {
		checks := map[string]string{"api": "ok"}
		status := "ready"
		code := http.StatusOK

		if err := st.Ping(c.Request().Context()); err != nil {
			checks["store"] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}

		if redisClient != nil {
			if err := redisClient.IsHealthy(c.Request().Context()); err != nil {
				checks["redis"] = err.Error()
				status = "degraded"
			} else {
				checks["redis"] = "ok"
			}
		}

		if llmManager != nil {
			if llmManager.IsHealthy() {
				checks["llm"] = "ok"
			} else {
				checks["llm"] = "unavailable"
			}
		}

		return c.JSON(code, models.HealthResponse{
			Status:    status,
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Uptime:    time.Since(startTime),
			Checks:    checks,
		})
	}
}

// LivenessHandler handles liveness probe requests
func LivenessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Uptime:    time.Since(startTime),
	})
}
