package handlers

import (
	"context"
	"net/http"
	"time"

	"plantao-pipeline/internal/api/validation"
	"plantao-pipeline/internal/logging"
	"plantao-pipeline/internal/pipeline"
	"plantao-pipeline/pkg/models"

	"github.com/labstack/echo/v4"
)

// RunCycleHandler triggers one pipeline cycle. The cycle runs in the
// background; a cycle already in flight makes this a no-op.
func RunCycleHandler(orchestrator *pipeline.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := requestID(c)
		logger := logging.GetGlobalLogger()

		logger.Info("Manual cycle trigger requested", map[string]interface{}{
			"request_id": requestID,
		})

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if err := orchestrator.RunCycle(ctx); err != nil {
				logger.Error("Manually triggered cycle failed", map[string]interface{}{
					"request_id": requestID,
					"error":      err.Error(),
				})
			}
		}()

		return c.JSON(http.StatusAccepted, map[string]interface{}{
			"status":     "cycle_started",
			"request_id": requestID,
			"timestamp":  time.Now(),
		})
	}
}

// StatusHandler reports the backlog size per stage.
func StatusHandler(orchestrator *pipeline.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		stages, err := orchestrator.Status(c.Request().Context())
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, "status_failed", err)
		}
		return c.JSON(http.StatusOK, models.StatusResponse{
			Stages:    stages,
			Timestamp: time.Now(),
		})
	}
}

// ReprocessHandler moves errored items back to pending.
func ReprocessHandler(orchestrator *pipeline.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.ReprocessRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", err)
		}

		affected, err := orchestrator.ReprocessErrors(c.Request().Context(), req.IDs)
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, "reprocess_failed", err)
		}

		return c.JSON(http.StatusOK, models.CountResponse{
			Affected:  affected,
			RequestID: requestID(c),
			Timestamp: time.Now(),
		})
	}
}

// PurgeHandler deletes terminal items older than the retention window.
func PurgeHandler(orchestrator *pipeline.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		affected, err := orchestrator.PurgeTerminal(c.Request().Context())
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, "purge_failed", err)
		}

		return c.JSON(http.StatusOK, models.CountResponse{
			Affected:  affected,
			RequestID: requestID(c),
			Timestamp: time.Now(),
		})
	}
}

// EnqueueMessageHandler accepts one raw WhatsApp message into the backlog.
func EnqueueMessageHandler(orchestrator *pipeline.Orchestrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.EnqueueMessageRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid_request", err)
		}
		if err := validation.Validator().Struct(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "validation_failed", err)
		}

		receivedAt := req.ReceivedAt
		if receivedAt.IsZero() {
			receivedAt = time.Now().UTC()
		}

		item, err := orchestrator.Enqueue(c.Request().Context(), &models.RawMessage{
			ID:         req.ID,
			GroupID:    req.GroupID,
			SenderID:   req.SenderID,
			Text:       req.Text,
			ReceivedAt: receivedAt,
		})
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, "enqueue_failed", err)
		}

		return c.JSON(http.StatusAccepted, map[string]interface{}{
			"item_id":    item.ID,
			"stage":      item.Stage,
			"request_id": requestID(c),
			"timestamp":  time.Now(),
		})
	}
}

func requestID(c echo.Context) string {
	if id, ok := c.Get("request_id").(string); ok {
		return id
	}
	return ""
}

func errorJSON(c echo.Context, code int, label string, err error) error {
	return c.JSON(code, models.ErrorResponse{
		Error:     label,
		Message:   err.Error(),
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}
