package extraction

import (
	"context"
	"errors"
	"time"

	"plantao-pipeline/internal/llm"
	"plantao-pipeline/internal/llm/providers"
	"plantao-pipeline/internal/logging"
	"plantao-pipeline/pkg/models"
)

// UnifiedExtractor delegates classification and all field families to one
// structured LLM call. A malformed reply degrades to zero extracted fields
// with a logged parse failure; transport failures propagate so the
// orchestrator can retry them.
type UnifiedExtractor struct {
	manager *llm.Manager
	logger  logging.Logger
}

// NewUnifiedExtractor creates the LLM-backed strategy.
func NewUnifiedExtractor(manager *llm.Manager) *UnifiedExtractor {
	return &UnifiedExtractor{
		manager: manager,
		logger:  logging.GetGlobalLogger(),
	}
}

// Extract runs one classify-and-extract call through the LLM manager.
func (ue *UnifiedExtractor) Extract(ctx context.Context, msg *models.RawMessage, referenceDate time.Time) (*models.ExtractionResult, error) {
	result, err := ue.manager.ClassifyAndExtract(ctx, msg.Text, referenceDate)
	if err != nil {
		if errors.Is(err, providers.ErrInvalidResponse) {
			ue.logger.Warn("Unified extraction returned malformed structure, treating as zero fields", map[string]interface{}{
				"message_id": msg.ID,
				"error":      err.Error(),
			})
			return &models.ExtractionResult{
				IsPosting:     false,
				Strategy:      "unified",
				ReferenceDate: referenceDate,
			}, nil
		}
		return nil, err
	}

	return result, nil
}

// StrategyName returns the extraction strategy name.
func (ue *UnifiedExtractor) StrategyName() string { return "unified" }
