package extraction

import (
	"context"
	"time"

	"plantao-pipeline/pkg/models"
)

// Extractor is the classification and field-extraction capability. Both
// strategies implement it; nothing downstream of the posting generator may
// branch on which one produced the result.
type Extractor interface {
	// Extract classifies the message and returns all field candidates.
	// referenceDate anchors relative dates ("amanhã", weekday names).
	Extract(ctx context.Context, msg *models.RawMessage, referenceDate time.Time) (*models.ExtractionResult, error)

	// StrategyName returns the name of the extraction strategy
	StrategyName() string
}
