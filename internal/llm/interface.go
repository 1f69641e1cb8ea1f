package llm

import (
	"context"
	"time"

	"plantao-pipeline/pkg/models"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// ClassifyAndExtract decides whether the text is a shift posting and
	// extracts all field families in one structured call. Relative dates
	// in the text are resolved against referenceDate.
	ClassifyAndExtract(ctx context.Context, text string, referenceDate time.Time) (*models.ExtractionResult, error)

	// IsHealthy checks if the provider is healthy and available
	IsHealthy(ctx context.Context) error

	// GetProviderName returns the name of the provider
	GetProviderName() string
}
