package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"plantao-pipeline/internal/config"
	"plantao-pipeline/internal/logging"
	"plantao-pipeline/pkg/models"
)

// Manager manages LLM providers and their lifecycle. It also enforces the
// provider-level request rate and keeps a running call/cost tally for the
// cycle metrics.
type Manager struct {
	config   *config.Config
	factory  *Factory
	provider Provider
	limiter  *rate.Limiter
	logger   logging.Logger
	mu       sync.RWMutex
	healthy  bool
	calls    int64
}

// NewManager creates a new LLM manager instance
func NewManager(cfg *config.Config) *Manager {
	perMinute := cfg.LLM.RateLimit
	if perMinute <= 0 {
		perMinute = 60
	}
	return &Manager{
		config:  cfg,
		factory: NewFactory(cfg),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		logger:  logging.GetGlobalLogger(),
	}
}

// Start initializes the LLM manager and creates the provider
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Starting LLM manager", map[string]interface{}{
		"provider": m.config.LLM.Provider,
	})

	provider, err := m.factory.CreateProvider()
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}

	m.provider = provider

	ctx, cancel := context.WithTimeout(context.Background(), m.config.LLM.Timeout)
	defer cancel()

	if err := m.provider.IsHealthy(ctx); err != nil {
		m.logger.Warn("LLM provider health check failed - unified extraction will be unavailable", map[string]interface{}{
			"error": err.Error(),
		})
		m.healthy = false
		// Allow startup without LLM so the composed strategy keeps working.
	} else {
		m.healthy = true
		m.logger.Info("LLM manager started successfully", map[string]interface{}{
			"provider": m.provider.GetProviderName(),
		})
	}

	return nil
}

// Stop shuts down the LLM manager
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Stopping LLM manager")
	m.provider = nil
	m.healthy = false
	return nil
}

// ClassifyAndExtract runs one structured extraction call through the
// configured provider, honoring the provider rate limit.
func (m *Manager) ClassifyAndExtract(ctx context.Context, text string, referenceDate time.Time) (*models.ExtractionResult, error) {
	m.mu.RLock()
	provider := m.provider
	healthy := m.healthy
	m.mu.RUnlock()

	if provider == nil {
		return nil, fmt.Errorf("LLM manager not started or provider not available")
	}

	if !healthy {
		return nil, fmt.Errorf("LLM provider is not available - check API key configuration (set LLM_API_KEY environment variable)")
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := provider.ClassifyAndExtract(ctx, text, referenceDate)
	if err == nil {
		m.mu.Lock()
		m.calls++
		m.mu.Unlock()
	}
	return result, err
}

// Calls returns the number of successful provider calls since startup.
func (m *Manager) Calls() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// EstimatedCostCents returns the accumulated call cost estimate based on
// the configured per-call cost.
func (m *Manager) EstimatedCostCents() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls * int64(m.config.LLM.CostPerCallCent)
}

// IsHealthy checks if the LLM manager and provider are healthy
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy && m.provider != nil
}

// GetProviderName returns the name of the current LLM provider
func (m *Manager) GetProviderName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.provider != nil {
		return m.provider.GetProviderName()
	}
	return "none"
}

// CheckHealth performs a health check on the LLM provider
func (m *Manager) CheckHealth(ctx context.Context) error {
	m.mu.RLock()
	provider := m.provider
	m.mu.RUnlock()

	if provider == nil {
		return fmt.Errorf("LLM provider not available")
	}

	err := provider.IsHealthy(ctx)

	m.mu.Lock()
	m.healthy = (err == nil)
	m.mu.Unlock()

	return err
}
