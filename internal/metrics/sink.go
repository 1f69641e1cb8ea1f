package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"plantao-pipeline/internal/logging"
	"plantao-pipeline/pkg/models"
)

// Sink receives one cycle aggregate. Implementations must tolerate being
// called from the orchestrator goroutine and never block a cycle for long.
type Sink interface {
	Emit(ctx context.Context, m *models.PipelineMetrics) error
}

// LogSink writes cycle metrics as one structured log line.
type LogSink struct {
	logger logging.Logger
}

// NewLogSink creates a sink backed by the global logger.
func NewLogSink() *LogSink {
	return &LogSink{logger: logging.GetGlobalLogger()}
}

// Emit logs the cycle aggregate.
func (s *LogSink) Emit(_ context.Context, m *models.PipelineMetrics) error {
	s.logger.Info("Pipeline cycle metrics", map[string]interface{}{
		"cycle_id":         m.CycleID,
		"duration":         m.FinishedAt.Sub(m.StartedAt).String(),
		"imported":         m.Imported,
		"needs_review":     m.NeedsReview,
		"discarded":        m.Discarded,
		"duplicates":       m.Duplicates,
		"postings":         m.Postings,
		"duplication_rate": m.DuplicationRate(),
		"conversion_rate":  m.ConversionRate(),
		"llm_calls":        m.LLMCalls,
		"llm_cost_cents":   m.LLMCostCentsEst,
		"items_errored":    m.ItemsErrored,
		"items_requeued":   m.ItemsRequeued,
	})
	return nil
}

// HTTPSink POSTs cycle metrics as JSON to an external collector, with a
// small fixed retry.
type HTTPSink struct {
	endpoint   string
	httpClient *http.Client
	retries    int
	logger     logging.Logger
}

// NewHTTPSink creates a sink for the given endpoint. Returns nil when no
// endpoint is configured.
func NewHTTPSink(endpoint string, timeout time.Duration) *HTTPSink {
	if endpoint == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSink{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		retries:    2,
		logger:     logging.GetGlobalLogger(),
	}
}

// Emit posts the aggregate, retrying briefly on failure.
func (s *HTTPSink) Emit(ctx context.Context, m *models.PipelineMetrics) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build metrics request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("metrics endpoint returned status %d", resp.StatusCode)
	}

	s.logger.Warn("Metrics emission failed", map[string]interface{}{
		"endpoint": s.endpoint,
		"error":    lastErr.Error(),
	})
	return lastErr
}

// MultiSink fans one aggregate out to several sinks, skipping nil ones.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink bundles sinks; nil entries are dropped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return &MultiSink{sinks: active}
}

// Emit forwards to every sink; the first error wins but all sinks run.
func (s *MultiSink) Emit(ctx context.Context, m *models.PipelineMetrics) error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Emit(ctx, m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
