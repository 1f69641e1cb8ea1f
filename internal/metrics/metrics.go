// Package metrics aggregates per-cycle pipeline counters and ships them to
// a sink. The alerting side lives outside this module; the collector only
// counts.
package metrics

import (
	"sync"
	"time"

	"plantao-pipeline/pkg/models"
	"plantao-pipeline/pkg/utils"
)

// Collector accumulates counters for one orchestrator cycle. Safe for
// concurrent stage workers.
type Collector struct {
	mu      sync.Mutex
	current *models.PipelineMetrics
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// StartCycle begins a new cycle aggregate, discarding any previous one.
func (c *Collector) StartCycle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = &models.PipelineMetrics{
		CycleID:   utils.GenerateRequestID(),
		StartedAt: time.Now().UTC(),
		Stages:    make(map[models.PipelineStage]models.StageCounts),
	}
}

// RecordStage tallies one item outcome at a stage.
func (c *Collector) RecordStage(stage models.PipelineStage, succeeded, retried bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	counts := c.current.Stages[stage]
	counts.Processed++
	if succeeded {
		counts.Succeeded++
	} else {
		counts.Failed++
	}
	if retried {
		counts.Retried++
	}
	c.current.Stages[stage] = counts
}

// RecordOutcome tallies one item reaching a terminal outcome.
func (c *Collector) RecordOutcome(stage models.PipelineStage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	switch stage {
	case models.StageImported:
		c.current.Imported++
	case models.StageNeedsReview:
		c.current.NeedsReview++
	case models.StageDiscarded:
		c.current.Discarded++
	case models.StageError:
		c.current.ItemsErrored++
	}
}

// RecordPostings tallies generated postings and the duplicates among them.
func (c *Collector) RecordPostings(generated, duplicates int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	c.current.Postings += int64(generated)
	c.current.Duplicates += int64(duplicates)
}

// RecordEnrichmentCall tallies one external registry call.
func (c *Collector) RecordEnrichmentCall() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.current.EnrichmentCalls++
	}
}

// RecordStoreCall tallies one catalog store call.
func (c *Collector) RecordStoreCall() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.current.StoreCalls++
	}
}

// RecordRequeued tallies stuck items re-opened this cycle.
func (c *Collector) RecordRequeued(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.current.ItemsRequeued += int64(n)
	}
}

// SetLLMUsage records the provider call and cost totals for the cycle.
func (c *Collector) SetLLMUsage(calls, costCents int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.current.LLMCalls = calls
		c.current.LLMCostCentsEst = costCents
	}
}

// FinishCycle closes the aggregate and returns it.
func (c *Collector) FinishCycle() *models.PipelineMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	m := c.current
	m.FinishedAt = time.Now().UTC()
	c.current = nil
	return m
}
