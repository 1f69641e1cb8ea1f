package models

import "time"

// StageCounts tallies item outcomes for one stage within a cycle.
type StageCounts struct {
	Processed int64 `json:"processed"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Retried   int64 `json:"retried"`
}

// PipelineMetrics aggregates one orchestrator cycle. Daily consolidation
// and reset belong to an external scheduler.
type PipelineMetrics struct {
	CycleID         string                        `json:"cycle_id"`
	StartedAt       time.Time                     `json:"started_at"`
	FinishedAt      time.Time                     `json:"finished_at"`
	Stages          map[PipelineStage]StageCounts `json:"stages"`
	LLMCalls        int64                         `json:"llm_calls"`
	LLMCostCentsEst int64                         `json:"llm_cost_cents_est"`
	EnrichmentCalls int64                         `json:"enrichment_calls"`
	StoreCalls      int64                         `json:"store_calls"`
	Imported        int64                         `json:"imported"`
	NeedsReview     int64                         `json:"needs_review"`
	Discarded       int64                         `json:"discarded"`
	Duplicates      int64                         `json:"duplicates"`
	Postings        int64                         `json:"postings"`
	ItemsErrored    int64                         `json:"items_errored"`
	ItemsRequeued   int64                         `json:"items_requeued"`
}

// DuplicationRate is duplicates over generated postings for the cycle.
func (m *PipelineMetrics) DuplicationRate() float64 {
	if m.Postings == 0 {
		return 0
	}
	return float64(m.Duplicates) / float64(m.Postings)
}

// ConversionRate is imported items over all items that reached a terminal
// outcome in the cycle.
func (m *PipelineMetrics) ConversionRate() float64 {
	total := m.Imported + m.NeedsReview + m.Discarded
	if total == 0 {
		return 0
	}
	return float64(m.Imported) / float64(total)
}
