// Package pipeline owns the state machine that moves items from raw
// message to terminal outcome. The orchestrator is the only place that
// decides retry versus terminal transition; stages just return results.
package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"plantao-pipeline/internal/config"
	"plantao-pipeline/internal/llm"
	"plantao-pipeline/internal/logging"
	"plantao-pipeline/internal/metrics"
	"plantao-pipeline/internal/pipeerr"
	"plantao-pipeline/internal/store"
	"plantao-pipeline/pkg/models"
	"plantao-pipeline/pkg/utils"
)

const cycleLockKey = "plantao:pipeline:cycle_lock"

// stagePlan binds a backlog stage to its processor and resource budget.
type stagePlan struct {
	stage   models.PipelineStage
	process func(context.Context, *models.PipelineItem) (models.PipelineStage, error)
	budget  *Budget
}

// Orchestrator drives pipeline cycles: fetch bounded batches per stage,
// run them concurrently under per-resource budgets, persist every
// transition as an idempotent checkpoint.
type Orchestrator struct {
	cfg        *config.Config
	store      store.Store
	stages     *Stages
	llmManager *llm.Manager
	redis      *utils.RedisClient
	collector  *metrics.Collector
	sink       metrics.Sink
	logger     logging.Logger

	llmBudget    *Budget
	enrichBudget *Budget
	storeBudget  *Budget

	// cycleMu serializes cycles in-process; the redis lock covers other
	// workers against the same backlog.
	cycleMu sync.Mutex
}

// NewOrchestrator wires the orchestrator.
func NewOrchestrator(
	cfg *config.Config,
	st store.Store,
	stages *Stages,
	llmManager *llm.Manager,
	redisClient *utils.RedisClient,
	sink metrics.Sink,
) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		store:        st,
		stages:       stages,
		llmManager:   llmManager,
		redis:        redisClient,
		collector:    metrics.NewCollector(),
		sink:         sink,
		logger:       logging.GetGlobalLogger(),
		llmBudget:    NewBudget("llm", cfg.Worker.LLMBudget),
		enrichBudget: NewBudget("enrichment", cfg.Worker.EnrichmentBudget),
		storeBudget:  NewBudget("store", cfg.Worker.StoreBudget),
	}
}

// plan returns the stage order for one cycle. Later stages run first so a
// cycle drains work nearest completion before admitting new items.
func (o *Orchestrator) plan() []stagePlan {
	return []stagePlan{
		{models.StageDedupChecked, o.stages.Decide, o.storeBudget},
		{models.StageNormalized, o.stages.Dedup, o.storeBudget},
		{models.StageExtracted, o.stages.Normalize, o.enrichBudget},
		{models.StageClassified, o.stages.Generate, o.storeBudget},
		{models.StageHeuristicPassed, o.stages.Classify, o.llmBudget},
		{models.StagePending, o.stages.Heuristic, o.storeBudget},
	}
}

// Run executes cycles on the configured interval until the context ends.
func (o *Orchestrator) Run(ctx context.Context) error {
	interval := o.cfg.Worker.CycleInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.logger.Info("Pipeline orchestrator started", map[string]interface{}{
		"cycle_interval": interval.String(),
		"batch_size":     o.cfg.Worker.BatchSize,
	})

	for {
		if err := o.RunCycle(ctx); err != nil && ctx.Err() == nil {
			o.logger.Error("Pipeline cycle failed", map[string]interface{}{
				"error": err.Error(),
			})
		}

		select {
		case <-ctx.Done():
			o.logger.Info("Pipeline orchestrator stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle executes one full cycle. A second concurrent call, local or on
// another worker, is a no-op while the first holds the guard.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if !o.cycleMu.TryLock() {
		o.logger.Debug("Cycle already running in this process, skipping")
		return nil
	}
	defer o.cycleMu.Unlock()

	token := ""
	if o.redis != nil {
		acquired, t, err := o.redis.AcquireLock(ctx, cycleLockKey, o.cfg.Worker.CycleLockTTL)
		if err != nil {
			return pipeerr.Wrap(err, models.ErrorKindTransientExternal, "acquire cycle lock")
		}
		if !acquired {
			o.logger.Debug("Another worker holds the cycle lock, skipping")
			return nil
		}
		token = t
		defer func() {
			if err := o.redis.ReleaseLock(context.WithoutCancel(ctx), cycleLockKey, token); err != nil {
				o.logger.Warn("Cycle lock release failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
	}

	o.collector.StartCycle()
	start := time.Now()

	requeued, err := o.store.Items().RequeueStuck(ctx, o.cfg.Worker.StuckThreshold, time.Now().UTC())
	if err != nil {
		o.logger.Warn("Stuck item requeue failed", map[string]interface{}{
			"error": err.Error(),
		})
	} else if requeued > 0 {
		o.collector.RecordRequeued(requeued)
		o.logger.Info("Requeued stuck items", map[string]interface{}{
			"count": requeued,
		})
	}

	// Cancellation is honored between stage batches, never mid-item.
	for _, plan := range o.plan() {
		if ctx.Err() != nil {
			break
		}
		if err := o.runStageBatch(ctx, plan); err != nil {
			o.logger.Error("Stage batch failed", map[string]interface{}{
				"stage": string(plan.stage),
				"error": err.Error(),
			})
		}
	}

	if o.llmManager != nil {
		o.collector.SetLLMUsage(o.llmManager.Calls(), o.llmManager.EstimatedCostCents())
	}

	if m := o.collector.FinishCycle(); m != nil && o.sink != nil {
		if err := o.sink.Emit(context.WithoutCancel(ctx), m); err != nil {
			o.logger.Warn("Metrics sink emit failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	o.logger.Info("Pipeline cycle finished", map[string]interface{}{
		"duration": utils.FormatDuration(time.Since(start)),
	})

	return ctx.Err()
}

// runStageBatch fetches one bounded batch for the stage and processes the
// items concurrently under the stage's budget.
func (o *Orchestrator) runStageBatch(ctx context.Context, plan stagePlan) error {
	batchSize := o.cfg.Worker.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	items, err := o.store.Items().FetchPending(ctx, plan.stage, batchSize)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	o.logger.Debug("Processing stage batch", map[string]interface{}{
		"stage":  string(plan.stage),
		"items":  len(items),
		"budget": plan.budget.Name(),
	})

	g, gctx := errgroup.WithContext(ctx)
	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := plan.budget.Acquire(gctx); err != nil {
				return err
			}
			defer plan.budget.Release()

			o.processItem(gctx, plan, item)
			return nil
		})
	}
	return g.Wait()
}

// processItem runs one item through the stage processor and persists the
// outcome. All retry and terminal-transition policy lives here.
func (o *Orchestrator) processItem(ctx context.Context, plan stagePlan, item *models.PipelineItem) {
	now := time.Now().UTC()

	next, err := plan.process(ctx, item)
	if err != nil {
		o.handleFailure(ctx, plan.stage, item, err, now)
		return
	}

	item.Transition(next, now)
	item.NextAttemptAt = now
	if next.IsTerminal() {
		o.collector.RecordOutcome(next)
	}
	o.recordPostingCounts(plan.stage, item)
	o.collector.RecordStage(plan.stage, true, false)

	if err := o.store.Items().UpdateItem(ctx, item); err != nil {
		// The item stays at its previous checkpoint in the store; the
		// next cycle re-runs this stage, which is idempotent.
		o.logger.Error("Item update failed, stage will re-run", map[string]interface{}{
			"item_id": item.ID,
			"stage":   string(plan.stage),
			"error":   err.Error(),
		})
	}
}

// handleFailure applies the error taxonomy: validation discards, transient
// retries with exponential backoff until the attempt budget is spent,
// anything else goes to terminal error for triage.
func (o *Orchestrator) handleFailure(ctx context.Context, stage models.PipelineStage, item *models.PipelineItem, err error, now time.Time) {
	kind := pipeerr.KindOf(err)
	retried := false

	switch kind {
	case models.ErrorKindValidation:
		item.RecordFailure(kind, err.Error(), now)
		item.DiscardReason = err.Error()
		item.Transition(models.StageDiscarded, now)
		item.LastError = &models.ItemError{Kind: kind, Message: err.Error()}
		o.collector.RecordOutcome(models.StageDiscarded)

	case models.ErrorKindTransientExternal:
		item.RecordFailure(kind, err.Error(), now)
		maxAttempts := o.cfg.Worker.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = 5
		}
		if item.Attempts >= maxAttempts {
			item.Transition(models.StageError, now)
			item.LastError = &models.ItemError{Kind: kind, Message: err.Error()}
			o.collector.RecordOutcome(models.StageError)
			o.logger.Warn("Item exceeded attempt budget", map[string]interface{}{
				"item_id":  item.ID,
				"stage":    string(stage),
				"attempts": item.Attempts,
			})
		} else {
			item.NextAttemptAt = now.Add(o.backoff(item.Attempts))
			retried = true
		}

	default:
		// internal and unexpected not_found: never silently dropped.
		item.RecordFailure(kind, err.Error(), now)
		item.Transition(models.StageError, now)
		item.LastError = &models.ItemError{Kind: kind, Message: err.Error()}
		o.collector.RecordOutcome(models.StageError)
		o.logger.Error("Item failed with non-retryable error", map[string]interface{}{
			"item_id": item.ID,
			"stage":   string(stage),
			"kind":    string(kind),
			"error":   err.Error(),
		})
	}

	o.collector.RecordStage(stage, false, retried)

	if updateErr := o.store.Items().UpdateItem(ctx, item); updateErr != nil {
		o.logger.Error("Failure bookkeeping update failed", map[string]interface{}{
			"item_id": item.ID,
			"error":   updateErr.Error(),
		})
	}
}

// backoff computes the exponential delay before the next attempt.
func (o *Orchestrator) backoff(attempts int) time.Duration {
	base := o.cfg.Worker.BackoffBase
	if base <= 0 {
		base = 30 * time.Second
	}
	max := o.cfg.Worker.BackoffMax
	if max <= 0 {
		max = 30 * time.Minute
	}

	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// recordPostingCounts feeds the cycle collector after the stages that
// produce postings and dedup outcomes.
func (o *Orchestrator) recordPostingCounts(stage models.PipelineStage, item *models.PipelineItem) {
	switch stage {
	case models.StageClassified:
		o.collector.RecordPostings(len(item.Payload.Postings), 0)
	case models.StageNormalized:
		duplicates := 0
		for _, outcome := range item.Payload.Dedup {
			if outcome.IsDuplicate {
				duplicates++
			}
		}
		o.collector.RecordPostings(0, duplicates)
	}
}

// Status reports the backlog size per stage.
func (o *Orchestrator) Status(ctx context.Context) (map[models.PipelineStage]int, error) {
	return o.store.Items().StageCounts(ctx)
}

// ReprocessErrors moves errored items back to pending for another pass.
func (o *Orchestrator) ReprocessErrors(ctx context.Context, ids []string) (int, error) {
	return o.store.Items().ReprocessErrors(ctx, ids)
}

// PurgeTerminal removes terminal items older than the retention window.
func (o *Orchestrator) PurgeTerminal(ctx context.Context) (int, error) {
	return o.store.Items().PurgeTerminal(ctx, o.cfg.Worker.RetentionWindow, time.Now().UTC())
}

// Enqueue inserts a raw message into the backlog.
func (o *Orchestrator) Enqueue(ctx context.Context, msg *models.RawMessage) (*models.PipelineItem, error) {
	return o.store.Items().InsertMessage(ctx, msg)
}
