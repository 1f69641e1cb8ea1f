package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantao-pipeline/internal/config"
	"plantao-pipeline/internal/decision"
	"plantao-pipeline/internal/dedup"
	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/internal/extraction"
	"plantao-pipeline/internal/generator"
	"plantao-pipeline/internal/heuristic"
	"plantao-pipeline/internal/normalizer"
	"plantao-pipeline/internal/pipeerr"
	"plantao-pipeline/internal/store"
	"plantao-pipeline/pkg/models"
)

// fakeItems is the in-memory backlog.
type fakeItems struct {
	mu    sync.Mutex
	items map[string]*models.PipelineItem
}

func newFakeItems() *fakeItems {
	return &fakeItems{items: make(map[string]*models.PipelineItem)}
}

func (f *fakeItems) InsertMessage(_ context.Context, msg *models.RawMessage) (*models.PipelineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.items[msg.ID]; ok {
		return item, nil
	}
	item := &models.PipelineItem{
		ID:      msg.ID,
		Message: *msg,
		Stage:   models.StagePending,
	}
	f.items[msg.ID] = item
	return item, nil
}

func (f *fakeItems) FetchPending(_ context.Context, stage models.PipelineStage, limit int) ([]*models.PipelineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	var out []*models.PipelineItem
	for _, item := range f.items {
		if item.Stage == stage && !item.NextAttemptAt.After(now) {
			out = append(out, item)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeItems) UpdateItem(_ context.Context, item *models.PipelineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = item
	return nil
}

func (f *fakeItems) RequeueStuck(_ context.Context, _ time.Duration, _ time.Time) (int, error) {
	return 0, nil
}

func (f *fakeItems) ReprocessErrors(_ context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, item := range f.items {
		if item.Stage != models.StageError {
			continue
		}
		if len(ids) > 0 && !containsID(ids, item.ID) {
			continue
		}
		item.Stage = models.StagePending
		item.Attempts = 0
		item.LastError = nil
		count++
	}
	return count, nil
}

func (f *fakeItems) PurgeTerminal(_ context.Context, _ time.Duration, _ time.Time) (int, error) {
	return 0, nil
}

func (f *fakeItems) StageCounts(_ context.Context) (map[models.PipelineStage]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[models.PipelineStage]int)
	for _, item := range f.items {
		counts[item.Stage]++
	}
	return counts, nil
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// fakeStore bundles the fakes behind the store boundary.
type fakeStore struct {
	items    *fakeItems
	postings *fakePostings
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: newFakeItems(), postings: newFakePostings()}
}

func (f *fakeStore) Items() store.ItemRepo        { return f.items }
func (f *fakeStore) Entities() store.EntityRepo   { return fakeEntities{} }
func (f *fakeStore) Postings() store.PostingRepo  { return f.postings }
func (f *fakeStore) Ping(_ context.Context) error { return nil }
func (f *fakeStore) Close()                       {}

// countingExtractor wraps another extractor and counts invocations.
type countingExtractor struct {
	inner extraction.Extractor
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingExtractor) Extract(ctx context.Context, msg *models.RawMessage, referenceDate time.Time) (*models.ExtractionResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Extract(ctx, msg, referenceDate)
}

func (c *countingExtractor) StrategyName() string { return "counting" }

func (c *countingExtractor) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newTestOrchestrator(t *testing.T, st *fakeStore, extractor extraction.Extractor, mutate func(*config.Config)) *Orchestrator {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}

	dict := dictionary.Default()
	stages := NewStages(
		heuristic.NewFilter(dict, heuristic.Options{}),
		extractor,
		generator.New(cfg),
		normalizer.New(cfg, dict, fakeEntities{}),
		dedup.New(cfg, st.postings),
		decision.New(cfg),
		fakeEntities{},
	)
	return NewOrchestrator(cfg, st, stages, nil, nil, nil)
}

func TestOrchestratorDrivesItemToImport(t *testing.T) {
	st := newFakeStore()
	extractor := &countingExtractor{inner: extraction.NewComposedExtractor(dictionary.Default())}
	o := newTestOrchestrator(t, st, extractor, nil)

	received := time.Date(2025, 12, 20, 9, 0, 0, 0, time.UTC)
	_, err := o.Enqueue(context.Background(), &models.RawMessage{
		ID:         "msg-1",
		GroupID:    "group-1",
		Text:       "🚨 URGENTE - Hospital São Luiz ABC, Clínica Médica, 28/12, noturno, R$ 1.800",
		ReceivedAt: received,
	})
	require.NoError(t, err)

	// The plan runs later stages first, so each cycle advances the item
	// exactly one checkpoint and six cover the whole ladder.
	ladder := []models.PipelineStage{
		models.StageHeuristicPassed,
		models.StageClassified,
		models.StageExtracted,
		models.StageNormalized,
		models.StageDedupChecked,
		models.StageImported,
	}
	for _, want := range ladder {
		require.NoError(t, o.RunCycle(context.Background()))
		require.Equal(t, want, st.items.items["msg-1"].Stage)
	}

	assert.Equal(t, 1, extractor.callCount())
}

func TestOrchestratorNeverClassifiesRejectedItems(t *testing.T) {
	st := newFakeStore()
	extractor := &countingExtractor{inner: extraction.NewComposedExtractor(dictionary.Default())}
	o := newTestOrchestrator(t, st, extractor, nil)

	_, err := o.Enqueue(context.Background(), &models.RawMessage{
		ID:         "msg-greeting",
		GroupID:    "group-1",
		Text:       "Bom dia pessoal",
		ReceivedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, o.RunCycle(context.Background()))
	}

	item := st.items.items["msg-greeting"]
	assert.Equal(t, models.StageHeuristicRejected, item.Stage)
	assert.Equal(t, string(models.RejectNegativeKeyword), item.DiscardReason)
	assert.Zero(t, extractor.callCount())
}

func TestOrchestratorTransientErrorRetriesWithBackoff(t *testing.T) {
	st := newFakeStore()
	extractor := &countingExtractor{
		inner: extraction.NewComposedExtractor(dictionary.Default()),
		err:   pipeerr.Transient("llm timeout"),
	}
	o := newTestOrchestrator(t, st, extractor, func(cfg *config.Config) {
		cfg.Worker.MaxAttempts = 2
	})

	_, err := o.Enqueue(context.Background(), &models.RawMessage{
		ID:         "msg-retry",
		GroupID:    "group-1",
		Text:       "Plantão Hospital ABC amanhã noturno R$ 1.500",
		ReceivedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	// Cycle 1: heuristic passes. Cycle 2: first classification attempt
	// fails transiently and schedules a retry.
	require.NoError(t, o.RunCycle(context.Background()))
	require.NoError(t, o.RunCycle(context.Background()))

	item := st.items.items["msg-retry"]
	assert.Equal(t, models.StageHeuristicPassed, item.Stage)
	assert.Equal(t, 1, item.Attempts)
	require.NotNil(t, item.LastError)
	assert.Equal(t, models.ErrorKindTransientExternal, item.LastError.Kind)
	assert.True(t, item.NextAttemptAt.After(time.Now().UTC()))

	// Force eligibility; the second failure exhausts the budget.
	item.NextAttemptAt = time.Now().UTC().Add(-time.Second)
	require.NoError(t, o.RunCycle(context.Background()))

	item = st.items.items["msg-retry"]
	assert.Equal(t, models.StageError, item.Stage)
	assert.Equal(t, 2, item.Attempts)
}

func TestOrchestratorValidationErrorDiscards(t *testing.T) {
	st := newFakeStore()
	extractor := &countingExtractor{
		inner: extraction.NewComposedExtractor(dictionary.Default()),
		err:   pipeerr.Validation("mensagem estruturalmente invalida"),
	}
	o := newTestOrchestrator(t, st, extractor, nil)

	_, err := o.Enqueue(context.Background(), &models.RawMessage{
		ID:         "msg-invalid",
		GroupID:    "group-1",
		Text:       "Plantão Hospital ABC amanhã noturno R$ 1.500",
		ReceivedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, o.RunCycle(context.Background()))
	require.NoError(t, o.RunCycle(context.Background()))

	item := st.items.items["msg-invalid"]
	assert.Equal(t, models.StageDiscarded, item.Stage)
	require.NotNil(t, item.LastError)
	assert.Equal(t, models.ErrorKindValidation, item.LastError.Kind)
}

func TestOrchestratorReprocessErrors(t *testing.T) {
	st := newFakeStore()
	extractor := &countingExtractor{inner: extraction.NewComposedExtractor(dictionary.Default())}
	o := newTestOrchestrator(t, st, extractor, nil)

	st.items.items["msg-err"] = &models.PipelineItem{
		ID:    "msg-err",
		Stage: models.StageError,
	}

	count, err := o.ReprocessErrors(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, models.StagePending, st.items.items["msg-err"].Stage)
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Worker.BackoffBase = 30 * time.Second
	cfg.Worker.BackoffMax = 5 * time.Minute
	o := &Orchestrator{cfg: cfg}

	assert.Equal(t, 30*time.Second, o.backoff(1))
	assert.Equal(t, time.Minute, o.backoff(2))
	assert.Equal(t, 2*time.Minute, o.backoff(3))
	assert.Equal(t, 4*time.Minute, o.backoff(4))
	assert.Equal(t, 5*time.Minute, o.backoff(5))
	assert.Equal(t, 5*time.Minute, o.backoff(12))
}
