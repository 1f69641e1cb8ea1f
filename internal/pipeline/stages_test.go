package pipeline

import (
	"context"
	"fmt"
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
	"plantao-pipeline/pkg/models"
)

// fakeEntities resolves every alias deterministically, as if the catalog
// already knew every entity.
type fakeEntities struct{}

func (fakeEntities) FindByAlias(_ context.Context, typ models.EntityType, alias string) (*models.EntityMatch, error) {
	return &models.EntityMatch{
		EntityID: "ent-" + string(typ) + "-" + alias,
		Name:     alias,
		Score:    1.0,
		Source:   models.MatchExactAlias,
	}, nil
}

func (fakeEntities) SearchSimilar(_ context.Context, _ models.EntityType, _ string, _ float64) (*models.EntityMatch, error) {
	return nil, pipeerr.NotFound("no similar name")
}

func (fakeEntities) FindOrCreate(_ context.Context, typ models.EntityType, name string, _ map[string]string) (string, bool, error) {
	return "ent-" + string(typ) + "-" + name, false, nil
}

func (fakeEntities) IncrementAliasUsage(_ context.Context, _ models.EntityType, _ string) error {
	return nil
}

// fakePostings is the in-memory canonical posting window.
type fakePostings struct {
	byKey   map[string]*models.PostingRef
	sources map[string][]models.Provenance
	nextID  int
}

func newFakePostings() *fakePostings {
	return &fakePostings{
		byKey:   make(map[string]*models.PostingRef),
		sources: make(map[string][]models.Provenance),
	}
}

func (f *fakePostings) FindDuplicate(_ context.Context, key string, window time.Duration, now time.Time) (*models.PostingRef, error) {
	ref, ok := f.byKey[key]
	if !ok || ref.CreatedAt.Before(now.Add(-window)) {
		return nil, pipeerr.NotFound("no canonical posting in window")
	}
	return ref, nil
}

func (f *fakePostings) InsertCanonical(_ context.Context, posting *models.NormalizedPosting, key string) (string, error) {
	if ref, ok := f.byKey[key]; ok {
		return ref.ID, nil
	}
	f.nextID++
	id := fmt.Sprintf("posting-%d", f.nextID)
	f.byKey[key] = &models.PostingRef{ID: id, DedupKey: key, CreatedAt: posting.Posting.Provenance.SeenAt}
	f.sources[id] = []models.Provenance{posting.Posting.Provenance}
	return id, nil
}

func (f *fakePostings) AppendSource(_ context.Context, canonicalID string, prov models.Provenance) error {
	for _, existing := range f.sources[canonicalID] {
		if existing.MessageID == prov.MessageID {
			return nil
		}
	}
	f.sources[canonicalID] = append(f.sources[canonicalID], prov)
	return nil
}

func (f *fakePostings) ListSources(_ context.Context, canonicalID string) ([]models.Provenance, error) {
	return f.sources[canonicalID], nil
}

func newTestStages(t *testing.T, postings *fakePostings) *Stages {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	dict := dictionary.Default()
	entities := fakeEntities{}

	return NewStages(
		heuristic.NewFilter(dict, heuristic.Options{}),
		extraction.NewComposedExtractor(dict),
		generator.New(cfg),
		normalizer.New(cfg, dict, entities),
		dedup.New(cfg, postings),
		decision.New(cfg),
		entities,
	)
}

func newItem(id, groupID, text string, receivedAt time.Time) *models.PipelineItem {
	return &models.PipelineItem{
		ID: id,
		Message: models.RawMessage{
			ID:         id,
			GroupID:    groupID,
			Text:       text,
			ReceivedAt: receivedAt,
		},
		Stage: models.StagePending,
	}
}

// runThrough advances the item stage by stage until a terminal stage.
func runThrough(t *testing.T, s *Stages, item *models.PipelineItem) models.PipelineStage {
	t.Helper()

	processors := map[models.PipelineStage]func(context.Context, *models.PipelineItem) (models.PipelineStage, error){
		models.StagePending:         s.Heuristic,
		models.StageHeuristicPassed: s.Classify,
		models.StageClassified:      s.Generate,
		models.StageExtracted:       s.Normalize,
		models.StageNormalized:      s.Dedup,
		models.StageDedupChecked:    s.Decide,
	}

	stage := item.Stage
	for !stage.IsTerminal() {
		process, ok := processors[stage]
		require.True(t, ok, "no processor for stage %s", stage)

		next, err := process(context.Background(), item)
		require.NoError(t, err)
		require.NotEqual(t, stage, next, "stage %s did not advance", stage)
		stage = next
		item.Stage = next
	}
	return stage
}

func TestStagesScenarioImports(t *testing.T) {
	s := newTestStages(t, newFakePostings())

	received := time.Date(2025, 12, 20, 9, 0, 0, 0, time.UTC)
	item := newItem("msg-1", "group-1", "🚨 URGENTE - Hospital São Luiz ABC, Clínica Médica, 28/12, noturno, R$ 1.800", received)

	final := runThrough(t, s, item)
	assert.Equal(t, models.StageImported, final)

	require.NotNil(t, item.Payload.Heuristic)
	assert.True(t, item.Payload.Heuristic.Passed)
	assert.GreaterOrEqual(t, item.Payload.Heuristic.Score, 0.5)

	require.NotNil(t, item.Payload.Extraction)
	require.Len(t, item.Payload.Postings, 1)
	posting := item.Payload.Postings[0]
	assert.Equal(t, int64(180000), posting.Value.AmountCents)
	assert.True(t, posting.Value.Resolved)
	assert.Empty(t, posting.ContactName)

	require.Len(t, item.Payload.Normalized, 1)
	assert.NotNil(t, item.Payload.Normalized[0].Hospital)
	assert.NotNil(t, item.Payload.Normalized[0].Specialty)

	require.Len(t, item.Payload.Decisions, 1)
	assert.Equal(t, models.ActionImport, item.Payload.Decisions[0].Action)
}

func TestStagesGreetingRejectedBeforeClassification(t *testing.T) {
	s := newTestStages(t, newFakePostings())

	item := newItem("msg-2", "group-1", "Bom dia pessoal", time.Now().UTC())
	next, err := s.Heuristic(context.Background(), item)
	require.NoError(t, err)

	// Terminal at the heuristic: the orchestrator never fetches this
	// item for the classification stage.
	assert.Equal(t, models.StageHeuristicRejected, next)
	assert.True(t, next.IsTerminal())
	assert.Equal(t, string(models.RejectNegativeKeyword), item.DiscardReason)
}

func TestStagesNonPostingDiscarded(t *testing.T) {
	s := newTestStages(t, newFakePostings())

	item := newItem("msg-3", "group-1", "pessoal, alguma vaga de plantão sobrando nesse fim de semana?", time.Now().UTC())
	next, err := s.Heuristic(context.Background(), item)
	require.NoError(t, err)
	require.Equal(t, models.StageHeuristicPassed, next)

	next, err = s.Classify(context.Background(), item)
	require.NoError(t, err)
	assert.Equal(t, models.StageDiscarded, next)
	assert.Equal(t, ReasonNotPosting, item.DiscardReason)
}

func TestStagesDuplicateAcrossGroups(t *testing.T) {
	postings := newFakePostings()
	s := newTestStages(t, postings)

	received := time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)
	text := "Hospital ABC, Clínica Médica, 26/01, manhã, R$ 1.700"

	first := newItem("msg-a", "group-1", text, received)
	finalFirst := runThrough(t, s, first)
	assert.Contains(t, []models.PipelineStage{models.StageImported, models.StageNeedsReview}, finalFirst)

	second := newItem("msg-b", "group-2", text, received.Add(10*time.Minute))
	final := runThrough(t, s, second)

	assert.Equal(t, models.StageDiscarded, final)
	assert.Equal(t, ReasonDuplicate, second.DiscardReason)

	require.Len(t, second.Payload.Dedup, 1)
	outcome := second.Payload.Dedup[0]
	assert.True(t, outcome.IsDuplicate)
	require.Len(t, outcome.Sources, 2)
	assert.Equal(t, "msg-a", outcome.Sources[0].MessageID)
	assert.Equal(t, "msg-b", outcome.Sources[1].MessageID)

	assert.Len(t, postings.byKey, 1)
}

func TestStagesRoundTripHighConfidenceImports(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	gen := generator.New(cfg)
	norm := normalizer.New(cfg, dictionary.Default(), fakeEntities{})
	deduper := dedup.New(cfg, newFakePostings())
	decider := decision.New(cfg)

	received := time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)
	result := &models.ExtractionResult{
		IsPosting: true,
		Hospitals: []models.FieldCandidate[models.Hospital]{
			{Value: models.Hospital{Name: "hospital abc"}, Confidence: 0.95},
		},
		DatePeriods: []models.FieldCandidate[models.DatePeriod]{
			{Value: models.DatePeriod{Date: received.AddDate(0, 0, 6), Weekday: received.AddDate(0, 0, 6).Weekday(), Period: models.PeriodMorning}, Confidence: 0.96},
		},
		Values: []models.FieldCandidate[models.ValueRule]{
			{Value: models.ValueRule{AmountCents: 170000}, Confidence: 0.95},
		},
		Contact: &models.FieldCandidate[models.Contact]{
			Value: models.Contact{Phone: "11987654321"}, Confidence: 0.95,
		},
		Specialties: []models.FieldCandidate[models.Specialty]{
			{Value: models.Specialty{Name: "clinica medica"}, Confidence: 0.95},
		},
	}

	prov := models.Provenance{MessageID: "msg-rt", GroupID: "group-1", SeenAt: received}
	generated, reason := gen.Generate(result, prov)
	require.Empty(t, reason)
	require.Len(t, generated, 1)

	np := models.NormalizedPosting{Posting: generated[0]}
	hospital, err := norm.Normalize(context.Background(), generated[0].HospitalName, models.EntityHospital)
	require.NoError(t, err)
	np.Hospital = hospital
	specialty, err := norm.Normalize(context.Background(), generated[0].SpecialtyName, models.EntitySpecialty)
	require.NoError(t, err)
	np.Specialty = specialty

	outcome, err := deduper.Deduplicate(context.Background(), &np, received)
	require.NoError(t, err)
	assert.False(t, outcome.IsDuplicate)

	d := decider.Decide(&np, received)
	assert.Equal(t, models.ActionImport, d.Action)
}
