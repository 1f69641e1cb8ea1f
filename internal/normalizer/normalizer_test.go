package normalizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantao-pipeline/internal/config"
	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/internal/enrich"
	"plantao-pipeline/internal/pipeerr"
	"plantao-pipeline/pkg/models"
)

// fakeEntityRepo is an in-memory stand-in for the catalog.
type fakeEntityRepo struct {
	aliases    map[string]*models.EntityMatch
	similar    map[string]*models.EntityMatch
	usageCount map[string]int
	created    []string
	failWith   error
}

func newFakeEntityRepo() *fakeEntityRepo {
	return &fakeEntityRepo{
		aliases:    make(map[string]*models.EntityMatch),
		similar:    make(map[string]*models.EntityMatch),
		usageCount: make(map[string]int),
	}
}

func (f *fakeEntityRepo) FindByAlias(_ context.Context, typ models.EntityType, alias string) (*models.EntityMatch, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if m, ok := f.aliases[string(typ)+"|"+alias]; ok {
		return m, nil
	}
	return nil, pipeerr.NotFound("alias miss")
}

func (f *fakeEntityRepo) SearchSimilar(_ context.Context, typ models.EntityType, name string, _ float64) (*models.EntityMatch, error) {
	if m, ok := f.similar[string(typ)+"|"+name]; ok {
		return m, nil
	}
	return nil, pipeerr.NotFound("no similar name")
}

func (f *fakeEntityRepo) FindOrCreate(_ context.Context, typ models.EntityType, name string, _ map[string]string) (string, bool, error) {
	f.created = append(f.created, string(typ)+"|"+name)
	return "ent-" + name, true, nil
}

func (f *fakeEntityRepo) IncrementAliasUsage(_ context.Context, typ models.EntityType, alias string) error {
	f.usageCount[string(typ)+"|"+alias]++
	return nil
}

// fakeRegistry is a scripted enrichment client.
type fakeRegistry struct {
	name      string
	candidate *enrich.Candidate
	err       error
	calls     int
}

func (f *fakeRegistry) Lookup(_ context.Context, _, _, _ string) (*enrich.Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidate, nil
}

func (f *fakeRegistry) Name() string { return f.name }

func newTestNormalizer(t *testing.T, repo *fakeEntityRepo, clients ...enrich.Client) *Normalizer {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	return New(cfg, dictionary.Default(), repo, clients...)
}

func TestNormalizeExactAlias(t *testing.T) {
	repo := newFakeEntityRepo()
	repo.aliases["hospital|hospital abc"] = &models.EntityMatch{
		EntityID: "ent-1", Name: "hospital abc", Score: 1.0, Source: models.MatchExactAlias,
	}
	n := newTestNormalizer(t, repo)

	match, err := n.Normalize(context.Background(), "Hospital ABC", models.EntityHospital)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "ent-1", match.EntityID)
	assert.Equal(t, models.MatchExactAlias, match.Source)
	assert.Equal(t, 1, repo.usageCount["hospital|hospital abc"])
}

func TestNormalizeFuzzyFallback(t *testing.T) {
	repo := newFakeEntityRepo()
	repo.similar["hospital|hospital sao luis"] = &models.EntityMatch{
		EntityID: "ent-2", Name: "hospital sao luiz", Score: 0.82, Source: models.MatchFuzzySimilar,
	}
	n := newTestNormalizer(t, repo)

	match, err := n.Normalize(context.Background(), "Hospital São Luis", models.EntityHospital)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, models.MatchFuzzySimilar, match.Source)
	assert.Equal(t, 1, repo.usageCount["hospital|hospital sao luiz"])
}

func TestNormalizeEnrichmentCreates(t *testing.T) {
	repo := newFakeEntityRepo()
	registry := &fakeRegistry{
		name:      "directory",
		candidate: &enrich.Candidate{Name: "Hospital Municipal Vila Nova", Score: 0.9},
	}
	n := newTestNormalizer(t, repo, registry)

	match, err := n.Normalize(context.Background(), "Hospital Vila Nova", models.EntityHospital)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, models.MatchCreated, match.Source)
	assert.Equal(t, "ent-hospital municipal vila nova", match.EntityID)
	assert.Equal(t, 1, registry.calls)
}

func TestNormalizeEnrichmentChainFallsThrough(t *testing.T) {
	repo := newFakeEntityRepo()
	first := &fakeRegistry{name: "directory", err: pipeerr.NotFound("unknown facility")}
	second := &fakeRegistry{name: "places", candidate: &enrich.Candidate{Name: "Hospital Vila Nova", Score: 0.85}}
	n := newTestNormalizer(t, repo, first, second)

	match, err := n.Normalize(context.Background(), "Hospital Vila Nova", models.EntityHospital)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestNormalizePlausibilityGateBlocksEnrichment(t *testing.T) {
	repo := newFakeEntityRepo()
	registry := &fakeRegistry{name: "directory", candidate: &enrich.Candidate{Name: "whatever", Score: 0.9}}
	n := newTestNormalizer(t, repo, registry)

	for _, raw := range []string{"farmacia", "11 98765-4321", "clinica medica", "ab"} {
		match, err := n.Normalize(context.Background(), raw, models.EntityHospital)
		require.NoError(t, err, "raw %q", raw)
		assert.Nil(t, match, "raw %q", raw)
	}
	assert.Zero(t, registry.calls)
	assert.Empty(t, repo.created)
}

func TestNormalizeLowScoreCandidateNotCreated(t *testing.T) {
	repo := newFakeEntityRepo()
	registry := &fakeRegistry{name: "places", candidate: &enrich.Candidate{Name: "Hospital Duvidoso", Score: 0.4}}
	n := newTestNormalizer(t, repo, registry)

	match, err := n.Normalize(context.Background(), "Hospital Duvidoso", models.EntityHospital)
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Empty(t, repo.created)
}

func TestNormalizeTransientErrorPropagates(t *testing.T) {
	repo := newFakeEntityRepo()
	repo.failWith = pipeerr.Transient("catalog timeout")
	n := newTestNormalizer(t, repo)

	_, err := n.Normalize(context.Background(), "Hospital ABC", models.EntityHospital)
	require.Error(t, err)
	assert.True(t, pipeerr.IsTransient(err))
}

func TestNormalizeNonHospitalSkipsEnrichment(t *testing.T) {
	repo := newFakeEntityRepo()
	registry := &fakeRegistry{name: "directory", candidate: &enrich.Candidate{Name: "x", Score: 0.9}}
	n := newTestNormalizer(t, repo, registry)

	match, err := n.Normalize(context.Background(), "cardiologia", models.EntitySpecialty)
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Zero(t, registry.calls)
}

func TestNormalizeEmptyInput(t *testing.T) {
	n := newTestNormalizer(t, newFakeEntityRepo())
	match, err := n.Normalize(context.Background(), "   ", models.EntityHospital)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestPlausibilityValidator(t *testing.T) {
	v := NewPlausibilityValidator(dictionary.Default())

	assert.True(t, v.IsPlausibleHospital("hospital sao luiz abc"))
	assert.True(t, v.IsPlausibleHospital("santa casa de misericordia"))

	assert.False(t, v.IsPlausibleHospital("farmacia"))
	assert.False(t, v.IsPlausibleHospital("clinica medica"))
	assert.False(t, v.IsPlausibleHospital("11987654321"))
	assert.False(t, v.IsPlausibleHospital("ab"))
}
