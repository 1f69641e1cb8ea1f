package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantao-pipeline/pkg/models"
)

func TestEntityRepoSearchSimilarBreaksTiesByAliasUsage(t *testing.T) {
	pool := testPool(t)
	repo := &EntityRepo{pool: pool}
	ctx := context.Background()

	// Both names differ from the query by one symmetric token, so their
	// trigram similarity is exactly equal.
	firstID, created, err := repo.FindOrCreate(ctx, models.EntityHospital, "hospital central 1", nil)
	require.NoError(t, err)
	require.True(t, created)
	secondID, created, err := repo.FindOrCreate(ctx, models.EntityHospital, "hospital central 2", nil)
	require.NoError(t, err)
	require.True(t, created)

	// No usage anywhere: the alphabetical tiebreak is deterministic.
	match, err := repo.SearchSimilar(ctx, models.EntityHospital, "hospital central", 0.3)
	require.NoError(t, err)
	assert.Equal(t, firstID, match.EntityID)
	assert.Equal(t, models.MatchFuzzySimilar, match.Source)

	// A used alias pulls its entity ahead of the alphabetical order.
	_, err = pool.Exec(ctx,
		`INSERT INTO entity_aliases (entity_type, alias, entity_id, usage_count) VALUES ($1, $2, $3, 0)`,
		models.EntityHospital, "hc2", secondID)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.IncrementAliasUsage(ctx, models.EntityHospital, "hc2"))
	}

	match, err = repo.SearchSimilar(ctx, models.EntityHospital, "hospital central", 0.3)
	require.NoError(t, err)
	assert.Equal(t, secondID, match.EntityID)
}

func TestEntityRepoSearchSimilarHonorsThreshold(t *testing.T) {
	pool := testPool(t)
	repo := &EntityRepo{pool: pool}
	ctx := context.Background()

	_, _, err := repo.FindOrCreate(ctx, models.EntityHospital, "hospital sao lucas", nil)
	require.NoError(t, err)

	_, err = repo.SearchSimilar(ctx, models.EntityHospital, "upa vila nova", 0.45)
	require.Error(t, err)
}
