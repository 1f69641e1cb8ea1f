package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"plantao-pipeline/pkg/models"
)

// EntityRepo persists the canonical entity catalog (entities table) and
// its alias lookup table (entity_aliases).
type EntityRepo struct {
	pool *pgxpool.Pool
}

// FindByAlias resolves a normalized alias to its canonical entity.
func (r *EntityRepo) FindByAlias(ctx context.Context, typ models.EntityType, alias string) (*models.EntityMatch, error) {
	query := `
		SELECT e.id, e.name
		FROM entity_aliases a
		JOIN entities e ON e.id = a.entity_id
		WHERE a.entity_type = $1 AND a.alias = $2
	`
	var match models.EntityMatch
	err := r.pool.QueryRow(ctx, query, typ, alias).Scan(&match.EntityID, &match.Name)
	if err != nil {
		return nil, wrapDB(err, "find entity by alias")
	}

	match.Score = 1.0
	match.Source = models.MatchExactAlias
	return &match, nil
}

// SearchSimilar returns the best canonical name above the pg_trgm
// similarity threshold. Ties break toward the entity whose aliases are
// used most, then alphabetically for determinism.
func (r *EntityRepo) SearchSimilar(ctx context.Context, typ models.EntityType, name string, minSimilarity float64) (*models.EntityMatch, error) {
	query := `
		SELECT e.id, e.name, similarity(e.name, $2) AS score
		FROM entities e
		LEFT JOIN (
			SELECT entity_id, sum(usage_count) AS usage
			FROM entity_aliases
			GROUP BY entity_id
		) a ON a.entity_id = e.id
		WHERE e.type = $1
		  AND similarity(e.name, $2) >= $3
		ORDER BY score DESC, COALESCE(a.usage, 0) DESC, e.name ASC
		LIMIT 1
	`
	var match models.EntityMatch
	err := r.pool.QueryRow(ctx, query, typ, name, minSimilarity).Scan(&match.EntityID, &match.Name, &match.Score)
	if err != nil {
		return nil, wrapDB(err, "search similar entities")
	}

	match.Source = models.MatchFuzzySimilar
	return &match, nil
}

// FindOrCreate atomically resolves or creates a canonical entity. The
// single conditional insert makes concurrent calls with the same name
// converge on one id.
func (r *EntityRepo) FindOrCreate(ctx context.Context, typ models.EntityType, name string, hints map[string]string) (string, bool, error) {
	hintsJSON, err := json.Marshal(hints)
	if err != nil {
		return "", false, wrapDB(err, "marshal entity hints")
	}

	query := `
		INSERT INTO entities (id, type, name, hints, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (type, name) DO NOTHING
		RETURNING id
	`
	var id string
	err = r.pool.QueryRow(ctx, query, uuid.New().String(), typ, name, hintsJSON).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, wrapDB(err, "insert entity")
	}

	// Conflict path: the row already exists, fetch it.
	err = r.pool.QueryRow(ctx, `SELECT id FROM entities WHERE type = $1 AND name = $2`, typ, name).Scan(&id)
	if err != nil {
		return "", false, wrapDB(err, "find entity after conflict")
	}
	return id, false, nil
}

// IncrementAliasUsage bumps the usage counter driving alias ranking. An
// unknown alias is recorded implicitly by the normalizer, never here.
func (r *EntityRepo) IncrementAliasUsage(ctx context.Context, typ models.EntityType, alias string) error {
	query := `
		UPDATE entity_aliases
		SET usage_count = usage_count + 1
		WHERE entity_type = $1 AND alias = $2
	`
	if _, err := r.pool.Exec(ctx, query, typ, alias); err != nil {
		return wrapDB(err, "increment alias usage")
	}
	return nil
}
