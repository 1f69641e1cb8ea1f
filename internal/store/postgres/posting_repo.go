package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"plantao-pipeline/pkg/models"
)

// PostingRepo persists canonical postings (postings table) and their
// ordered provenance lists (posting_sources).
type PostingRepo struct {
	pool *pgxpool.Pool
}

// FindDuplicate returns the canonical posting holding the dedup key within
// the rolling window.
func (r *PostingRepo) FindDuplicate(ctx context.Context, key string, window time.Duration, now time.Time) (*models.PostingRef, error) {
	query := `
		SELECT p.id, p.dedup_key, p.created_at,
		       (SELECT count(*) FROM posting_sources s WHERE s.posting_id = p.id)
		FROM postings p
		WHERE p.dedup_key = $1
		  AND p.created_at >= $2
		ORDER BY p.created_at ASC
		LIMIT 1
	`
	var ref models.PostingRef
	err := r.pool.QueryRow(ctx, query, key, now.UTC().Add(-window)).Scan(&ref.ID, &ref.DedupKey, &ref.CreatedAt, &ref.Sources)
	if err != nil {
		return nil, wrapDB(err, "find duplicate posting")
	}
	return &ref, nil
}

// InsertCanonical stores the posting as the canonical entry for its key,
// with its provenance as the first source. Retrying with the same key
// returns the existing id.
func (r *PostingRepo) InsertCanonical(ctx context.Context, posting *models.NormalizedPosting, key string) (string, error) {
	payloadJSON, err := json.Marshal(posting)
	if err != nil {
		return "", wrapDB(err, "marshal posting")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", wrapDB(err, "begin insert posting")
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO postings (id, dedup_key, payload, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (dedup_key) DO NOTHING
		RETURNING id
	`
	id := posting.Posting.ID
	err = tx.QueryRow(ctx, insert, id, key, payloadJSON).Scan(&id)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", wrapDB(err, "insert canonical posting")
		}
		// Key already present: an earlier attempt or a concurrent worker
		// created it first.
		if err := tx.QueryRow(ctx, `SELECT id FROM postings WHERE dedup_key = $1`, key).Scan(&id); err != nil {
			return "", wrapDB(err, "find posting after conflict")
		}
	}

	source := `
		INSERT INTO posting_sources (posting_id, message_id, group_id, seen_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (posting_id, message_id) DO NOTHING
	`
	prov := posting.Posting.Provenance
	if _, err := tx.Exec(ctx, source, id, prov.MessageID, prov.GroupID, prov.SeenAt.UTC()); err != nil {
		return "", wrapDB(err, "insert posting source")
	}

	if err := tx.Commit(ctx); err != nil {
		return "", wrapDB(err, "commit insert posting")
	}
	return id, nil
}

// AppendSource links one more source message to a canonical posting.
// Arrival order is preserved by the serial position column; re-appending
// the same message is a no-op.
func (r *PostingRepo) AppendSource(ctx context.Context, canonicalID string, prov models.Provenance) error {
	query := `
		INSERT INTO posting_sources (posting_id, message_id, group_id, seen_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (posting_id, message_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, canonicalID, prov.MessageID, prov.GroupID, prov.SeenAt.UTC()); err != nil {
		return wrapDB(err, "append posting source")
	}
	return nil
}

// ListSources returns a posting's provenance entries in arrival order.
func (r *PostingRepo) ListSources(ctx context.Context, canonicalID string) ([]models.Provenance, error) {
	query := `
		SELECT message_id, group_id, seen_at
		FROM posting_sources
		WHERE posting_id = $1
		ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, query, canonicalID)
	if err != nil {
		return nil, wrapDB(err, "list posting sources")
	}
	defer rows.Close()

	sources, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Provenance, error) {
		var p models.Provenance
		err := row.Scan(&p.MessageID, &p.GroupID, &p.SeenAt)
		return p, err
	})
	if err != nil {
		return nil, wrapDB(err, "scan posting sources")
	}
	return sources, nil
}
