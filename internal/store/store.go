// Package store defines the catalog and backlog repository boundary. The
// pipeline only talks to these interfaces; the postgres implementation
// lives in the postgres subpackage.
package store

import (
	"context"
	"time"

	"plantao-pipeline/pkg/models"
)

// ItemRepo owns the pipeline backlog.
type ItemRepo interface {
	// InsertMessage enqueues a raw message as a pending item. Inserting
	// the same message id twice is a no-op.
	InsertMessage(ctx context.Context, msg *models.RawMessage) (*models.PipelineItem, error)

	// FetchPending returns up to limit items sitting at the given stage
	// whose backoff has elapsed, oldest first. Callers serialize access
	// to the backlog; the fetch itself takes no lock.
	FetchPending(ctx context.Context, stage models.PipelineStage, limit int) ([]*models.PipelineItem, error)

	// UpdateItem persists the item's stage, payload and error bookkeeping.
	// Safe to retry with the same item id.
	UpdateItem(ctx context.Context, item *models.PipelineItem) error

	// RequeueStuck resets items that have sat in a non-terminal stage
	// longer than threshold, once per item; a second strike errors them.
	RequeueStuck(ctx context.Context, threshold time.Duration, now time.Time) (int, error)

	// ReprocessErrors moves terminal error items back to pending.
	ReprocessErrors(ctx context.Context, ids []string) (int, error)

	// PurgeTerminal deletes terminal items older than the retention window.
	PurgeTerminal(ctx context.Context, olderThan time.Duration, now time.Time) (int, error)

	// StageCounts returns the backlog size per stage.
	StageCounts(ctx context.Context) (map[models.PipelineStage]int, error)
}

// EntityRepo owns the canonical entity catalog and its alias table.
type EntityRepo interface {
	// FindByAlias resolves a normalized alias to its canonical entity.
	// Returns a not_found error on a miss.
	FindByAlias(ctx context.Context, typ models.EntityType, alias string) (*models.EntityMatch, error)

	// SearchSimilar returns the best canonical name above the similarity
	// threshold, or a not_found error.
	SearchSimilar(ctx context.Context, typ models.EntityType, name string, minSimilarity float64) (*models.EntityMatch, error)

	// FindOrCreate atomically resolves or creates a canonical entity.
	// Concurrent calls with the same name yield the same id.
	FindOrCreate(ctx context.Context, typ models.EntityType, name string, hints map[string]string) (id string, created bool, err error)

	// IncrementAliasUsage bumps the usage counter behind alias ranking.
	IncrementAliasUsage(ctx context.Context, typ models.EntityType, alias string) error
}

// PostingRepo owns canonical postings and their provenance lists.
type PostingRepo interface {
	// FindDuplicate returns the canonical posting holding the dedup key
	// created within the window, or a not_found error.
	FindDuplicate(ctx context.Context, key string, window time.Duration, now time.Time) (*models.PostingRef, error)

	// InsertCanonical stores the posting as the canonical entry for its
	// key with its first provenance entry. Idempotent on the dedup key.
	InsertCanonical(ctx context.Context, posting *models.NormalizedPosting, key string) (string, error)

	// AppendSource links one more source message to a canonical posting,
	// preserving arrival order.
	AppendSource(ctx context.Context, canonicalID string, prov models.Provenance) error

	// ListSources returns a posting's provenance entries in arrival order.
	ListSources(ctx context.Context, canonicalID string) ([]models.Provenance, error)
}

// Store bundles the repositories behind one connection pool.
type Store interface {
	Items() ItemRepo
	Entities() EntityRepo
	Postings() PostingRepo
	Ping(ctx context.Context) error
	Close()
}
