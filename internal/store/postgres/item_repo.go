package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"plantao-pipeline/pkg/models"
)

// ItemRepo persists the pipeline backlog in the pipeline_items table.
type ItemRepo struct {
	pool *pgxpool.Pool
}

const itemColumns = `
  id,
  message,
  stage,
  attempts,
  last_error,
  discard_reason,
  payload,
  stage_times,
  requeued,
  next_attempt_at,
  created_at,
  updated_at
`

// InsertMessage enqueues a raw message as a pending item. The message id is
// the item id, so re-delivery of the same message is a no-op.
func (r *ItemRepo) InsertMessage(ctx context.Context, msg *models.RawMessage) (*models.PipelineItem, error) {
	now := time.Now().UTC()
	item := &models.PipelineItem{
		ID:            msg.ID,
		Message:       *msg,
		Stage:         models.StagePending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	messageJSON, err := json.Marshal(item.Message)
	if err != nil {
		return nil, wrapDB(err, "marshal message")
	}

	query := `
		INSERT INTO pipeline_items (id, message, stage, attempts, payload, stage_times, requeued, next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, 0, '{}', '{}', false, $4, $5, $5)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query, item.ID, messageJSON, item.Stage, item.NextAttemptAt, now)
	if err != nil {
		return nil, wrapDB(err, "insert pipeline item")
	}
	if tag.RowsAffected() == 0 {
		// Re-delivery: report the stored item, whatever stage it reached.
		return r.getItem(ctx, item.ID)
	}
	return item, nil
}

func (r *ItemRepo) getItem(ctx context.Context, id string) (*models.PipelineItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM pipeline_items
		WHERE id = $1
	`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, wrapDB(err, "get pipeline item")
	}
	defer rows.Close()

	item, err := pgx.CollectOneRow(rows, rowToItem)
	if err != nil {
		return nil, wrapDB(err, "scan pipeline item")
	}
	return item, nil
}

// FetchPending returns up to limit items at the given stage whose backoff
// has elapsed, oldest first. Mutual exclusion between workers comes from
// the redis cycle lock, not from row locks here: the pool runs this in
// autocommit, so any row lock would be gone before processing starts.
func (r *ItemRepo) FetchPending(ctx context.Context, stage models.PipelineStage, limit int) ([]*models.PipelineItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM pipeline_items
		WHERE stage = $1
		  AND next_attempt_at <= now()
		ORDER BY next_attempt_at ASC, created_at ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, stage, limit)
	if err != nil {
		return nil, wrapDB(err, "fetch pending items")
	}
	defer rows.Close()

	items, err := pgx.CollectRows(rows, rowToItem)
	if err != nil {
		return nil, wrapDB(err, "scan pending items")
	}
	return items, nil
}

// UpdateItem persists the item's current stage and bookkeeping. Retrying
// with the same item value is harmless.
func (r *ItemRepo) UpdateItem(ctx context.Context, item *models.PipelineItem) error {
	payloadJSON, err := json.Marshal(item.Payload)
	if err != nil {
		return wrapDB(err, "marshal item payload")
	}
	stageTimesJSON, err := json.Marshal(item.StageTimes)
	if err != nil {
		return wrapDB(err, "marshal stage times")
	}
	var lastErrorJSON []byte
	if item.LastError != nil {
		if lastErrorJSON, err = json.Marshal(item.LastError); err != nil {
			return wrapDB(err, "marshal last error")
		}
	}

	query := `
		UPDATE pipeline_items
		SET stage = $2,
		    attempts = $3,
		    last_error = $4,
		    discard_reason = $5,
		    payload = $6,
		    stage_times = $7,
		    next_attempt_at = $8,
		    updated_at = $9
		WHERE id = $1
	`
	_, err = r.pool.Exec(ctx, query,
		item.ID, item.Stage, item.Attempts, lastErrorJSON, nullIfEmpty(item.DiscardReason),
		payloadJSON, stageTimesJSON, item.NextAttemptAt.UTC(), item.UpdatedAt.UTC())
	if err != nil {
		return wrapDB(err, "update pipeline item")
	}
	return nil
}

// RequeueStuck gives items parked in a non-terminal stage one more chance:
// the first strike re-opens them, the second moves them to error.
func (r *ItemRepo) RequeueStuck(ctx context.Context, threshold time.Duration, now time.Time) (int, error) {
	cutoff := now.UTC().Add(-threshold)

	requeue := `
		UPDATE pipeline_items
		SET next_attempt_at = $1,
		    requeued = true,
		    updated_at = $1
		WHERE stage NOT IN ('heuristic_rejected', 'imported', 'needs_review', 'discarded', 'error')
		  AND updated_at < $2
		  AND requeued = false
	`
	tag, err := r.pool.Exec(ctx, requeue, now.UTC(), cutoff)
	if err != nil {
		return 0, wrapDB(err, "requeue stuck items")
	}

	escalate := `
		UPDATE pipeline_items
		SET stage = 'error',
		    last_error = '{"kind":"internal","message":"stuck after requeue"}',
		    updated_at = $1
		WHERE stage NOT IN ('heuristic_rejected', 'imported', 'needs_review', 'discarded', 'error')
		  AND updated_at < $2
		  AND requeued = true
	`
	if _, err := r.pool.Exec(ctx, escalate, now.UTC(), cutoff); err != nil {
		return 0, wrapDB(err, "escalate stuck items")
	}

	return int(tag.RowsAffected()), nil
}

// ReprocessErrors moves terminal error items back to pending. An empty id
// list reprocesses every errored item.
func (r *ItemRepo) ReprocessErrors(ctx context.Context, ids []string) (int, error) {
	// A nil slice would reach postgres as a NULL array and make the
	// cardinality guard three-valued, matching nothing.
	if ids == nil {
		ids = []string{}
	}

	query := `
		UPDATE pipeline_items
		SET stage = 'pending',
		    attempts = 0,
		    last_error = NULL,
		    requeued = false,
		    next_attempt_at = now(),
		    updated_at = now()
		WHERE stage = 'error'
		  AND (cardinality($1::text[]) = 0 OR id = ANY($1))
	`
	tag, err := r.pool.Exec(ctx, query, ids)
	if err != nil {
		return 0, wrapDB(err, "reprocess error items")
	}
	return int(tag.RowsAffected()), nil
}

// PurgeTerminal deletes terminal items older than the retention window.
func (r *ItemRepo) PurgeTerminal(ctx context.Context, olderThan time.Duration, now time.Time) (int, error) {
	query := `
		DELETE FROM pipeline_items
		WHERE stage IN ('heuristic_rejected', 'imported', 'needs_review', 'discarded', 'error')
		  AND updated_at < $1
	`
	tag, err := r.pool.Exec(ctx, query, now.UTC().Add(-olderThan))
	if err != nil {
		return 0, wrapDB(err, "purge terminal items")
	}
	return int(tag.RowsAffected()), nil
}

// StageCounts returns the backlog size per stage.
func (r *ItemRepo) StageCounts(ctx context.Context) (map[models.PipelineStage]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT stage, count(*) FROM pipeline_items GROUP BY stage`)
	if err != nil {
		return nil, wrapDB(err, "count items per stage")
	}
	defer rows.Close()

	counts := make(map[models.PipelineStage]int)
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, wrapDB(err, "scan stage count")
		}
		counts[models.PipelineStage(stage)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDB(err, "iterate stage counts")
	}
	return counts, nil
}

func rowToItem(row pgx.CollectableRow) (*models.PipelineItem, error) {
	var (
		item           models.PipelineItem
		messageJSON    []byte
		lastErrorJSON  []byte
		discardReason  *string
		payloadJSON    []byte
		stageTimesJSON []byte
		requeued       bool
	)

	if err := row.Scan(
		&item.ID, &messageJSON, &item.Stage, &item.Attempts, &lastErrorJSON,
		&discardReason, &payloadJSON, &stageTimesJSON, &requeued,
		&item.NextAttemptAt, &item.CreatedAt, &item.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(messageJSON, &item.Message); err != nil {
		return nil, err
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &item.Payload); err != nil {
			return nil, err
		}
	}
	if len(stageTimesJSON) > 0 {
		if err := json.Unmarshal(stageTimesJSON, &item.StageTimes); err != nil {
			return nil, err
		}
	}
	if len(lastErrorJSON) > 0 {
		item.LastError = &models.ItemError{}
		if err := json.Unmarshal(lastErrorJSON, item.LastError); err != nil {
			return nil, err
		}
	}
	if discardReason != nil {
		item.DiscardReason = *discardReason
	}

	return &item, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
