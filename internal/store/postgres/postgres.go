// Package postgres implements the store interfaces on pgx/v5. Fuzzy entity
// search relies on the pg_trgm extension being installed.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"plantao-pipeline/internal/config"
	"plantao-pipeline/internal/pipeerr"
	"plantao-pipeline/internal/store"
	"plantao-pipeline/pkg/models"
)

// Store implements store.Store over one pgx pool.
type Store struct {
	pool     *pgxpool.Pool
	items    *ItemRepo
	entities *EntityRepo
	postings *PostingRepo
}

// New connects the pool and wires the repositories.
func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	}

	connectCtx := ctx
	if cfg.Database.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{
		pool:     pool,
		items:    &ItemRepo{pool: pool},
		entities: &EntityRepo{pool: pool},
		postings: &PostingRepo{pool: pool},
	}, nil
}

// Items returns the backlog repository.
func (s *Store) Items() store.ItemRepo { return s.items }

// Entities returns the catalog repository.
func (s *Store) Entities() store.EntityRepo { return s.entities }

// Postings returns the canonical posting repository.
func (s *Store) Postings() store.PostingRepo { return s.postings }

// Ping checks pool health.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// wrapDB maps a database failure onto the pipeline error taxonomy. Row
// misses are a normal branch; connectivity problems are retryable.
func wrapDB(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeerr.Wrap(err, models.ErrorKindNotFound, message)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return pipeerr.Wrap(err, models.ErrorKindTransientExternal, message)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection failure, 57 is operator intervention
		// (shutdown, cancel). Both clear up on retry.
		if len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "57") {
			return pipeerr.Wrap(err, models.ErrorKindTransientExternal, message)
		}
	}
	return pipeerr.Wrap(err, models.ErrorKindInternal, message)
}
