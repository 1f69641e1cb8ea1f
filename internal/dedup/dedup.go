// Package dedup collapses structurally identical postings arriving from
// different groups within a rolling window onto one canonical entry.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"plantao-pipeline/internal/config"
	"plantao-pipeline/internal/logging"
	"plantao-pipeline/internal/pipeerr"
	"plantao-pipeline/internal/store"
	"plantao-pipeline/pkg/models"
)

// Skip reasons for postings that cannot be deduplicated reliably.
const (
	SkipNoHospitalID  = "no_hospital_id"
	SkipNoSpecialtyID = "no_specialty_id"
)

// Deduplicator checks normalized postings against the canonical posting
// window.
type Deduplicator struct {
	postings store.PostingRepo
	window   time.Duration
	logger   logging.Logger
}

// New builds a deduplicator with the configured rolling window.
func New(cfg *config.Config, postings store.PostingRepo) *Deduplicator {
	window := cfg.Dedup.Window
	if window <= 0 {
		window = 48 * time.Hour
	}
	return &Deduplicator{
		postings: postings,
		window:   window,
		logger:   logging.GetGlobalLogger(),
	}
}

// Key computes the dedup key for a normalized posting: a hash over the
// canonical hospital, date, period and specialty. Returns empty when a
// required identifier is missing.
func Key(p *models.NormalizedPosting) string {
	if p.Hospital == nil || p.Specialty == nil {
		return ""
	}
	periodID := ""
	if p.Period != nil {
		periodID = p.Period.EntityID
	}
	payload := fmt.Sprintf("%s|%s|%s|%s",
		p.Hospital.EntityID,
		p.Posting.Date.Format("2006-01-02"),
		periodID,
		p.Specialty.EntityID,
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Deduplicate resolves one posting against the window. The first posting
// for a key becomes canonical; later arrivals append their provenance to
// it, ordered by arrival. Postings missing a required key field pass
// through with a skipped flag for the decision engine to judge.
func (d *Deduplicator) Deduplicate(ctx context.Context, posting *models.NormalizedPosting, now time.Time) (*models.DedupOutcome, error) {
	if posting.Hospital == nil {
		return &models.DedupOutcome{Skipped: true, SkipReason: SkipNoHospitalID}, nil
	}
	if posting.Specialty == nil {
		return &models.DedupOutcome{Skipped: true, SkipReason: SkipNoSpecialtyID}, nil
	}

	key := Key(posting)

	existing, err := d.postings.FindDuplicate(ctx, key, d.window, now)
	if err != nil && !pipeerr.IsNotFound(err) {
		return nil, err
	}

	if existing != nil {
		if err := d.postings.AppendSource(ctx, existing.ID, posting.Posting.Provenance); err != nil {
			return nil, err
		}
		sources, err := d.postings.ListSources(ctx, existing.ID)
		if err != nil {
			return nil, err
		}

		d.logger.Debug("Posting is a duplicate", map[string]interface{}{
			"key":       key,
			"canonical": existing.ID,
			"sources":   len(sources),
		})

		return &models.DedupOutcome{
			IsDuplicate:        true,
			CanonicalPostingID: existing.ID,
			Key:                key,
			Sources:            sources,
		}, nil
	}

	id, err := d.postings.InsertCanonical(ctx, posting, key)
	if err != nil {
		return nil, err
	}

	return &models.DedupOutcome{
		IsDuplicate:        false,
		CanonicalPostingID: id,
		Key:                key,
		Sources:            []models.Provenance{posting.Posting.Provenance},
	}, nil
}
