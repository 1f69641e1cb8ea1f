// Package normalizer resolves raw entity strings to canonical catalog
// records: exact alias, then trigram similarity, then (for hospitals only)
// an optional enrichment path that may create a new canonical record.
package normalizer

import (
	"context"

	"plantao-pipeline/internal/config"
	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/internal/enrich"
	"plantao-pipeline/internal/logging"
	"plantao-pipeline/internal/pipeerr"
	"plantao-pipeline/internal/store"
	"plantao-pipeline/pkg/models"
	"plantao-pipeline/pkg/utils"
)

// Normalizer maps raw strings to canonical entities. A nil match with a
// nil error means "no resolution", which is a normal branch.
type Normalizer struct {
	entities         store.EntityRepo
	validator        *PlausibilityValidator
	clients          []enrich.Client
	fuzzyThreshold   float64
	createdThreshold float64
	logger           logging.Logger
}

// New builds a normalizer. clients is the ordered enrichment chain for
// hospital entities; nil entries are skipped so either registry can be
// absent.
func New(cfg *config.Config, dict *dictionary.Dictionary, entities store.EntityRepo, clients ...enrich.Client) *Normalizer {
	active := make([]enrich.Client, 0, len(clients))
	for _, c := range clients {
		if c != nil {
			active = append(active, c)
		}
	}
	return &Normalizer{
		entities:         entities,
		validator:        NewPlausibilityValidator(dict),
		clients:          active,
		fuzzyThreshold:   cfg.Normalizer.FuzzyThreshold,
		createdThreshold: cfg.Normalizer.CreatedThreshold,
		logger:           logging.GetGlobalLogger(),
	}
}

// Normalize resolves one raw entity string. Transient failures from the
// catalog or an enrichment registry propagate so the orchestrator retries
// the stage; lookup misses do not.
func (n *Normalizer) Normalize(ctx context.Context, raw string, typ models.EntityType) (*models.EntityMatch, error) {
	name := utils.NormalizeText(raw)
	if name == "" {
		return nil, nil
	}

	match, err := n.entities.FindByAlias(ctx, typ, name)
	if err == nil {
		if usageErr := n.entities.IncrementAliasUsage(ctx, typ, name); usageErr != nil {
			n.logger.Warn("Alias usage increment failed", map[string]interface{}{
				"alias": name,
				"error": usageErr.Error(),
			})
		}
		return match, nil
	}
	if !pipeerr.IsNotFound(err) {
		return nil, err
	}

	match, err = n.entities.SearchSimilar(ctx, typ, name, n.fuzzyThreshold)
	if err == nil {
		if usageErr := n.entities.IncrementAliasUsage(ctx, typ, match.Name); usageErr != nil {
			n.logger.Warn("Alias usage increment failed", map[string]interface{}{
				"alias": match.Name,
				"error": usageErr.Error(),
			})
		}
		return match, nil
	}
	if !pipeerr.IsNotFound(err) {
		return nil, err
	}

	if typ == models.EntityHospital {
		return n.enrichHospital(ctx, name)
	}

	return nil, nil
}

// enrichHospital walks the registry chain and creates a canonical record
// for the first validated candidate. The plausibility gate runs before any
// external call.
func (n *Normalizer) enrichHospital(ctx context.Context, name string) (*models.EntityMatch, error) {
	if len(n.clients) == 0 {
		return nil, nil
	}
	if !n.validator.IsPlausibleHospital(name) {
		n.logger.Debug("Skipping enrichment for implausible hospital name", map[string]interface{}{
			"name": name,
		})
		return nil, nil
	}

	for _, client := range n.clients {
		candidate, err := client.Lookup(ctx, name, "", "")
		if err != nil {
			if pipeerr.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if candidate.Score < n.createdThreshold {
			continue
		}

		canonical := utils.NormalizeText(candidate.Name)
		if canonical == "" {
			canonical = name
		}

		id, created, err := n.entities.FindOrCreate(ctx, models.EntityHospital, canonical, candidate.Hints())
		if err != nil {
			return nil, err
		}

		source := models.MatchCreated
		if !created {
			// The registry name already existed in the catalog; this is
			// an ordinary match reached through enrichment.
			source = models.MatchFuzzySimilar
		}

		n.logger.Info("Hospital resolved through enrichment", map[string]interface{}{
			"name":     name,
			"registry": client.Name(),
			"entity":   canonical,
			"created":  created,
		})

		return &models.EntityMatch{
			EntityID: id,
			Name:     canonical,
			Score:    candidate.Score,
			Source:   source,
		}, nil
	}

	return nil, nil
}
