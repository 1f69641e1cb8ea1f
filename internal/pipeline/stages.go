package pipeline

import (
	"context"

	"plantao-pipeline/internal/decision"
	"plantao-pipeline/internal/dedup"
	"plantao-pipeline/internal/extraction"
	"plantao-pipeline/internal/generator"
	"plantao-pipeline/internal/heuristic"
	"plantao-pipeline/internal/logging"
	"plantao-pipeline/internal/normalizer"
	"plantao-pipeline/internal/store"
	"plantao-pipeline/pkg/models"
)

// Discard reasons produced by the stage processors themselves.
const (
	ReasonNotPosting = "nao_e_divulgacao"
	ReasonDuplicate  = "duplicado"
	ReasonLowScore   = "score_baixo"
)

// Stages bundles the stage processors. Each processor takes an item,
// writes its output into the payload and returns the next stage. They
// never retry and never touch the store's item table; the orchestrator
// owns persistence and retry policy.
type Stages struct {
	filter     *heuristic.Filter
	extractor  extraction.Extractor
	generator  *generator.Generator
	normalizer *normalizer.Normalizer
	deduper    *dedup.Deduplicator
	decider    *decision.Engine
	entities   store.EntityRepo
	logger     logging.Logger
}

// NewStages wires the stage processors.
func NewStages(
	filter *heuristic.Filter,
	extractor extraction.Extractor,
	gen *generator.Generator,
	norm *normalizer.Normalizer,
	deduper *dedup.Deduplicator,
	decider *decision.Engine,
	entities store.EntityRepo,
) *Stages {
	return &Stages{
		filter:     filter,
		extractor:  extractor,
		generator:  gen,
		normalizer: norm,
		deduper:    deduper,
		decider:    decider,
		entities:   entities,
		logger:     logging.GetGlobalLogger(),
	}
}

// Heuristic scores the raw text. Rejections are terminal and free to
// recompute, so no attempt bookkeeping applies.
func (s *Stages) Heuristic(_ context.Context, item *models.PipelineItem) (models.PipelineStage, error) {
	result := s.filter.Score(item.Message.Text)
	item.Payload.Heuristic = &result

	if !result.Passed {
		item.DiscardReason = string(result.Rejection)
		return models.StageHeuristicRejected, nil
	}
	return models.StageHeuristicPassed, nil
}

// Classify runs the extraction capability. The message arrival time is the
// reference date for relative-date resolution.
func (s *Stages) Classify(ctx context.Context, item *models.PipelineItem) (models.PipelineStage, error) {
	result, err := s.extractor.Extract(ctx, &item.Message, item.Message.ReceivedAt)
	if err != nil {
		return item.Stage, err
	}
	item.Payload.Extraction = result

	if !result.IsPosting {
		item.DiscardReason = ReasonNotPosting
		return models.StageDiscarded, nil
	}
	return models.StageClassified, nil
}

// Generate expands the extraction into atomic postings.
func (s *Stages) Generate(_ context.Context, item *models.PipelineItem) (models.PipelineStage, error) {
	prov := models.Provenance{
		MessageID: item.Message.ID,
		GroupID:   item.Message.GroupID,
		SeenAt:    item.Message.ReceivedAt,
	}

	postings, discardReason := s.generator.Generate(item.Payload.Extraction, prov)
	if discardReason != "" {
		item.DiscardReason = discardReason
		return models.StageDiscarded, nil
	}

	item.Payload.Postings = postings
	return models.StageExtracted, nil
}

// Normalize resolves canonical entities for every posting. A posting whose
// hospital or specialty stays unresolved keeps nil matches; the decision
// engine judges that later.
func (s *Stages) Normalize(ctx context.Context, item *models.PipelineItem) (models.PipelineStage, error) {
	normalized := make([]models.NormalizedPosting, 0, len(item.Payload.Postings))

	for _, posting := range item.Payload.Postings {
		np := models.NormalizedPosting{Posting: posting}

		hospital, err := s.normalizer.Normalize(ctx, posting.HospitalName, models.EntityHospital)
		if err != nil {
			return item.Stage, err
		}
		np.Hospital = hospital

		if posting.SpecialtyName != "" {
			specialty, err := s.normalizer.Normalize(ctx, posting.SpecialtyName, models.EntitySpecialty)
			if err != nil {
				return item.Stage, err
			}
			np.Specialty = specialty
		}

		if posting.Period != "" {
			id, _, err := s.entities.FindOrCreate(ctx, models.EntityPeriod, string(posting.Period), nil)
			if err != nil {
				return item.Stage, err
			}
			np.Period = &models.EntityMatch{
				EntityID: id,
				Name:     string(posting.Period),
				Score:    1.0,
				Source:   models.MatchExactAlias,
			}
		}

		normalized = append(normalized, np)
	}

	item.Payload.Normalized = normalized
	return models.StageNormalized, nil
}

// Dedup checks every normalized posting against the rolling window.
func (s *Stages) Dedup(ctx context.Context, item *models.PipelineItem) (models.PipelineStage, error) {
	outcomes := make([]models.DedupOutcome, 0, len(item.Payload.Normalized))
	for i := range item.Payload.Normalized {
		outcome, err := s.deduper.Deduplicate(ctx, &item.Payload.Normalized[i], item.Message.ReceivedAt)
		if err != nil {
			return item.Stage, err
		}
		outcomes = append(outcomes, *outcome)
	}

	item.Payload.Dedup = outcomes
	return models.StageDedupChecked, nil
}

// Decide evaluates every non-duplicate posting and aggregates the posting
// decisions into the item's terminal stage: one import wins, otherwise one
// review, otherwise the item is discarded.
func (s *Stages) Decide(_ context.Context, item *models.PipelineItem) (models.PipelineStage, error) {
	decisions := make([]models.ImportDecision, 0, len(item.Payload.Normalized))

	anyImport := false
	anyReview := false
	allDuplicates := len(item.Payload.Normalized) > 0

	for i := range item.Payload.Normalized {
		if i < len(item.Payload.Dedup) && item.Payload.Dedup[i].IsDuplicate {
			// Already linked as provenance on the canonical posting;
			// never imported separately.
			continue
		}
		allDuplicates = false

		d := s.decider.Decide(&item.Payload.Normalized[i], item.Message.ReceivedAt)
		decisions = append(decisions, d)

		switch d.Action {
		case models.ActionImport:
			anyImport = true
		case models.ActionReview:
			anyReview = true
		}
	}

	item.Payload.Decisions = decisions

	switch {
	case anyImport:
		return models.StageImported, nil
	case anyReview:
		return models.StageNeedsReview, nil
	case allDuplicates:
		item.DiscardReason = ReasonDuplicate
		return models.StageDiscarded, nil
	default:
		item.DiscardReason = ReasonLowScore
		return models.StageDiscarded, nil
	}
}
