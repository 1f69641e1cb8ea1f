// Package decision turns a normalized, dedup-checked posting into an
// import action. Pure functions over (structural validity, confidence);
// thresholds come from configuration.
package decision

import (
	"fmt"
	"time"

	"plantao-pipeline/internal/config"
	"plantao-pipeline/pkg/models"
	"plantao-pipeline/pkg/utils"
)

// Blocking validation errors and non-blocking warnings.
const (
	ErrNoHospitalID  = "hospital_nao_resolvido"
	ErrNoSpecialtyID = "especialidade_nao_resolvida"
	ErrNoDate        = "data_ausente"
	ErrPastDate      = "data_passada"

	WarnFarFuture         = "data_muito_distante"
	WarnValueUnresolved   = "valor_nao_resolvido"
	WarnNoCanonicalPeriod = "periodo_nao_canonico"
)

// Engine evaluates import decisions.
type Engine struct {
	importThreshold float64
	reviewThreshold float64
	farFuture       time.Duration
}

// New builds an engine with the configured thresholds.
func New(cfg *config.Config) *Engine {
	farFutureDays := cfg.Decision.FarFutureDays
	if farFutureDays <= 0 {
		farFutureDays = 90
	}
	return &Engine{
		importThreshold: cfg.Decision.ImportThreshold,
		reviewThreshold: cfg.Decision.ReviewThreshold,
		farFuture:       time.Duration(farFutureDays) * 24 * time.Hour,
	}
}

// Decide evaluates one posting. Structural failures force a discard
// regardless of confidence; warnings never block.
func (e *Engine) Decide(posting *models.NormalizedPosting, now time.Time) models.ImportDecision {
	decision := models.ImportDecision{
		PostingID:  posting.Posting.ID,
		Confidence: posting.Posting.Overall,
	}

	today := utils.DateOnly(now)
	date := utils.DateOnly(posting.Posting.Date)

	if posting.Hospital == nil {
		decision.Errors = append(decision.Errors, ErrNoHospitalID)
	}
	if posting.Specialty == nil {
		decision.Errors = append(decision.Errors, ErrNoSpecialtyID)
	}
	if posting.Posting.Date.IsZero() {
		decision.Errors = append(decision.Errors, ErrNoDate)
	} else if date.Before(today) {
		decision.Errors = append(decision.Errors, ErrPastDate)
	}

	if len(decision.Errors) > 0 {
		decision.Action = models.ActionDiscard
		return decision
	}

	if date.After(today.Add(e.farFuture)) {
		decision.Warnings = append(decision.Warnings, fmt.Sprintf("%s: %s", WarnFarFuture, date.Format("2006-01-02")))
	}
	if !posting.Posting.Value.Resolved {
		decision.Warnings = append(decision.Warnings, WarnValueUnresolved)
	}
	if posting.Period == nil {
		decision.Warnings = append(decision.Warnings, WarnNoCanonicalPeriod)
	}

	switch {
	case decision.Confidence >= e.importThreshold:
		decision.Action = models.ActionImport
	case decision.Confidence >= e.reviewThreshold:
		decision.Action = models.ActionReview
	default:
		decision.Action = models.ActionDiscard
	}

	return decision
}
