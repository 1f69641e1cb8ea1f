// Package generator expands one extraction result into atomic postings,
// one per hospital and date/period pair, with the monetary value resolved
// for each pair's weekday.
package generator

import (
	"plantao-pipeline/internal/config"
	"plantao-pipeline/internal/logging"
	"plantao-pipeline/pkg/models"
	"plantao-pipeline/pkg/utils"
)

// Discard reasons for items that cannot produce any posting.
const (
	ReasonNoHospital = "no_hospital"
	ReasonNoDate     = "no_date"
)

// Warning annotations attached to generated postings.
const (
	WarnValueUnresolved = "valor_nao_resolvido"
)

// Weights is the per-field weighting of the overall confidence.
type Weights struct {
	Hospital   float64
	DatePeriod float64
	Value      float64
	Contact    float64
	Specialty  float64
}

// Generator builds atomic postings from extraction results.
type Generator struct {
	weights         Weights
	unresolvedValue float64
	logger          logging.Logger
}

// New creates a generator with the configured confidence weighting.
func New(cfg *config.Config) *Generator {
	w := Weights{
		Hospital:   cfg.Decision.Weights.Hospital,
		DatePeriod: cfg.Decision.Weights.DatePeriod,
		Value:      cfg.Decision.Weights.Value,
		Contact:    cfg.Decision.Weights.Contact,
		Specialty:  cfg.Decision.Weights.Specialty,
	}
	return &Generator{
		weights:         w,
		unresolvedValue: cfg.Decision.UnresolvedValueConfidence,
		logger:          logging.GetGlobalLogger(),
	}
}

// Generate returns the cartesian product of hospitals and date/period
// candidates as atomic postings. When no posting can be generated the
// returned discard reason names the missing field family.
func (g *Generator) Generate(result *models.ExtractionResult, prov models.Provenance) ([]models.AtomicPosting, string) {
	if len(result.Hospitals) == 0 {
		return nil, ReasonNoHospital
	}
	if len(result.DatePeriods) == 0 {
		return nil, ReasonNoDate
	}

	specialty, specialtyConf := bestSpecialty(result.Specialties)

	var contact models.Contact
	contactConf := 0.0
	if result.Contact != nil {
		contact = result.Contact.Value
		contactConf = result.Contact.Confidence
	}

	var postings []models.AtomicPosting
	for _, hosp := range result.Hospitals {
		for _, dp := range result.DatePeriods {
			value, valueConf, warnings := g.resolveValue(result.Values, dp.Value)

			posting := models.AtomicPosting{
				ID:              utils.GenerateRequestID(),
				Date:            dp.Value.Date,
				Weekday:         dp.Value.Weekday,
				Period:          dp.Value.Period,
				StartTime:       dp.Value.StartTime,
				EndTime:         dp.Value.EndTime,
				Value:           value,
				HospitalName:    hosp.Value.Name,
				HospitalAddress: hosp.Value.Address,
				SpecialtyName:   specialty,
				ContactName:     contact.Name,
				ContactPhone:    contact.Phone,
				Confidences: models.FieldConfidences{
					Hospital:   hosp.Confidence,
					DatePeriod: dp.Confidence,
					Value:      valueConf,
					Contact:    contactConf,
					Specialty:  specialtyConf,
				},
				Warnings:   warnings,
				Provenance: prov,
			}
			posting.Overall = g.overallConfidence(posting.Confidences, posting)

			postings = append(postings, posting)
		}
	}

	g.logger.Debug("Generated atomic postings", map[string]interface{}{
		"hospitals":    len(result.Hospitals),
		"date_periods": len(result.DatePeriods),
		"postings":     len(postings),
	})

	return postings, ""
}

// resolveValue picks the value applying to the pair's weekday: the first
// weekday-scoped rule that covers it, then a flat rate, otherwise the value
// stays unresolved with a warning. Unresolved is a legitimate case ("valor
// a combinar"), not a failure.
func (g *Generator) resolveValue(rules []models.FieldCandidate[models.ValueRule], dp models.DatePeriod) (models.MoneyValue, float64, []string) {
	var flat *models.FieldCandidate[models.ValueRule]

	for i := range rules {
		rule := &rules[i]
		if rule.Value.Flat() {
			if flat == nil {
				flat = rule
			}
			continue
		}
		if rule.Value.Matches(dp.Weekday) {
			return models.MoneyValue{AmountCents: rule.Value.AmountCents, Resolved: true}, rule.Confidence, nil
		}
	}

	if flat != nil {
		return models.MoneyValue{AmountCents: flat.Value.AmountCents, Resolved: true}, flat.Confidence, nil
	}

	return models.MoneyValue{}, g.unresolvedValue, []string{WarnValueUnresolved}
}

// overallConfidence is the weighted average of the component confidences,
// renormalized over the components the posting actually carries so that a
// posting without a contact is not structurally capped below the import
// threshold. An unresolved value contributes the penalized constant through
// its confidence, never zero.
func (g *Generator) overallConfidence(c models.FieldConfidences, p models.AtomicPosting) float64 {
	sum := g.weights.Hospital*c.Hospital + g.weights.DatePeriod*c.DatePeriod + g.weights.Value*c.Value
	total := g.weights.Hospital + g.weights.DatePeriod + g.weights.Value

	if p.ContactName != "" || p.ContactPhone != "" {
		sum += g.weights.Contact * c.Contact
		total += g.weights.Contact
	}
	if p.SpecialtyName != "" {
		sum += g.weights.Specialty * c.Specialty
		total += g.weights.Specialty
	}

	if total <= 0 {
		return 0
	}
	return utils.Clip01(sum / total)
}

func bestSpecialty(candidates []models.FieldCandidate[models.Specialty]) (string, float64) {
	name := ""
	best := 0.0
	for _, c := range candidates {
		if c.Confidence > best {
			best = c.Confidence
			name = c.Value.Name
		}
	}
	return name, best
}
