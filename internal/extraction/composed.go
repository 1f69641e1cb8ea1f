package extraction

import (
	"context"
	"time"

	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/pkg/models"
)

// ComposedExtractor runs one pure extractor per field family. Each scans
// the lines sectioned for its family first and falls back to the whole
// message when its section yields nothing. No external calls are made, so
// this strategy is free to re-run.
type ComposedExtractor struct {
	dict        *dictionary.Dictionary
	hospitals   *hospitalExtractor
	dates       *dateExtractor
	values      *valueExtractor
	specialties *specialtyExtractor
}

// NewComposedExtractor builds the rule-based strategy from the dictionary.
func NewComposedExtractor(dict *dictionary.Dictionary) *ComposedExtractor {
	return &ComposedExtractor{
		dict:        dict,
		hospitals:   newHospitalExtractor(dict),
		dates:       newDateExtractor(dict),
		values:      newValueExtractor(dict),
		specialties: newSpecialtyExtractor(dict),
	}
}

// Extract classifies the message from field completeness and returns all
// field candidates.
func (ce *ComposedExtractor) Extract(_ context.Context, msg *models.RawMessage, referenceDate time.Time) (*models.ExtractionResult, error) {
	sections := SplitSections(msg.Text, ce.dict)

	hospitals := ce.hospitals.Extract(sectionOrWhole(sections, SectionLocal, msg.Text))
	dates := ce.dates.Extract(sectionOrWhole(sections, SectionDate, msg.Text), referenceDate)
	values := ce.values.Extract(sectionOrWhole(sections, SectionValue, msg.Text))
	contact := extractContact(sectionOrWhole(sections, SectionContact, msg.Text))
	specialties := ce.specialties.Extract(sectionOrWhole(sections, SectionSpecialty, msg.Text))

	result := &models.ExtractionResult{
		IsPosting:     len(hospitals) > 0 && len(dates) > 0,
		Hospitals:     hospitals,
		DatePeriods:   dates,
		Values:        values,
		Contact:       contact,
		Specialties:   specialties,
		Strategy:      "composed",
		ReferenceDate: referenceDate,
	}
	result.Confidence = completenessConfidence(result)

	return result, nil
}

// StrategyName returns the extraction strategy name.
func (ce *ComposedExtractor) StrategyName() string { return "composed" }

// sectionOrWhole returns the text of the family's section, or the whole
// message when the section is empty.
func sectionOrWhole(sections []Section, kind SectionKind, whole string) string {
	if text := SectionText(sections, kind); text != "" {
		return text
	}
	return whole
}

// completenessConfidence derives the classification confidence from how
// complete and unambiguous the extracted fields are, weighted the same way
// the posting generator weighs them.
func completenessConfidence(r *models.ExtractionResult) float64 {
	score := 0.0
	if c := bestConfidence(r.Hospitals); c > 0 {
		score += 0.30 * c
	}
	if c := bestConfidence(r.DatePeriods); c > 0 {
		score += 0.30 * c
	}
	if c := bestConfidence(r.Values); c > 0 {
		score += 0.20 * c
	}
	if r.Contact != nil {
		score += 0.10 * r.Contact.Confidence
	}
	if c := bestConfidence(r.Specialties); c > 0 {
		score += 0.10 * c
	}
	if score > 1 {
		score = 1
	}
	return score
}

func bestConfidence[T any](candidates []models.FieldCandidate[T]) float64 {
	best := 0.0
	for _, c := range candidates {
		if c.Confidence > best {
			best = c.Confidence
		}
	}
	return best
}
