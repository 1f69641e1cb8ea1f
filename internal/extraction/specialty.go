package extraction

import (
	"strings"

	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/pkg/models"
	"plantao-pipeline/pkg/utils"
)

// specialtyExtractor matches known specialty names from the dictionary.
type specialtyExtractor struct {
	specialties []string
}

func newSpecialtyExtractor(dict *dictionary.Dictionary) *specialtyExtractor {
	return &specialtyExtractor{specialties: dict.Specialties}
}

// Extract returns the specialties mentioned in the text block. Multi-word
// names are less ambiguous than single tokens and score higher.
func (se *specialtyExtractor) Extract(text string) []models.FieldCandidate[models.Specialty] {
	normalized := utils.NormalizeText(text)
	if normalized == "" {
		return nil
	}

	var candidates []models.FieldCandidate[models.Specialty]
	seen := make(map[string]bool)

	for _, name := range se.specialties {
		if seen[name] || !utils.ContainsWord(normalized, name) {
			continue
		}
		seen[name] = true

		confidence := 0.7
		if strings.Contains(name, " ") {
			confidence = 0.9
		}

		candidates = append(candidates, models.FieldCandidate[models.Specialty]{
			Value:      models.Specialty{Name: name},
			Confidence: confidence,
			Span:       name,
		})
	}

	return candidates
}
