package extraction

import (
	"regexp"
	"sort"
	"strings"

	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/pkg/models"
	"plantao-pipeline/pkg/utils"
)

// hospitalExtractor finds facility mentions. The prefix alternation is
// compiled once from the dictionary; matching runs on normalized text so
// accent and case variants of the prefixes collapse.
type hospitalExtractor struct {
	nameRe      *regexp.Regexp
	implausible map[string]bool
}

// nameTerminators cut a captured hospital name at the first token that
// clearly starts another field.
var nameTerminators = []string{
	"dia ", "data ", "valor ", "contato ", "plantao ", "vaga ", "periodo ",
	"manha", "tarde", "noite", "diurno", "noturno",
}

func newHospitalExtractor(dict *dictionary.Dictionary) *hospitalExtractor {
	prefixes := make([]string, len(dict.HospitalPrefixes))
	copy(prefixes, dict.HospitalPrefixes)
	// Longest first so "pronto socorro" wins over "pronto".
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	quoted := make([]string, len(prefixes))
	for i, p := range prefixes {
		quoted[i] = regexp.QuoteMeta(p)
	}

	implausible := make(map[string]bool, len(dict.ImplausibleHospitals)+len(dict.Specialties))
	for _, w := range dict.ImplausibleHospitals {
		implausible[w] = true
	}
	// A bare specialty name used as if it were a facility is not one.
	for _, s := range dict.Specialties {
		implausible[s] = true
	}

	pattern := `\b(` + strings.Join(quoted, "|") + `)\b[\s:.-]*([a-z0-9][a-z0-9 .'-]{2,60})`
	return &hospitalExtractor{
		nameRe:      regexp.MustCompile(pattern),
		implausible: implausible,
	}
}

// Extract returns the facility candidates found in the text block.
func (he *hospitalExtractor) Extract(text string) []models.FieldCandidate[models.Hospital] {
	normalized := utils.NormalizeText(text)
	if normalized == "" {
		return nil
	}

	var candidates []models.FieldCandidate[models.Hospital]
	seen := make(map[string]bool)

	for _, match := range he.nameRe.FindAllStringSubmatch(normalized, -1) {
		prefix := strings.TrimRight(strings.TrimSpace(match[1]), ".")
		name := trimHospitalName(match[2])
		if name == "" {
			continue
		}

		full := prefix + " " + name
		if seen[full] || he.implausible[full] || he.implausible[name] {
			continue
		}
		// A prefix followed by a specialty name ("clinica medica ...")
		// is a specialty mention, not a facility.
		if first, _, ok := strings.Cut(name, " "); ok && he.implausible[prefix+" "+first] {
			continue
		}
		seen[full] = true

		candidates = append(candidates, models.FieldCandidate[models.Hospital]{
			Value:      models.Hospital{Name: full},
			Confidence: hospitalConfidence(prefix, name),
			Span:       full,
		})
	}

	return candidates
}

func trimHospitalName(raw string) string {
	name := strings.TrimSpace(raw)

	// Stop at separators that end the mention.
	for _, sep := range []string{",", ";", "|", " - ", " ou ", "\n"} {
		if idx := strings.Index(name, sep); idx >= 0 {
			name = name[:idx]
		}
	}

	for _, term := range nameTerminators {
		if idx := strings.Index(name, term); idx > 0 {
			name = name[:idx]
		}
	}

	name = strings.TrimSpace(strings.Trim(name, ".-:"))
	if len(name) < 2 {
		return ""
	}
	return name
}

// hospitalConfidence scores how unambiguous the mention is. A full
// "hospital" prefix with a multi-word name reads as a facility; short
// abbreviations with one bare token are weaker evidence.
func hospitalConfidence(prefix, name string) float64 {
	confidence := 0.75
	switch prefix {
	case "hospital", "santa casa", "maternidade", "upa":
		confidence = 0.9
	case "hosp", "hm", "ph":
		confidence = 0.65
	}
	if strings.Contains(name, " ") {
		confidence += 0.05
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}
