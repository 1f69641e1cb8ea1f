// Package dictionary loads the keyword vocabulary the text stages run on:
// heuristic signal categories, section cues, period and weekday words,
// hospital prefixes and the specialty list. Loaded once at startup and
// treated as immutable input by every consumer.
package dictionary

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"plantao-pipeline/pkg/utils"
)

// SignalCategory is one weighted keyword category for the heuristic filter.
type SignalCategory struct {
	Category string   `yaml:"category"`
	Weight   float64  `yaml:"weight"`
	Keywords []string `yaml:"keywords"`
}

// SectionCue holds the emoji and keyword cues that assign a message line
// to a section.
type SectionCue struct {
	Emojis   []string `yaml:"emojis"`
	Keywords []string `yaml:"keywords"`
}

// Dictionary is the full keyword vocabulary.
type Dictionary struct {
	Positive []SignalCategory `yaml:"positive"`
	Negative []SignalCategory `yaml:"negative"`

	// JobKeywords guard the generic-question negative: a question line
	// containing one of these is not treated as a negative signal.
	JobKeywords []string `yaml:"job_keywords"`

	Sections map[string]SectionCue `yaml:"sections"`

	HospitalPrefixes []string `yaml:"hospital_prefixes"`
	Specialties      []string `yaml:"specialties"`

	// Periods maps each canonical period to its vocabulary.
	Periods map[string][]string `yaml:"periods"`

	// Weekdays maps weekday vocabulary to Go weekday numbers (0=Sunday).
	Weekdays map[string]int `yaml:"weekdays"`

	// ImplausibleHospitals are words that disqualify a string as a
	// hospital name before any external lookup happens.
	ImplausibleHospitals []string `yaml:"implausible_hospitals"`
}

// LoadOrDefault reads a dictionary from a YAML file, falling back to the
// built-in vocabulary when no path is configured.
func LoadOrDefault(path string) (*Dictionary, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Load reads and normalizes a dictionary from a YAML file.
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary %s: %w", path, err)
	}

	dict := &Dictionary{}
	if err := yaml.Unmarshal(data, dict); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary %s: %w", path, err)
	}

	dict.normalize()
	return dict, nil
}

// normalize runs every keyword through the same text normalization the
// pipeline applies to messages, so matching is diacritics-insensitive.
func (d *Dictionary) normalize() {
	for i := range d.Positive {
		normalizeAll(d.Positive[i].Keywords)
	}
	for i := range d.Negative {
		normalizeAll(d.Negative[i].Keywords)
	}
	normalizeAll(d.JobKeywords)
	normalizeAll(d.HospitalPrefixes)
	normalizeAll(d.Specialties)
	normalizeAll(d.ImplausibleHospitals)
	for name, cue := range d.Sections {
		normalizeAll(cue.Keywords)
		d.Sections[name] = cue
	}
	for period, words := range d.Periods {
		normalizeAll(words)
		d.Periods[period] = words
	}
	normalized := make(map[string]int, len(d.Weekdays))
	for word, day := range d.Weekdays {
		normalized[utils.NormalizeText(word)] = day
	}
	d.Weekdays = normalized
}

func normalizeAll(words []string) {
	for i, w := range words {
		words[i] = utils.NormalizeText(w)
	}
}
