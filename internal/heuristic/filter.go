// Package heuristic is the cheap, deterministic pre-filter that decides
// whether a message is worth paying for classification. It is pure text
// scoring with no side effects, safe to re-run at any time.
package heuristic

import (
	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/pkg/models"
	"plantao-pipeline/pkg/utils"
)

// Filter scores raw message text against the keyword dictionary.
type Filter struct {
	dict      *dictionary.Dictionary
	minLength int
	maxLength int
	threshold float64
}

// Options configure the filter limits and pass threshold.
type Options struct {
	MinLength int
	MaxLength int
	Threshold float64
}

// NewFilter creates a filter over an immutable dictionary.
func NewFilter(dict *dictionary.Dictionary, opts Options) *Filter {
	if opts.MinLength <= 0 {
		opts.MinLength = 12
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = 4000
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.25
	}
	return &Filter{
		dict:      dict,
		minLength: opts.MinLength,
		maxLength: opts.MaxLength,
		threshold: opts.Threshold,
	}
}

// Score runs the heuristic over one message text. False negatives are the
// expensive failure mode here: a rejected real posting never reaches
// classification, so negative signals only fire on unambiguous matches.
func (f *Filter) Score(text string) models.HeuristicResult {
	normalized := utils.NormalizeText(text)

	if normalized == "" {
		return models.HeuristicResult{Rejection: models.RejectEmpty}
	}
	if len(normalized) < f.minLength {
		return models.HeuristicResult{Rejection: models.RejectTooShort}
	}
	if len(normalized) > f.maxLength {
		return models.HeuristicResult{Rejection: models.RejectTooLong}
	}

	if category, fired := f.negativeSignal(normalized); fired {
		return models.HeuristicResult{
			Rejection:  models.RejectNegativeKeyword,
			Categories: []string{category},
		}
	}

	score, categories := f.positiveScore(normalized)
	if score < f.threshold {
		return models.HeuristicResult{
			Score:      score,
			Categories: categories,
			Rejection:  models.RejectLowScore,
		}
	}

	return models.HeuristicResult{
		Passed:     true,
		Score:      score,
		Categories: categories,
	}
}

// negativeSignal fires only when a negative keyword matches and the text
// carries no job-related keyword at all. A greeting inside a real posting
// must never reject it.
func (f *Filter) negativeSignal(normalized string) (string, bool) {
	for _, keyword := range f.dict.JobKeywords {
		if utils.ContainsWord(normalized, keyword) {
			return "", false
		}
	}
	for _, category := range f.dict.Negative {
		for _, keyword := range category.Keywords {
			if utils.ContainsWord(normalized, keyword) {
				return category.Category, true
			}
		}
	}
	return "", false
}

func (f *Filter) positiveScore(normalized string) (float64, []string) {
	var score float64
	var categories []string
	for _, category := range f.dict.Positive {
		for _, keyword := range category.Keywords {
			if utils.ContainsWord(normalized, keyword) {
				score += category.Weight
				categories = append(categories, category.Category)
				break
			}
		}
	}
	return utils.Clip01(score), categories
}
