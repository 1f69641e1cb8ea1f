package extraction

import (
	"strings"

	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/pkg/utils"
)

// SectionKind labels a group of message lines by the field family it
// likely carries.
type SectionKind string

const (
	SectionLocal     SectionKind = "local"
	SectionDate      SectionKind = "date"
	SectionValue     SectionKind = "value"
	SectionContact   SectionKind = "contact"
	SectionSpecialty SectionKind = "specialty"
	SectionUnknown   SectionKind = "unknown"
)

// Section is one classified group of consecutive lines.
type Section struct {
	Kind  SectionKind
	Lines []string
}

// SplitSections groups the message into line runs and classifies each run
// from emoji and keyword cues. Pure text operation: no normalization state
// or external calls, so it is testable on its own regardless of which
// extraction strategy runs afterwards.
func SplitSections(text string, dict *dictionary.Dictionary) []Section {
	rawLines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var sections []Section
	current := Section{Kind: SectionUnknown}
	flush := func() {
		if len(current.Lines) > 0 {
			sections = append(sections, current)
		}
		current = Section{Kind: SectionUnknown}
	}

	for _, raw := range rawLines {
		line := strings.TrimSpace(raw)
		if line == "" {
			flush()
			continue
		}

		kind := classifyLine(raw, dict)
		if kind != SectionUnknown && kind != current.Kind {
			flush()
			current.Kind = kind
		}
		current.Lines = append(current.Lines, line)
	}
	flush()

	return sections
}

// SectionText concatenates the lines of all sections of the given kind.
func SectionText(sections []Section, kind SectionKind) string {
	var parts []string
	for _, s := range sections {
		if s.Kind == kind {
			parts = append(parts, s.Lines...)
		}
	}
	return strings.Join(parts, "\n")
}

func classifyLine(raw string, dict *dictionary.Dictionary) SectionKind {
	normalized := utils.NormalizeText(raw)

	// Emoji cues win over keywords: a line tagged with a pin emoji is a
	// location even when it also mentions a value.
	for _, kind := range sectionOrder {
		cue, ok := dict.Sections[string(kind)]
		if !ok {
			continue
		}
		for _, emoji := range cue.Emojis {
			if strings.Contains(raw, emoji) {
				return kind
			}
		}
	}

	for _, kind := range sectionOrder {
		cue, ok := dict.Sections[string(kind)]
		if !ok {
			continue
		}
		for _, keyword := range cue.Keywords {
			if utils.ContainsWord(normalized, keyword) {
				return kind
			}
		}
	}

	return SectionUnknown
}

// sectionOrder fixes the cue evaluation order so classification is
// deterministic when a line matches multiple cues.
var sectionOrder = []SectionKind{
	SectionLocal,
	SectionDate,
	SectionValue,
	SectionContact,
	SectionSpecialty,
}
