package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticsStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeText lowercases, strips diacritics and collapses whitespace.
// Every text comparison in the pipeline goes through this so that
// "Clínica Médica" and "clinica medica" are the same token stream.
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if out, _, err := transform.String(diacriticsStripper, s); err == nil {
		s = out
	}
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeLines normalizes each line separately, preserving the line
// structure the sectioning step depends on. Blank lines are kept as
// empty strings so group boundaries survive.
func NormalizeLines(s string) []string {
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, len(raw))
	for i, line := range raw {
		out[i] = NormalizeText(line)
	}
	return out
}

// OnlyDigits strips everything but ASCII digits.
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ContainsWord reports whether the normalized text contains the keyword as
// a whole word (or phrase, for multi-word keywords).
func ContainsWord(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	idx := 0
	for {
		i := strings.Index(text[idx:], keyword)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(keyword)
		beforeOK := start == 0 || !isWordChar(rune(text[start-1]))
		afterOK := end == len(text) || !isWordChar(rune(text[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
