package extraction

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/pkg/models"
	"plantao-pipeline/pkg/utils"
)

// valueExtractor finds monetary amounts and the weekday groups they apply
// to. "R$ 1.800" style amounts are high confidence; a bare number next to
// "valor" is weaker. "A combinar" produces no rule at all, which downstream
// surfaces as an unresolved value.
type valueExtractor struct {
	weekdayNames []string
	weekdays     map[string]int
}

var (
	moneyRe      = regexp.MustCompile(`r\$\s*([0-9][0-9.,]*)`)
	bareAmountRe = regexp.MustCompile(`\bvalor\b[\s:]*([0-9][0-9.,]*)`)
	negotiableRe = regexp.MustCompile(`\ba combinar\b|\bcombinar\b|\bnegociar\b|\bnegociavel\b`)
	rangeSepRe   = regexp.MustCompile(`\s+(?:a|as|ate)\s+`)
)

func newValueExtractor(dict *dictionary.Dictionary) *valueExtractor {
	names := make([]string, 0, len(dict.Weekdays))
	for name := range dict.Weekdays {
		names = append(names, name)
	}
	// Longest first so "segunda-feira" is consumed before "segunda".
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	return &valueExtractor{weekdayNames: names, weekdays: dict.Weekdays}
}

// Extract returns value-rule candidates from the text block.
func (ve *valueExtractor) Extract(text string) []models.FieldCandidate[models.ValueRule] {
	var candidates []models.FieldCandidate[models.ValueRule]
	seen := make(map[string]bool)

	for _, line := range utils.NormalizeLines(text) {
		if line == "" || negotiableRe.MatchString(line) {
			continue
		}

		amounts := moneyRe.FindAllStringSubmatch(line, -1)
		confidence := 0.9
		if len(amounts) == 0 {
			amounts = bareAmountRe.FindAllStringSubmatch(line, -1)
			confidence = 0.6
		}

		days := ve.weekdayGroup(line)

		for _, m := range amounts {
			cents, ok := parseBRLCents(m[1])
			if !ok || cents <= 0 {
				continue
			}

			key := strconv.FormatInt(cents, 10) + "|" + daysKey(days)
			if seen[key] {
				continue
			}
			seen[key] = true

			candidates = append(candidates, models.FieldCandidate[models.ValueRule]{
				Value:      models.ValueRule{Days: days, AmountCents: cents, Raw: m[0]},
				Confidence: confidence,
				Span:       m[0],
			})
		}
	}

	return candidates
}

// weekdayGroup resolves the weekday scope mentioned on the line: a range
// ("seg a sex"), a list ("sab e dom"), or a named group ("fim de semana").
// An empty result means a flat rate.
func (ve *valueExtractor) weekdayGroup(line string) []time.Weekday {
	switch {
	case utils.ContainsWord(line, "fim de semana"),
		utils.ContainsWord(line, "final de semana"),
		utils.ContainsWord(line, "fds"):
		return []time.Weekday{time.Saturday, time.Sunday}
	case utils.ContainsWord(line, "dia de semana"),
		utils.ContainsWord(line, "dias de semana"),
		utils.ContainsWord(line, "durante a semana"):
		return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	}

	mentions := ve.weekdayMentions(line)
	if len(mentions) == 0 {
		return nil
	}

	// Two mentions joined by a range word expand to the full span.
	if len(mentions) == 2 && rangeSepRe.MatchString(between(line, mentions[0].end, mentions[1].start)) {
		return expandRange(time.Weekday(mentions[0].day), time.Weekday(mentions[1].day))
	}

	days := make([]time.Weekday, 0, len(mentions))
	seen := make(map[int]bool)
	for _, m := range mentions {
		if !seen[m.day] {
			seen[m.day] = true
			days = append(days, time.Weekday(m.day))
		}
	}
	return days
}

type weekdayMention struct {
	day   int
	start int
	end   int
}

func (ve *valueExtractor) weekdayMentions(line string) []weekdayMention {
	var mentions []weekdayMention
	consumed := make([]bool, len(line))

	for _, name := range ve.weekdayNames {
		idx := 0
		for {
			i := strings.Index(line[idx:], name)
			if i < 0 {
				break
			}
			start := idx + i
			end := start + len(name)
			idx = start + 1

			if consumed[start] {
				continue
			}
			if start > 0 && isWordByte(line[start-1]) {
				continue
			}
			if end < len(line) && isWordByte(line[end]) {
				continue
			}

			for j := start; j < end; j++ {
				consumed[j] = true
			}
			mentions = append(mentions, weekdayMention{day: ve.weekdays[name], start: start, end: end})
		}
	}

	sort.Slice(mentions, func(i, j int) bool { return mentions[i].start < mentions[j].start })
	return mentions
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func between(line string, from, to int) string {
	if from < 0 || to > len(line) || from > to {
		return ""
	}
	return line[from:to]
}

func expandRange(from, to time.Weekday) []time.Weekday {
	var days []time.Weekday
	d := from
	for {
		days = append(days, d)
		if d == to {
			break
		}
		d = (d + 1) % 7
		if len(days) > 7 {
			return nil
		}
	}
	return days
}

// parseBRLCents parses a Brazilian-format amount ("1.800", "1.800,50",
// "1800") into centavos.
func parseBRLCents(raw string) (int64, bool) {
	raw = strings.Trim(raw, ".,")
	if raw == "" {
		return 0, false
	}

	whole := raw
	centsPart := ""
	if idx := strings.LastIndex(raw, ","); idx >= 0 {
		whole = raw[:idx]
		centsPart = raw[idx+1:]
	}

	whole = strings.ReplaceAll(whole, ".", "")
	amount, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, false
	}

	cents := amount * 100
	if centsPart != "" {
		if len(centsPart) > 2 {
			centsPart = centsPart[:2]
		}
		c, err := strconv.ParseInt(centsPart, 10, 64)
		if err != nil {
			return 0, false
		}
		if len(centsPart) == 1 {
			c *= 10
		}
		cents += c
	}

	return cents, true
}

func daysKey(days []time.Weekday) string {
	if len(days) == 0 {
		return "flat"
	}
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
