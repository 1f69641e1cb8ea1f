package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/pkg/models"
	"plantao-pipeline/pkg/utils"
)

// dateExtractor resolves calendar dates, relative day words and weekday
// names against a reference date, and pairs each with the shift period
// mentioned closest to it.
type dateExtractor struct {
	dict *dictionary.Dictionary
}

var (
	numericDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	timeRangeRe   = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2})|h(\d{2})?)\s*(?:as|às|a|ate|-|/)\s*(\d{1,2})(?::(\d{2})|h(\d{2})?)\b`)
)

func newDateExtractor(dict *dictionary.Dictionary) *dateExtractor {
	return &dateExtractor{dict: dict}
}

// Extract returns date/period candidates from the text block. Each line is
// scanned on its own so a period word applies to the dates on its line;
// lines without a period fall back to the period found anywhere in the
// block.
func (de *dateExtractor) Extract(text string, referenceDate time.Time) []models.FieldCandidate[models.DatePeriod] {
	normalized := utils.NormalizeText(text)
	if normalized == "" {
		return nil
	}

	blockPeriod, blockStart, blockEnd := de.findPeriod(normalized)

	var candidates []models.FieldCandidate[models.DatePeriod]
	seen := make(map[string]bool)

	for _, lineNorm := range utils.NormalizeLines(text) {
		if lineNorm == "" {
			continue
		}

		period, startTime, endTime := de.findPeriod(lineNorm)
		if period == "" && startTime == "" {
			period, startTime, endTime = blockPeriod, blockStart, blockEnd
		}

		for _, cand := range de.datesOnLine(lineNorm, referenceDate) {
			dp := cand.value
			dp.Period = period
			dp.StartTime = startTime
			dp.EndTime = endTime

			key := dp.Date.Format("2006-01-02") + "|" + string(dp.Period)
			if seen[key] {
				continue
			}
			seen[key] = true

			// An explicit period word disambiguates the slot and raises
			// confidence; its absence lowers it.
			confidence := cand.confidence
			if period == "" {
				confidence *= 0.8
			} else if confidence < 0.95 {
				confidence += 0.05
			}
			candidates = append(candidates, models.FieldCandidate[models.DatePeriod]{
				Value:      dp,
				Confidence: confidence,
				Span:       cand.span,
			})
		}
	}

	return candidates
}

type dateHit struct {
	value      models.DatePeriod
	confidence float64
	span       string
}

func (de *dateExtractor) datesOnLine(line string, referenceDate time.Time) []dateHit {
	var hits []dateHit
	ref := utils.DateOnly(referenceDate)

	for _, m := range numericDateRe.FindAllStringSubmatch(line, -1) {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if day < 1 || day > 31 || month < 1 || month > 12 {
			continue
		}

		confidence := 0.85
		year := ref.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
			confidence = 0.95
		}

		date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		// A day/month without a year means the next occurrence that has
		// not already passed.
		if m[3] == "" && date.Before(ref) {
			date = date.AddDate(1, 0, 0)
		}

		hits = append(hits, dateHit{
			value:      models.DatePeriod{Date: date, Weekday: date.Weekday()},
			confidence: confidence,
			span:       m[0],
		})
	}

	// Longest phrase first so "depois de amanha" does not also count as
	// "amanha".
	for _, rel := range relativeDays {
		if utils.ContainsWord(line, rel.word) {
			date := ref.AddDate(0, 0, rel.offset)
			hits = append(hits, dateHit{
				value:      models.DatePeriod{Date: date, Weekday: date.Weekday()},
				confidence: 0.7,
				span:       rel.word,
			})
			break
		}
	}

	if utils.ContainsWord(line, "hoje") {
		hits = append(hits, dateHit{
			value:      models.DatePeriod{Date: ref, Weekday: ref.Weekday()},
			confidence: 0.7,
			span:       "hoje",
		})
	}

	// Weekday names resolve to their next occurrence, today included.
	// Skip names that are part of a value rule ("seg a sex R$ ...").
	if !strings.Contains(line, "r$") {
		for name, dayNum := range de.dict.Weekdays {
			if !utils.ContainsWord(line, name) {
				continue
			}
			ahead := (dayNum - int(ref.Weekday()) + 7) % 7
			date := ref.AddDate(0, 0, ahead)
			hits = append(hits, dateHit{
				value:      models.DatePeriod{Date: date, Weekday: date.Weekday()},
				confidence: 0.7,
				span:       name,
			})
		}
	}

	return hits
}

var relativeDays = []struct {
	word   string
	offset int
}{
	{"depois de amanha", 2},
	{"amanha", 1},
}

// findPeriod locates a period word or an explicit time range in the text.
// An explicit range also infers the period from the start hour when no
// period word is present.
func (de *dateExtractor) findPeriod(text string) (models.Period, string, string) {
	var period models.Period
	for canonical, words := range de.dict.Periods {
		for _, w := range words {
			if utils.ContainsWord(text, w) {
				period = models.Period(canonical)
				break
			}
		}
		if period != "" {
			break
		}
	}

	var startTime, endTime string
	if m := timeRangeRe.FindStringSubmatch(text); m != nil {
		startTime = formatTime(m[1], firstNonEmpty(m[2], m[3]))
		endTime = formatTime(m[4], firstNonEmpty(m[5], m[6]))

		if period == "" {
			startHour, _ := strconv.Atoi(m[1])
			switch {
			case startHour >= 6 && startHour < 13:
				period = models.PeriodDay
			case startHour >= 13 && startHour < 18:
				period = models.PeriodAfternoon
			default:
				period = models.PeriodNocturnal
			}
		}
	}

	return period, startTime, endTime
}

func formatTime(hour, minute string) string {
	if minute == "" {
		minute = "00"
	}
	if len(hour) == 1 {
		hour = "0" + hour
	}
	return hour + ":" + minute
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
