package extraction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/pkg/models"
)

func newTestDateExtractor() *dateExtractor {
	return newDateExtractor(dictionary.Default())
}

func TestDateExtractorNumericDateWithPeriod(t *testing.T) {
	ref := time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC)
	candidates := newTestDateExtractor().Extract("28/12 noturno", ref)

	require.Len(t, candidates, 1)
	dp := candidates[0].Value
	assert.Equal(t, time.Date(2025, 12, 28, 0, 0, 0, 0, time.UTC), dp.Date)
	assert.Equal(t, models.PeriodNocturnal, dp.Period)
	assert.InDelta(t, 0.90, candidates[0].Confidence, 1e-9)
}

func TestDateExtractorRollsToNextYear(t *testing.T) {
	ref := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	candidates := newTestDateExtractor().Extract("plantão dia 28/12 à noite", ref)

	require.Len(t, candidates, 1)
	assert.Equal(t, 2026, candidates[0].Value.Date.Year())
	assert.Equal(t, time.December, candidates[0].Value.Date.Month())
}

func TestDateExtractorExplicitYear(t *testing.T) {
	ref := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	candidates := newTestDateExtractor().Extract("28/12/2026 diurno", ref)

	require.Len(t, candidates, 1)
	assert.Equal(t, time.Date(2026, 12, 28, 0, 0, 0, 0, time.UTC), candidates[0].Value.Date)
	// Explicit year plus explicit period is as unambiguous as it gets.
	assert.InDelta(t, 0.95, candidates[0].Confidence, 1e-9)
}

func TestDateExtractorRelativeDays(t *testing.T) {
	ref := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	ex := newTestDateExtractor()

	amanha := ex.Extract("preciso de cobertura amanhã à tarde", ref)
	require.Len(t, amanha, 1)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), amanha[0].Value.Date)

	depois := ex.Extract("plantão depois de amanhã", ref)
	require.Len(t, depois, 1)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), depois[0].Value.Date)

	hoje := ex.Extract("vaga para hoje noturno", ref)
	require.Len(t, hoje, 1)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), hoje[0].Value.Date)
}

func TestDateExtractorWeekdayName(t *testing.T) {
	// 2026-03-10 is a Tuesday; "sexta" resolves to 2026-03-13.
	ref := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	candidates := newTestDateExtractor().Extract("plantão sexta noturno", ref)

	require.Len(t, candidates, 1)
	assert.Equal(t, time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC), candidates[0].Value.Date)
	assert.Equal(t, time.Friday, candidates[0].Value.Weekday)
}

func TestDateExtractorSkipsWeekdaysInValueRules(t *testing.T) {
	ref := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	candidates := newTestDateExtractor().Extract("seg a sex R$ 1.700", ref)
	assert.Empty(t, candidates)
}

func TestDateExtractorTimeRangeInfersPeriod(t *testing.T) {
	ref := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	candidates := newTestDateExtractor().Extract("12/03 das 19h as 7h", ref)

	require.Len(t, candidates, 1)
	dp := candidates[0].Value
	assert.Equal(t, models.PeriodNocturnal, dp.Period)
	assert.Equal(t, "19:00", dp.StartTime)
	assert.Equal(t, "07:00", dp.EndTime)
}

func TestDateExtractorMissingPeriodLowersConfidence(t *testing.T) {
	ref := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)
	candidates := newTestDateExtractor().Extract("disponível 28/12", ref)

	require.Len(t, candidates, 1)
	assert.Empty(t, candidates[0].Value.Period)
	assert.InDelta(t, 0.85*0.8, candidates[0].Confidence, 1e-9)
}

func TestDateExtractorDeduplicatesSlots(t *testing.T) {
	ref := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)
	candidates := newTestDateExtractor().Extract("28/12 noturno\n28/12 noturno", ref)
	assert.Len(t, candidates, 1)
}
