package extraction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantao-pipeline/internal/dictionary"
)

func newTestValueExtractor() *valueExtractor {
	return newValueExtractor(dictionary.Default())
}

func TestValueExtractorFlatRate(t *testing.T) {
	candidates := newTestValueExtractor().Extract("R$ 1.800 por plantão")

	require.Len(t, candidates, 1)
	rule := candidates[0].Value
	assert.Equal(t, int64(180000), rule.AmountCents)
	assert.True(t, rule.Flat())
	assert.InDelta(t, 0.9, candidates[0].Confidence, 1e-9)
}

func TestValueExtractorWeekdayRange(t *testing.T) {
	candidates := newTestValueExtractor().Extract("seg a sex R$ 1.700\nsab e dom R$ 2.000")

	require.Len(t, candidates, 2)

	weekRule := candidates[0].Value
	assert.Equal(t, int64(170000), weekRule.AmountCents)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, weekRule.Days)

	weekendRule := candidates[1].Value
	assert.Equal(t, int64(200000), weekendRule.AmountCents)
	assert.ElementsMatch(t, []time.Weekday{time.Saturday, time.Sunday}, weekendRule.Days)
}

func TestValueExtractorWeekendGroupWords(t *testing.T) {
	candidates := newTestValueExtractor().Extract("fim de semana R$ 2.200")

	require.Len(t, candidates, 1)
	assert.ElementsMatch(t, []time.Weekday{time.Saturday, time.Sunday}, candidates[0].Value.Days)
}

func TestValueExtractorNegotiableYieldsNothing(t *testing.T) {
	candidates := newTestValueExtractor().Extract("valor a combinar")
	assert.Empty(t, candidates)
}

func TestValueExtractorBareAmountIsWeaker(t *testing.T) {
	candidates := newTestValueExtractor().Extract("valor 1500")

	require.Len(t, candidates, 1)
	assert.Equal(t, int64(150000), candidates[0].Value.AmountCents)
	assert.InDelta(t, 0.6, candidates[0].Confidence, 1e-9)
}

func TestValueExtractorDeduplicatesAmounts(t *testing.T) {
	candidates := newTestValueExtractor().Extract("R$ 1.800\nR$ 1.800")
	assert.Len(t, candidates, 1)
}

func TestParseBRLCents(t *testing.T) {
	cases := []struct {
		raw   string
		cents int64
		ok    bool
	}{
		{"1.800", 180000, true},
		{"1800", 180000, true},
		{"1.800,50", 180050, true},
		{"1.800,5", 180050, true},
		{"150", 15000, true},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, c := range cases {
		cents, ok := parseBRLCents(c.raw)
		assert.Equal(t, c.ok, ok, "raw %q", c.raw)
		if ok {
			assert.Equal(t, c.cents, cents, "raw %q", c.raw)
		}
	}
}
