package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/pkg/models"
)

func TestComposedExtractorScenario(t *testing.T) {
	ex := NewComposedExtractor(dictionary.Default())
	msg := &models.RawMessage{
		ID:      "msg-1",
		GroupID: "group-1",
		Text:    "🚨 URGENTE - Hospital São Luiz ABC, Clínica Médica, 28/12, noturno, R$ 1.800",
	}
	ref := time.Date(2025, 12, 20, 9, 0, 0, 0, time.UTC)

	result, err := ex.Extract(context.Background(), msg, ref)
	require.NoError(t, err)

	assert.True(t, result.IsPosting)
	assert.Equal(t, "composed", result.Strategy)

	require.Len(t, result.Hospitals, 1)
	assert.Equal(t, "hospital sao luiz abc", result.Hospitals[0].Value.Name)

	require.Len(t, result.DatePeriods, 1)
	assert.Equal(t, time.Date(2025, 12, 28, 0, 0, 0, 0, time.UTC), result.DatePeriods[0].Value.Date)
	assert.Equal(t, models.PeriodNocturnal, result.DatePeriods[0].Value.Period)

	require.Len(t, result.Values, 1)
	assert.Equal(t, int64(180000), result.Values[0].Value.AmountCents)

	assert.Nil(t, result.Contact)

	require.NotEmpty(t, result.Specialties)
	assert.Equal(t, "clinica medica", result.Specialties[0].Value.Name)
}

func TestComposedExtractorNotAPosting(t *testing.T) {
	ex := NewComposedExtractor(dictionary.Default())
	msg := &models.RawMessage{ID: "msg-2", Text: "alguém indica um bom livro de cardiologia?"}

	result, err := ex.Extract(context.Background(), msg, time.Now())
	require.NoError(t, err)
	assert.False(t, result.IsPosting)
}

func TestComposedExtractorSectionedMessage(t *testing.T) {
	ex := NewComposedExtractor(dictionary.Default())
	msg := &models.RawMessage{
		ID:      "msg-3",
		GroupID: "group-1",
		Text:    "📍 Hospital Santa Marcelina\n📅 15/01 diurno\n💰 R$ 1.500\n📞 falar com Ana 11 98765-4321\n🩺 pediatria",
	}
	ref := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	result, err := ex.Extract(context.Background(), msg, ref)
	require.NoError(t, err)

	assert.True(t, result.IsPosting)
	require.Len(t, result.Hospitals, 1)
	assert.Equal(t, "hospital santa marcelina", result.Hospitals[0].Value.Name)

	require.Len(t, result.DatePeriods, 1)
	assert.Equal(t, models.PeriodDay, result.DatePeriods[0].Value.Period)

	require.NotNil(t, result.Contact)
	assert.Equal(t, "11987654321", result.Contact.Value.Phone)
	assert.Equal(t, "ana", result.Contact.Value.Name)

	require.Len(t, result.Specialties, 1)
	assert.Equal(t, "pediatria", result.Specialties[0].Value.Name)
}

func TestCompletenessConfidenceBounds(t *testing.T) {
	ex := NewComposedExtractor(dictionary.Default())
	texts := []string{
		"🚨 URGENTE - Hospital São Luiz ABC, Clínica Médica, 28/12, noturno, R$ 1.800",
		"Hospital ABC amanhã",
		"texto sem nada",
	}
	for _, text := range texts {
		result, err := ex.Extract(context.Background(), &models.RawMessage{ID: "m", Text: text}, time.Now().UTC())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.Confidence, 0.0, "text %q", text)
		assert.LessOrEqual(t, result.Confidence, 1.0, "text %q", text)
	}
}

func TestCacheKeyNormalizesContent(t *testing.T) {
	ref := time.Date(2026, 1, 2, 15, 30, 0, 0, time.UTC)

	a := CacheKey("Plantão  AMANHÃ", ref)
	b := CacheKey("plantao amanha", ref)
	assert.Equal(t, a, b)

	// The reference date is part of the key: relative dates resolve
	// differently on different days.
	c := CacheKey("plantao amanha", ref.AddDate(0, 0, 1))
	assert.NotEqual(t, a, c)

	assert.Contains(t, a, "plantao:extraction:")
}
