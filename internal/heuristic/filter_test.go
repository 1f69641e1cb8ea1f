package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"plantao-pipeline/internal/dictionary"
	"plantao-pipeline/pkg/models"
)

func newTestFilter() *Filter {
	return NewFilter(dictionary.Default(), Options{})
}

func TestScoreRejectsShortMessages(t *testing.T) {
	f := newTestFilter()

	// Length gates content: even job keywords don't save a tiny message.
	for _, text := range []string{"vaga", "plantao", "oi", "r$ 100"} {
		result := f.Score(text)
		assert.False(t, result.Passed, "text %q", text)
		assert.Equal(t, models.RejectTooShort, result.Rejection, "text %q", text)
	}
}

func TestScoreRejectsEmptyMessage(t *testing.T) {
	f := newTestFilter()
	result := f.Score("   \n\t ")
	assert.Equal(t, models.RejectEmpty, result.Rejection)
}

func TestScoreRejectsGreeting(t *testing.T) {
	f := newTestFilter()
	result := f.Score("Bom dia pessoal")
	assert.False(t, result.Passed)
	assert.Equal(t, models.RejectNegativeKeyword, result.Rejection)
	assert.Contains(t, result.Categories, "saudacao")
}

func TestScoreGreetingInsidePostingDoesNotReject(t *testing.T) {
	f := newTestFilter()
	result := f.Score("Bom dia pessoal! Vaga de plantão no Hospital ABC amanhã, R$ 1.500")
	assert.True(t, result.Passed)
	assert.NotEqual(t, models.RejectNegativeKeyword, result.Rejection)
}

func TestScorePassesPostingText(t *testing.T) {
	f := newTestFilter()
	result := f.Score("🚨 URGENTE - Hospital São Luiz ABC, Clínica Médica, 28/12, noturno, R$ 1.800")
	assert.True(t, result.Passed)
	assert.GreaterOrEqual(t, result.Score, 0.5)
	assert.Contains(t, result.Categories, "hospital")
	assert.Contains(t, result.Categories, "valor")
}

func TestScoreRejectsLowSignalText(t *testing.T) {
	f := newTestFilter()
	result := f.Score("Reunião do condomínio será na quinta às dezenove horas")
	assert.False(t, result.Passed)
	assert.Equal(t, models.RejectLowScore, result.Rejection)
}

func TestScoreRejectsOversizedMessage(t *testing.T) {
	f := NewFilter(dictionary.Default(), Options{MaxLength: 50})
	long := "plantão no hospital abc com vaga urgente para clínica médica amanhã à noite"
	result := f.Score(long)
	assert.Equal(t, models.RejectTooLong, result.Rejection)
}
