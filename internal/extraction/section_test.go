package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"plantao-pipeline/internal/dictionary"
)

func TestSplitSectionsByEmoji(t *testing.T) {
	text := "🚨 Plantão urgente\n📍 Hospital São Luiz ABC\n📅 28/12 noturno\n💰 R$ 1.800\n📞 11 98765-4321"
	sections := SplitSections(text, dictionary.Default())

	kinds := make(map[SectionKind]bool)
	for _, s := range sections {
		kinds[s.Kind] = true
	}
	assert.True(t, kinds[SectionLocal])
	assert.True(t, kinds[SectionDate])
	assert.True(t, kinds[SectionValue])
	assert.True(t, kinds[SectionContact])

	assert.Contains(t, SectionText(sections, SectionLocal), "Hospital São Luiz ABC")
	assert.Contains(t, SectionText(sections, SectionValue), "R$ 1.800")
}

func TestSplitSectionsByKeyword(t *testing.T) {
	text := "Local: Hospital ABC\nData: 10/03\nValor: R$ 1.500\nContato: Maria"
	sections := SplitSections(text, dictionary.Default())

	assert.Contains(t, SectionText(sections, SectionLocal), "Hospital ABC")
	assert.Contains(t, SectionText(sections, SectionDate), "10/03")
	assert.Contains(t, SectionText(sections, SectionValue), "1.500")
	assert.Contains(t, SectionText(sections, SectionContact), "Maria")
}

func TestSplitSectionsEmojiWinsOverKeyword(t *testing.T) {
	// The line mentions a value but is pinned as a location.
	sections := SplitSections("📍 Hospital ABC valor diferenciado", dictionary.Default())
	assert.Len(t, sections, 1)
	assert.Equal(t, SectionLocal, sections[0].Kind)
}

func TestSplitSectionsUnknownLines(t *testing.T) {
	sections := SplitSections("texto qualquer sem pista nenhuma", dictionary.Default())
	assert.Len(t, sections, 1)
	assert.Equal(t, SectionUnknown, sections[0].Kind)
}

func TestSplitSectionsBlankLineBreaksRun(t *testing.T) {
	sections := SplitSections("Local: Hospital ABC\n\nmais texto solto", dictionary.Default())
	assert.Len(t, sections, 2)
	assert.Equal(t, SectionLocal, sections[0].Kind)
	assert.Equal(t, SectionUnknown, sections[1].Kind)
}
