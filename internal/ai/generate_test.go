package ai

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupTemplate(t *testing.T) {
	assert.Equal(t, []string{"af-manual", "policy", "sop", "technical", "training"}, TemplateKeys())

	tmpl, ok := LookupTemplate(" SOP ")
	require.True(t, ok)
	assert.Equal(t, "standard operating procedures", tmpl.Description)

	_, ok = LookupTemplate("memo")
	assert.False(t, ok)
}

func TestDocumentPrompt(t *testing.T) {
	tmpl, _ := LookupTemplate("af-manual")
	system, user := DocumentPrompt(tmpl, 3, 7)

	assert.Contains(t, system, "Create exactly 3 pages of Air Force technical manual")
	assert.Contains(t, system, "suitable for 7 editorial improvements")
	assert.Contains(t, user, `"AIR FORCE TECHNICAL MANUAL"`)
	assert.Contains(t, user, "TO 1F-16C-1")
	assert.Contains(t, user, "approximately 1050 words")
}

func TestFeedbackPrompt(t *testing.T) {
	system, user := FeedbackPrompt("policy", []Paragraph{
		{Number: "1.1.1", Text: "First."},
		{Number: "1.1.2", Text: "Second."},
	}, 2)

	assert.Contains(t, system, "professional technical editor")
	assert.Contains(t, user, "reviewing a policy document")
	assert.Contains(t, user, "[1.1.1]: First.\n\n[1.1.2]: Second.")
	assert.Contains(t, user, "Return ONLY valid JSON array with 2 items")
}

func TestCompose(t *testing.T) {
	tmpl, _ := LookupTemplate("technical")
	out := Compose(tmpl, 2, "")

	parsed, err := ParseHTML(out)
	require.NoError(t, err)
	assert.Equal(t, "Technical Documentation", parsed.Title)
	require.Len(t, parsed.Sections, 2)
	assert.Equal(t, "1. System Architecture", parsed.Sections[0].Title)
	assert.Len(t, parsed.Sections[1].Children, 3)
	assert.Len(t, parsed.Order, 12)
	assert.Equal(t, "1.1.1", parsed.Order[0])
	assert.Equal(t, "2.3.2", parsed.Order[11])

	assert.Equal(t, out, Compose(tmpl, 2, ""), "composer output is deterministic")
}

func TestCompose_ManyPagesNamesAnnexes(t *testing.T) {
	tmpl, _ := LookupTemplate("sop")
	out := Compose(tmpl, 7, "Custom")

	assert.True(t, strings.HasPrefix(out, "<h1>Custom</h1>"))
	assert.Contains(t, out, "<h2>6. Records Annex 2</h2>")
	assert.Contains(t, out, "<h2>7. Records Annex 3</h2>")
}

func TestRewrite(t *testing.T) {
	tests := []struct {
		name, text, want, why string
	}{
		{"passive", "The system is designed to help. More text.", "The system will help.", "Simplify passive construction to active voice"},
		{"in order to", "Work in order to finish! Next.", "Work to finish!", "Remove unnecessary words for conciseness"},
		{"utilizes", "It utilizes tools.", "It uses tools.", "Use simpler, clearer language"},
		{"a number of", "There are a number of steps.", "There are several steps.", "Replace wordy phrase with concise alternative"},
		{"intensifiers", "This is very really important.", "This is important.", "Remove unnecessary modifiers for clarity"},
		{"no terminator", "no sentence end here", "no sentence end here", "Remove unnecessary modifiers for clarity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Rewrite("1.0.1", tt.text)
			assert.Equal(t, "1.0.1", s.ParagraphNumber)
			assert.Equal(t, tt.want, s.ImprovedPhrase)
			assert.Equal(t, tt.why, s.Justification)
		})
	}
}

func TestRewrite_TruncatesOnRuneBoundary(t *testing.T) {
	text := strings.Repeat("é", 150)
	s := Rewrite("2.1", text)
	assert.True(t, utf8.ValidString(s.OriginalPhrase))
	assert.Equal(t, 100, utf8.RuneCountInString(s.OriginalPhrase))
	assert.True(t, utf8.ValidString(s.ImprovedPhrase))
}

func TestFallbackSuggestions(t *testing.T) {
	paragraphs := []Paragraph{{"1.1.1", "It utilizes tools."}, {"1.1.2", "Quite short."}}
	assert.Len(t, FallbackSuggestions(paragraphs, 5), 2)
	assert.Len(t, FallbackSuggestions(paragraphs, 1), 1)
	assert.Empty(t, FallbackSuggestions(paragraphs, 0))
}

func TestParseSuggestions(t *testing.T) {
	reply := "Here you go:\n```json\n" + `[
  {"paragraphNumber":"1.1.1","originalPhrase":"a","improvedPhrase":"b","justification":"c"},
  {"paragraphNumber":"1.1.2","originalPhrase":"","improvedPhrase":"x"}
]` + "\n```"
	got, ok := ParseSuggestions(reply)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ImprovedPhrase)

	_, ok = ParseSuggestions("no json here")
	assert.False(t, ok)
	_, ok = ParseSuggestions("[not json]")
	assert.False(t, ok)
}
