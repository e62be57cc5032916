package ai

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxPhraseRunes = 100

// Suggestion is one editorial change proposed for a paragraph.
type Suggestion struct {
	ParagraphNumber string `json:"paragraphNumber"`
	OriginalPhrase  string `json:"originalPhrase"`
	ImprovedPhrase  string `json:"improvedPhrase"`
	Justification   string `json:"justification"`
}

// ParseSuggestions reads the first JSON array out of a model reply. Entries
// missing either phrase are dropped.
func ParseSuggestions(reply string) ([]Suggestion, bool) {
	raw := ExtractJSONArray(reply)
	if raw == "" {
		return nil, false
	}
	var all []Suggestion
	if err := json.Unmarshal([]byte(raw), &all); err != nil {
		return nil, false
	}
	out := make([]Suggestion, 0, len(all))
	for _, s := range all {
		if strings.TrimSpace(s.OriginalPhrase) == "" || strings.TrimSpace(s.ImprovedPhrase) == "" {
			continue
		}
		out = append(out, s)
	}
	return out, len(out) > 0
}

var (
	sentencePattern    = regexp.MustCompile(`[^.!?]+[.!?]+`)
	intensifierPattern = regexp.MustCompile(`(?i)\b(very|really|quite|rather)\b`)
	spacePattern       = regexp.MustCompile(`\s+`)
)

type rewrite struct {
	from, to, why string
}

var rewrites = []rewrite{
	{"is designed to", "will", "Simplify passive construction to active voice"},
	{"in order to", "to", "Remove unnecessary words for conciseness"},
	{"utilizes", "uses", "Use simpler, clearer language"},
	{"a number of", "several", "Replace wordy phrase with concise alternative"},
}

// Rewrite applies the first matching plain-language rule to the opening
// sentence of text.
func Rewrite(number, text string) Suggestion {
	target := sentencePattern.FindString(text)
	if target == "" {
		target = text
		if utf8.RuneCountInString(target) > maxPhraseRunes {
			target = string([]rune(target)[:maxPhraseRunes])
		}
	}

	s := Suggestion{ParagraphNumber: number, OriginalPhrase: strings.TrimSpace(target)}
	for _, r := range rewrites {
		if strings.Contains(target, r.from) {
			s.ImprovedPhrase = strings.TrimSpace(strings.Replace(target, r.from, r.to, 1))
			s.Justification = r.why
			return s
		}
	}
	improved := intensifierPattern.ReplaceAllString(target, "")
	s.ImprovedPhrase = strings.TrimSpace(spacePattern.ReplaceAllString(improved, " "))
	s.Justification = "Remove unnecessary modifiers for clarity"
	return s
}

// FallbackSuggestions derives up to count suggestions without a model.
func FallbackSuggestions(paragraphs []Paragraph, count int) []Suggestion {
	n := min(count, len(paragraphs))
	out := make([]Suggestion, 0, n)
	for _, p := range paragraphs[:n] {
		out = append(out, Rewrite(p.Number, p.Text))
	}
	return out
}
