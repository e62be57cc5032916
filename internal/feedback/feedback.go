// Package feedback detects overlapping reviewer comments and folds accepted
// ones into new document versions.
package feedback

import (
	"slices"
	"strings"
	"time"

	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
)

var ErrConflictingChanges = apperr.Coded(apperr.KindConflict, "CONFLICTING_CHANGES",
	"selected feedback items modify the same text")

type Locator struct {
	Page      int    `json:"page"`
	Paragraph string `json:"paragraphNumber"`
	Line      int    `json:"lineNumber"`
}

func LocatorOf(item models.FeedbackItem) Locator {
	return Locator{Page: item.Page, Paragraph: item.ParagraphNumber, Line: item.LineNumber}
}

type Conflict struct {
	A       string  `json:"a"`
	B       string  `json:"b"`
	Locator Locator `json:"locator"`
	Reason  string  `json:"reason"`
}

// ParagraphLookup returns the current text of a numbered paragraph, or "".
type ParagraphLookup func(paragraph string) string

// Overlaps reports whether a and b would rewrite the same stretch of text.
func Overlaps(a, b models.FeedbackItem, paragraphText string) (bool, string) {
	if a.ID == b.ID {
		return false, ""
	}
	if a.Page != b.Page || a.ParagraphNumber != b.ParagraphNumber {
		return false, ""
	}

	if paragraphText != "" {
		as, ae, aok := span(paragraphText, a.ChangeFrom)
		bs, be, bok := span(paragraphText, b.ChangeFrom)
		if aok && bok {
			if as < be && bs < ae {
				return true, "overlapping text"
			}
			return false, ""
		}
	}

	if a.LineNumber != b.LineNumber {
		return false, ""
	}
	if a.ChangeFrom == "" || b.ChangeFrom == "" ||
		strings.Contains(a.ChangeFrom, b.ChangeFrom) || strings.Contains(b.ChangeFrom, a.ChangeFrom) {
		return true, "same line"
	}
	return false, ""
}

// span locates the first occurrence of phrase. An empty phrase covers the whole text.
func span(text, phrase string) (int, int, bool) {
	if phrase == "" {
		return 0, len(text), true
	}
	i := strings.Index(text, phrase)
	if i < 0 {
		return 0, 0, false
	}
	return i, i + len(phrase), true
}

// DetectConflicts compares every pair of open items in slice order.
func DetectConflicts(items []models.FeedbackItem, lookup ParagraphLookup) []Conflict {
	conflicts := []Conflict{}
	for i := 0; i < len(items); i++ {
		if !open(items[i]) {
			continue
		}
		for j := i + 1; j < len(items); j++ {
			if !open(items[j]) {
				continue
			}
			text := ""
			if lookup != nil {
				text = lookup(items[i].ParagraphNumber)
			}
			if ok, reason := Overlaps(items[i], items[j], text); ok {
				conflicts = append(conflicts, Conflict{
					A:       items[i].ID,
					B:       items[j].ID,
					Locator: LocatorOf(items[i]),
					Reason:  reason,
				})
			}
		}
	}
	return conflicts
}

func open(item models.FeedbackItem) bool {
	return item.Status == models.FeedbackPending || item.Status == models.FeedbackAccepted || item.Status == ""
}

// MarkConflicts records each conflict on both items.
func MarkConflicts(items []models.FeedbackItem, conflicts []Conflict) {
	index := make(map[string]int, len(items))
	for i, it := range items {
		index[it.ID] = i
	}
	link := func(from, to string) {
		i, ok := index[from]
		if !ok || slices.Contains(items[i].ConflictsWith, to) {
			return
		}
		items[i].ConflictsWith = append(items[i].ConflictsWith, to)
	}
	for _, c := range conflicts {
		link(c.A, c.B)
		link(c.B, c.A)
	}
}

// Apply rewrites content with each item's ChangeTo, in order, replacing the
// first occurrence of ChangeFrom. Items whose source text is missing are kept
// as not_found changes.
func Apply(content string, items []models.FeedbackItem, appliedBy string, at time.Time) (string, []models.AppliedChange, error) {
	if pairs := conflictingPairs(items); len(pairs) > 0 {
		return "", nil, ErrConflictingChanges.WithDetails(map[string]any{"conflicts": pairs})
	}

	changes := make([]models.AppliedChange, 0, len(items))
	for _, it := range items {
		change := models.AppliedChange{
			ID:           ChangeID(it.ID),
			FeedbackID:   it.ID,
			Page:         it.Page,
			Paragraph:    it.ParagraphNumber,
			Line:         it.LineNumber,
			OriginalText: it.ChangeFrom,
			AppliedText:  it.ChangeTo,
			AppliedBy:    appliedBy,
			AppliedAt:    at,
			Status:       models.ChangeApplied,
		}
		if it.ChangeFrom == "" || !strings.Contains(content, it.ChangeFrom) {
			change.Status = models.ChangeNotFound
		} else {
			content = strings.Replace(content, it.ChangeFrom, it.ChangeTo, 1)
		}
		changes = append(changes, change)
	}
	return content, changes, nil
}

// ChangeID is stable per feedback item so the same item can be diffed across versions.
func ChangeID(feedbackID string) string {
	return "chg-" + feedbackID
}

func conflictingPairs(items []models.FeedbackItem) [][2]string {
	ids := make(map[string]struct{}, len(items))
	for _, it := range items {
		ids[it.ID] = struct{}{}
	}

	pairs := [][2]string{}
	seen := map[[2]string]struct{}{}
	add := func(a, b string) {
		if a > b {
			a, b = b, a
		}
		key := [2]string{a, b}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		pairs = append(pairs, key)
	}

	for _, it := range items {
		for _, other := range it.ConflictsWith {
			if _, ok := ids[other]; ok {
				add(it.ID, other)
			}
		}
	}
	for _, c := range DetectConflicts(items, nil) {
		add(c.A, c.B)
	}
	return pairs
}

type ChangePair struct {
	Before models.AppliedChange `json:"before"`
	After  models.AppliedChange `json:"after"`
}

type VersionDiff struct {
	From     int                    `json:"fromVersion"`
	To       int                    `json:"toVersion"`
	Added    []models.AppliedChange `json:"added"`
	Removed  []models.AppliedChange `json:"removed"`
	Modified []ChangePair           `json:"modified"`
}

// Diff compares the change sets of two versions by change ID.
func Diff(v1, v2 models.Version) VersionDiff {
	d := VersionDiff{
		From:     v1.Number,
		To:       v2.Number,
		Added:    []models.AppliedChange{},
		Removed:  []models.AppliedChange{},
		Modified: []ChangePair{},
	}

	before := make(map[string]models.AppliedChange, len(v1.Changes))
	for _, c := range v1.Changes {
		before[c.ID] = c
	}
	after := make(map[string]struct{}, len(v2.Changes))

	for _, c := range v2.Changes {
		after[c.ID] = struct{}{}
		old, ok := before[c.ID]
		switch {
		case !ok:
			d.Added = append(d.Added, c)
		case old.AppliedText != c.AppliedText:
			d.Modified = append(d.Modified, ChangePair{Before: old, After: c})
		}
	}
	for _, c := range v1.Changes {
		if _, ok := after[c.ID]; !ok {
			d.Removed = append(d.Removed, c)
		}
	}
	return d
}
