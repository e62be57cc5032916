package ai

import (
	"fmt"
	"html"
	"strings"
)

const (
	subsectionsPerPage   = 3
	paragraphsPerSection = 2
)

var sentenceBank = []string{
	"The %s process is designed to give every reviewer a consistent view of the current requirements.",
	"Personnel must coordinate with the office of primary responsibility in order to confirm that changes are recorded.",
	"The organization utilizes a layered review so that errors are identified before publication.",
	"A number of supporting references are listed at the end of each chapter for additional guidance.",
	"Supervisors are very careful to document each decision and the rationale behind it.",
	"Each step of the %s workflow is tracked so that the status of a document is always known.",
	"Reviewers should report discrepancies to the coordinator within the suspense date.",
	"It is really important that outdated material is removed before the next revision cycle.",
	"The approving official verifies that the content meets command standards and legal requirements.",
	"Training records are retained for quite a long period to support later inspections.",
}

// Compose renders deterministic HTML for t without calling a model. One page
// is one h2 section with three h3 subsections of two paragraphs each.
func Compose(t Template, pages int, title string) string {
	if title == "" {
		title = t.Heading
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(title))
	if t.Key == "af-manual" {
		b.WriteString("<div class=\"header-info\">TO 00-5-1</div>\n")
	}

	n := 0
	for page := 0; page < pages; page++ {
		fmt.Fprintf(&b, "<h2>%d. %s</h2>\n", page+1, html.EscapeString(t.sectionTitle(page)))
		for sub := 0; sub < subsectionsPerPage; sub++ {
			name := t.Subsections[sub%len(t.Subsections)]
			fmt.Fprintf(&b, "<h3>%d.%d %s</h3>\n", page+1, sub+1, html.EscapeString(name))
			for p := 0; p < paragraphsPerSection; p++ {
				b.WriteString("<p>")
				b.WriteString(html.EscapeString(paragraph(t, n)))
				b.WriteString("</p>\n")
				n++
			}
		}
	}
	return b.String()
}

// paragraph builds the n-th paragraph from four consecutive bank sentences.
func paragraph(t Template, n int) string {
	subject := strings.ToLower(t.Heading)
	parts := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		s := sentenceBank[(n+i)%len(sentenceBank)]
		if strings.Contains(s, "%s") {
			s = fmt.Sprintf(s, subject)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}
