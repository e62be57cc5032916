package ai

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/richmond-dms/docflow/internal/db/models"
)

// Parsed is the structure recovered from generated HTML.
type Parsed struct {
	Title    string
	Sections []models.Section
	// Paragraphs maps "section.subsection.paragraph" to text; subsection is 0
	// for paragraphs directly under a section heading.
	Paragraphs map[string]string
	// Order lists paragraph numbers in document order.
	Order []string
}

// ParseHTML walks h1/h2/h3/p in document order.
func ParseHTML(html string) (*Parsed, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	p := &Parsed{Paragraphs: map[string]string{}, Order: []string{}, Sections: []models.Section{}}
	p.Title = strings.TrimSpace(doc.Find("h1").First().Text())

	var (
		section, sub, para int
		cur                *models.Section
		curSub             *models.Section
	)

	doc.Find("h2, h3, p").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		switch goquery.NodeName(s) {
		case "h2":
			section++
			sub, para = 0, 0
			p.Sections = append(p.Sections, models.Section{
				Number: fmt.Sprintf("%d", section),
				Title:  text,
				Level:  2,
			})
			cur = &p.Sections[len(p.Sections)-1]
			curSub = nil
		case "h3":
			if cur == nil {
				section++
				p.Sections = append(p.Sections, models.Section{Number: fmt.Sprintf("%d", section), Level: 2})
				cur = &p.Sections[len(p.Sections)-1]
			}
			sub++
			para = 0
			cur.Children = append(cur.Children, models.Section{
				Number: fmt.Sprintf("%d.%d", section, sub),
				Title:  text,
				Level:  3,
			})
			curSub = &cur.Children[len(cur.Children)-1]
		case "p":
			if text == "" {
				return
			}
			if section == 0 {
				section = 1
				p.Sections = append(p.Sections, models.Section{Number: "1", Level: 2})
				cur = &p.Sections[len(p.Sections)-1]
			}
			para++
			num := fmt.Sprintf("%d.%d.%d", section, sub, para)
			p.Paragraphs[num] = text
			p.Order = append(p.Order, num)
			if curSub != nil {
				curSub.Paragraphs = append(curSub.Paragraphs, num)
			} else {
				cur.Paragraphs = append(cur.Paragraphs, num)
			}
		}
	})
	return p, nil
}

var jsonArray = regexp.MustCompile(`\[[\s\S]*\]`)

// ExtractJSONArray returns the outermost bracketed span of text, or "".
func ExtractJSONArray(text string) string {
	return jsonArray.FindString(text)
}
