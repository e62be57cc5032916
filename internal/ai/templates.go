package ai

import (
	"fmt"
	"slices"
	"strings"
)

const (
	MinPages     = 1
	MaxPages     = 20
	MaxFeedbacks = 50

	wordsPerPage = 350
)

// Template describes one kind of generated document.
type Template struct {
	Key         string
	Description string
	Heading     string
	Sections    []string
	Subsections []string
	Guidance    []string
}

var templates = map[string]Template{
	"technical": {
		Key:         "technical",
		Description: "technical documentation for a software system",
		Heading:     "Technical Documentation",
		Sections:    []string{"System Architecture", "Implementation", "Configuration", "Operations", "Maintenance"},
		Subsections: []string{"Overview", "Components", "Design Patterns"},
		Guidance: []string{
			"Include technical details, system requirements, architecture descriptions",
			"Add some lists and tables where appropriate",
		},
	},
	"policy": {
		Key:         "policy",
		Description: "organizational policy document",
		Heading:     "Policy Document",
		Sections:    []string{"Purpose and Scope", "Responsibilities", "Procedures", "Enforcement", "Review"},
		Subsections: []string{"Objectives", "Applicability", "Compliance"},
		Guidance: []string{
			"Include compliance requirements, roles, procedures",
			"Add enforcement and review sections",
		},
	},
	"training": {
		Key:         "training",
		Description: "training manual for staff education",
		Heading:     "Training Manual",
		Sections:    []string{"Introduction", "Core Concepts", "Practical Exercises", "Assessment", "Reference"},
		Subsections: []string{"Learning Objectives", "Prerequisites", "Scenarios"},
		Guidance: []string{
			"Include learning objectives, exercises, assessments",
			"Add examples and practical scenarios",
		},
	},
	"sop": {
		Key:         "sop",
		Description: "standard operating procedures",
		Heading:     "Standard Operating Procedure",
		Sections:    []string{"Preparation", "Execution", "Verification", "Reporting", "Records"},
		Subsections: []string{"Initial Setup", "Safety Checks", "Quality Checkpoints"},
		Guidance: []string{
			"Include step-by-step instructions, safety requirements, quality checkpoints",
			`Add warnings and cautions in <div class="warning"> or <div class="caution">`,
		},
	},
	"af-manual": {
		Key:         "af-manual",
		Description: "Air Force technical manual",
		Heading:     "AIR FORCE TECHNICAL MANUAL",
		Sections:    []string{"Introduction", "Normal Procedures", "Emergency Procedures", "Inspection", "Supplemental Data"},
		Subsections: []string{"General Information", "System Description", "Limitations"},
		Guidance: []string{
			`Add header info like "TO 1F-16C-1" in <div class="header-info">`,
			"Include warnings, cautions, and notes in proper <div> tags",
			"Use military/aviation terminology",
		},
	},
}

// TemplateKeys lists the supported template keys in a stable order.
func TemplateKeys() []string {
	keys := make([]string, 0, len(templates))
	for k := range templates {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func LookupTemplate(key string) (Template, bool) {
	t, ok := templates[strings.ToLower(strings.TrimSpace(key))]
	return t, ok
}

func (t Template) sectionTitle(i int) string {
	if i < len(t.Sections) {
		return t.Sections[i]
	}
	return fmt.Sprintf("%s Annex %d", t.Sections[len(t.Sections)-1], i-len(t.Sections)+2)
}

// DocumentPrompt returns the system and user prompts for generating a document.
func DocumentPrompt(t Template, pages, feedbacks int) (string, string) {
	system := fmt.Sprintf(`You are a professional technical writer who generates VALID HTML documents.
CRITICAL REQUIREMENTS:
1. Generate proper HTML with ALL text wrapped in appropriate tags
2. NEVER leave bare text - always use <p> tags for paragraphs
3. Create exactly %d pages of %s
4. Include content suitable for %d editorial improvements
5. Use proper HTML structure: <h1>, <h2>, <h3>, <p>, <ul>, <li>, <table>, etc.
6. Each paragraph MUST be wrapped in <p></p> tags`, pages, t.Description, feedbacks)

	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d pages of %s in HTML format. Requirements:\n", pages, t.Description)
	fmt.Fprintf(&b, "- IMPORTANT: You are creating a %s document with exactly %d pages\n", strings.ToUpper(t.Key), pages)
	fmt.Fprintf(&b, "- This document will have %d feedback items for review\n", feedbacks)
	fmt.Fprintf(&b, "- Use <h1> for the main title %q\n", t.Heading)
	fmt.Fprintf(&b, "- Use <h2> for main sections (e.g., \"1. %s\", \"2. %s\", \"3. %s\")\n", t.sectionTitle(0), t.sectionTitle(1), t.sectionTitle(2))
	fmt.Fprintf(&b, "- Use <h3> for subsections (e.g., \"1.1 %s\", \"1.2 %s\")\n", t.Subsections[0], t.Subsections[1])
	b.WriteString("- WRAP ALL paragraph text in <p> tags - no bare text\n")
	b.WriteString("- Each subsection should have 2-3 meaningful paragraphs with substantive content\n")
	for _, g := range t.Guidance {
		fmt.Fprintf(&b, "- %s\n", g)
	}
	b.WriteString("- Each page should have approximately 300-400 words\n")
	fmt.Fprintf(&b, "- Total content should be approximately %d words", pages*wordsPerPage)
	return system, b.String()
}

const feedbackSystemPrompt = `You are a professional technical editor. Your job is to analyze document content and provide substantive improvements. NEVER use placeholders like "(improved)" - always provide complete, meaningful rephrasings.`

// Paragraph is one numbered paragraph of a parsed document.
type Paragraph struct {
	Number string
	Text   string
}

// FeedbackPrompt asks for count suggestions over the given paragraphs.
func FeedbackPrompt(templateKey string, paragraphs []Paragraph, count int) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "You are reviewing a %s document. Analyze these paragraphs and provide %d MEANINGFUL feedback items that would significantly improve the document.\n\n", templateKey, count)
	b.WriteString("Paragraphs to analyze:\n")
	for i, p := range paragraphs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]: %s", p.Number, p.Text)
	}
	fmt.Fprintf(&b, `

Generate exactly %d feedback items in JSON format. For each feedback:
1. Find an ACTUAL sentence or phrase from the paragraphs above that could be improved
2. Write a COMPLETELY NEW version - DO NOT just add "(improved)" or make tiny changes
3. Explain WHY your version is better

Example:
{
  "paragraphNumber": "1.1.1",
  "originalPhrase": "The system utilizes a complex array of interconnected modules to facilitate data processing",
  "improvedPhrase": "The system uses interconnected modules for data processing",
  "justification": "Removed unnecessary jargon and redundant words to improve clarity"
}

Return ONLY valid JSON array with %d items:

Requirements:
- Select MEANINGFUL text segments (full sentences or substantial phrases)
- Provide COMPLETE REPHRASINGS, not just minor word changes
- Focus on: clarity, conciseness, active voice, technical accuracy, professional tone
- Original phrases must be EXACT text from the paragraphs`, count, count)
	return feedbackSystemPrompt, b.String()
}
