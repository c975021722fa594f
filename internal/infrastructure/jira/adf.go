package jira

import (
	"strings"

	"github.com/skyyMo/skynet-ai/internal/domain"
)

// Document is an Atlassian Document Format root node.
type Document struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
	Content []Node `json:"content"`
}

// Node is a block or inline ADF node.
type Node struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Marks   []Mark `json:"marks,omitempty"`
	Content []Node `json:"content,omitempty"`
}

// Mark is an inline text decoration.
type Mark struct {
	Type string `json:"type"`
}

// headingMarkers start lines that are rendered bold.
var headingMarkers = []string{"🎯", "📋", "✅", "🔧", "⚠️", "💼", "📝", "📊", "👤", "❗"}

// IsHeadingLine reports whether line starts with a heading marker glyph.
func IsHeadingLine(line string) bool {
	line = strings.TrimSpace(line)
	for _, m := range headingMarkers {
		if strings.HasPrefix(line, m) {
			return true
		}
	}
	return false
}

// ToADF converts plain text into one paragraph per non-blank line. Blank lines are dropped,
// but the document always holds at least one paragraph.
func ToADF(text string) Document {
	doc := Document{Type: "doc", Version: 1}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		node := Node{Type: "text", Text: line}
		if IsHeadingLine(line) {
			node.Marks = []Mark{{Type: "strong"}}
		}
		doc.Content = append(doc.Content, Node{Type: "paragraph", Content: []Node{node}})
	}

	if len(doc.Content) == 0 {
		doc.Content = []Node{{Type: "paragraph"}}
	}
	return doc
}

// BuildDescription lays out a story's narrative fields under marker headings.
func BuildDescription(story domain.Story) string {
	var b strings.Builder
	section := func(heading, body string) {
		body = strings.TrimSpace(body)
		if body == "" {
			return
		}
		b.WriteString(heading)
		b.WriteString("\n")
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	list := func(items []string) string {
		var lines []string
		for _, item := range items {
			if item = strings.TrimSpace(item); item != "" {
				lines = append(lines, "• "+item)
			}
		}
		return strings.Join(lines, "\n")
	}

	section("👤 User Story", story.UserStory)
	section("❗ Problem Statement", story.ProblemStatement)
	section("📝 Description", story.Description)
	section("✅ Acceptance Criteria", list(story.AcceptanceCriteria))
	section("🔧 Technical Requirements", list(story.TechnicalRequirements))
	section("🎯 Business Value", story.BusinessValue)
	section("⚠️ Risks", list(story.Risks))
	section("💼 Discussion Context", story.DiscussionContext)

	meta := []string{}
	if story.Epic != "" {
		meta = append(meta, "Epic: "+story.Epic)
	}
	if story.Effort != "" {
		meta = append(meta, "Effort: "+story.Effort)
	}
	if story.SourceDocumentTitle != "" {
		meta = append(meta, "Source: "+story.SourceDocumentTitle)
	} else if story.SourceDocumentID != "" {
		meta = append(meta, "Source: "+story.SourceDocumentID)
	}
	section("📊 Details", strings.Join(meta, "\n"))

	return strings.TrimSpace(b.String())
}
