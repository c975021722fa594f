package slack

import (
	"fmt"
	"math"
	"strings"

	"github.com/skyyMo/skynet-ai/internal/domain"
)

// Slack caps header text at 150 chars and section text at 3000.
const (
	maxHeaderLen  = 150
	maxSectionLen = 3000
)

// Message is an incoming-webhook payload.
type Message struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks"`
}

// Block is one Block Kit layout block.
type Block struct {
	Type     string `json:"type"`
	Text     *Text  `json:"text,omitempty"`
	Fields   []Text `json:"fields,omitempty"`
	Elements []Text `json:"elements,omitempty"`
}

// Text is a Block Kit text object.
type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// BuildMessage renders a story as header, key fields, narrative sections and a footer.
func BuildMessage(story domain.Story) Message {
	blocks := []Block{
		{Type: "header", Text: &Text{Type: "plain_text", Text: truncate(headerText(story), maxHeaderLen), Emoji: true}},
		{Type: "section", Fields: []Text{
			mrkdwn("*Type:*\n" + orDash(story.Type)),
			mrkdwn("*Priority:*\n" + orDash(story.Priority)),
			mrkdwn("*Effort:*\n" + orDash(story.Effort)),
			mrkdwn("*Epic:*\n" + orDash(story.Epic)),
		}},
	}

	if story.UserStory != "" {
		blocks = append(blocks, section("*User Story*\n"+story.UserStory))
	} else if story.ProblemStatement != "" {
		blocks = append(blocks, section("*Problem*\n"+story.ProblemStatement))
	}
	if story.Description != "" {
		blocks = append(blocks, section("*Description*\n"+story.Description))
	}
	if len(story.AcceptanceCriteria) > 0 {
		blocks = append(blocks, section("*Acceptance Criteria*\n"+bullets(story.AcceptanceCriteria)))
	}
	if len(story.TechnicalRequirements) > 0 {
		blocks = append(blocks, section("*Technical Requirements*\n"+bullets(story.TechnicalRequirements)))
	}
	if story.BusinessValue != "" {
		blocks = append(blocks, section("*Business Value*\n"+story.BusinessValue))
	}
	if len(story.Risks) > 0 {
		blocks = append(blocks, section("*Risks*\n"+bullets(story.Risks)))
	}

	blocks = append(blocks,
		Block{Type: "divider"},
		Block{Type: "context", Elements: []Text{mrkdwn(footer(story))}},
	)

	return Message{
		Text:   fmt.Sprintf("New story: %s", headerText(story)),
		Blocks: blocks,
	}
}

func headerText(story domain.Story) string {
	if t := strings.TrimSpace(story.Title); t != "" {
		return t
	}
	return "Untitled story"
}

func footer(story domain.Story) string {
	source := story.SourceDocumentTitle
	if source == "" {
		source = story.SourceDocumentID
	}
	return fmt.Sprintf("Confidence: %d%% | Source: %s", int(math.Round(story.Confidence*100)), orDash(source))
}

func section(text string) Block {
	t := mrkdwn(truncate(text, maxSectionLen))
	return Block{Type: "section", Text: &t}
}

func mrkdwn(text string) Text {
	return Text{Type: "mrkdwn", Text: text}
}

func bullets(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			lines = append(lines, "• "+item)
		}
	}
	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
