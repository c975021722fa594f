// Package content flattens document blocks into plain text.
package content

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/skyyMo/skynet-ai/internal/domain"
)

var linkExpr = regexp.MustCompile(`https?://[^\s<>()\[\]"']+`)

// shareHosts are hosts whose links point at the recording or meeting a transcript came from.
var shareHosts = []string{
	"zoom.us",
	"meet.google.com",
	"teams.microsoft.com",
	"fathom.video",
	"otter.ai",
	"fireflies.ai",
	"notion.so",
}

// Extract concatenates paragraph and heading text, one line per block.
func Extract(doc domain.Document) domain.ExtractedText {
	text := Flatten(doc.Blocks)
	links := Links(text)
	return domain.ExtractedText{
		DocumentID:    doc.ID,
		Text:          text,
		WordCount:     len(strings.Fields(text)),
		EmbeddedLinks: links,
		ShareLink:     ShareLink(links),
	}
}

// Flatten renders supported blocks as newline-terminated lines and skips the rest.
func Flatten(blocks []domain.Block) string {
	var b strings.Builder
	for _, block := range blocks {
		if !supported(block.Type) {
			continue
		}
		for _, run := range block.Runs {
			b.WriteString(run.PlainText)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func supported(blockType string) bool {
	switch blockType {
	case domain.BlockParagraph, domain.BlockHeading1, domain.BlockHeading2, domain.BlockHeading3:
		return true
	default:
		return false
	}
}

// Links returns every distinct URL in text in order of appearance.
func Links(text string) []string {
	matches := linkExpr.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;:!?")
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		links = append(links, m)
	}
	return links
}

// ShareLink picks the recording/meeting link, falling back to the first link.
func ShareLink(links []string) string {
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		host := strings.ToLower(u.Hostname())
		for _, h := range shareHosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return link
			}
		}
	}
	if len(links) > 0 {
		return links[0]
	}
	return ""
}
