package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/skyyMo/skynet-ai/internal/domain"
)

var blockTypes = map[string]string{
	"h1": domain.BlockHeading1,
	"h2": domain.BlockHeading2,
	"h3": domain.BlockHeading3,
	"p":  domain.BlockParagraph,
}

// Transcript is an exported meeting page parsed into blocks.
type Transcript struct {
	Title     string
	CreatedAt time.Time
	Blocks    []domain.Block
}

// ParseTranscript reads an HTML export. Headings and paragraphs become blocks in
// document order; links inside them keep their href on the run.
func ParseTranscript(r io.Reader) (Transcript, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Transcript{}, fmt.Errorf("parse document: %w", err)
	}

	var out Transcript
	out.Title = cleanText(doc.Find("head > title").First().Text())
	if out.Title == "" {
		out.Title = cleanText(doc.Find("h1").First().Text())
	}

	if created, ok := doc.Find(`meta[name="created"]`).First().Attr("content"); ok {
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(created)); err == nil {
			out.CreatedAt = ts.UTC()
		}
	}

	doc.Find("body").Find("h1, h2, h3, p").Each(func(i int, sel *goquery.Selection) {
		runs := extractRuns(sel)
		if len(runs) == 0 {
			return
		}
		out.Blocks = append(out.Blocks, domain.Block{
			ID:   "b" + strconv.Itoa(len(out.Blocks)+1),
			Type: blockTypes[goquery.NodeName(sel)],
			Runs: runs,
		})
	})

	return out, nil
}

func extractRuns(sel *goquery.Selection) []domain.TextRun {
	var runs []domain.TextRun
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) == "a" {
			href, _ := node.Attr("href")
			if text := cleanText(node.Text()); text != "" || href != "" {
				runs = append(runs, domain.TextRun{PlainText: text, Href: href})
			}
			return
		}
		text := node.Text()
		if strings.TrimSpace(text) == "" {
			return
		}
		runs = append(runs, domain.TextRun{PlainText: collapseSpaces(text)})
	})
	return runs
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// collapseSpaces keeps a single leading/trailing space so adjacent runs stay separated.
func collapseSpaces(s string) string {
	inner := cleanText(s)
	if inner == "" {
		return ""
	}
	if s[0] == ' ' || s[0] == '\n' || s[0] == '\t' {
		inner = " " + inner
	}
	if last := s[len(s)-1]; last == ' ' || last == '\n' || last == '\t' {
		inner += " "
	}
	return inner
}
