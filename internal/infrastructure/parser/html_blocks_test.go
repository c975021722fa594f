package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/skyyMo/skynet-ai/internal/domain"
)

const sampleExport = `<!DOCTYPE html>
<html>
<head>
  <title>Weekly   product sync</title>
  <meta name="created" content="2026-03-02T15:04:05+02:00">
</head>
<body>
  <h1>Agenda</h1>
  <p>We agreed to add a CSV export.
     Recording: <a href="https://zoom.us/rec/share/abc">link</a>.</p>
  <div><p>   </p></div>
  <h2>Risks</h2>
  <ul><li>Not a block</li></ul>
  <h3>Owner</h3>
  <p>Dana</p>
</body>
</html>`

func TestParseTranscript(t *testing.T) {
	t.Parallel()

	tr, err := ParseTranscript(strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("ParseTranscript error: %v", err)
	}

	if tr.Title != "Weekly product sync" {
		t.Fatalf("unexpected title: %q", tr.Title)
	}
	want := time.Date(2026, 3, 2, 13, 4, 5, 0, time.UTC)
	if !tr.CreatedAt.Equal(want) {
		t.Fatalf("unexpected created: %s", tr.CreatedAt)
	}

	types := make([]string, 0, len(tr.Blocks))
	for _, b := range tr.Blocks {
		types = append(types, b.Type)
	}
	wantTypes := []string{domain.BlockHeading1, domain.BlockParagraph, domain.BlockHeading2, domain.BlockHeading3, domain.BlockParagraph}
	if strings.Join(types, ",") != strings.Join(wantTypes, ",") {
		t.Fatalf("unexpected block types: %v", types)
	}

	para := tr.Blocks[1]
	if len(para.Runs) != 3 {
		t.Fatalf("expected 3 runs, got %d: %+v", len(para.Runs), para.Runs)
	}
	if para.Runs[0].PlainText != "We agreed to add a CSV export. Recording: " {
		t.Fatalf("unexpected first run: %q", para.Runs[0].PlainText)
	}
	if para.Runs[1].Href != "https://zoom.us/rec/share/abc" || para.Runs[1].PlainText != "link" {
		t.Fatalf("unexpected link run: %+v", para.Runs[1])
	}
	if tr.Blocks[0].ID != "b1" || tr.Blocks[4].ID != "b5" {
		t.Fatalf("unexpected block ids: %s, %s", tr.Blocks[0].ID, tr.Blocks[4].ID)
	}
}

func TestParseTranscriptTitleFallsBackToHeading(t *testing.T) {
	t.Parallel()

	tr, err := ParseTranscript(strings.NewReader(`<html><body><h1> Retro </h1><p>notes</p></body></html>`))
	if err != nil {
		t.Fatalf("ParseTranscript error: %v", err)
	}
	if tr.Title != "Retro" {
		t.Fatalf("unexpected title: %q", tr.Title)
	}
	if !tr.CreatedAt.IsZero() {
		t.Fatalf("expected zero created time, got %s", tr.CreatedAt)
	}
}
