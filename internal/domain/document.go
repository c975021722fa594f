package domain

import "time"

// Block types recognised by the content extractor.
const (
	BlockParagraph = "paragraph"
	BlockHeading1  = "heading_1"
	BlockHeading2  = "heading_2"
	BlockHeading3  = "heading_3"
)

// Document is a transcript page owned by the external document store.
type Document struct {
	ID        string
	Title     string
	URL       string
	CreatedAt time.Time
	Blocks    []Block
}

// Block is one node of a document body.
type Block struct {
	ID   string
	Type string
	Runs []TextRun
}

// TextRun is a span of plain text inside a block.
type TextRun struct {
	PlainText string
	Href      string
}

// ExtractedText is the flattened body of a document. It is recomputed per run and never stored.
type ExtractedText struct {
	DocumentID    string
	Text          string
	WordCount     int
	EmbeddedLinks []string
	ShareLink     string
}

// MinWords is the content-sufficiency threshold; documents must have strictly more words.
const MinWords = 50

// Sufficient reports whether the text is long enough to be worth a model call.
func (e ExtractedText) Sufficient() bool {
	return e.WordCount > MinWords
}

// LedgerState is the persisted form of the processing ledger.
type LedgerState struct {
	ProcessedIDs []string  `json:"processedIds"`
	LastUpdated  time.Time `json:"lastUpdated"`
	CutoffDate   time.Time `json:"cutoffDate"`
}

// DocumentPreview reports how the pipeline would treat a document without running extraction.
type DocumentPreview struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"createdAt"`
	Eligible   bool      `json:"eligible"`
	WordCount  int       `json:"wordCount"`
	Sufficient bool      `json:"sufficient"`
	ShareLink  string    `json:"shareLink,omitempty"`
	Error      string    `json:"error,omitempty"`
}
