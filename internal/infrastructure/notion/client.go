package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skyyMo/skynet-ai/internal/config"
	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/ports"
)

// APIVersion is sent as the Notion-Version header on every request.
const APIVersion = "2022-06-28"

const (
	blockPageSize = 100
	maxErrorBody  = 500
)

// Client reads meeting transcripts from a Notion database.
type Client struct {
	baseURL    string
	token      string
	databaseID string
	httpClient *http.Client
}

var _ ports.DocumentSource = (*Client)(nil)

// NewClient builds a client from source configuration.
func NewClient(cfg config.SourceConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		databaseID: cfg.DatabaseID,
		httpClient: httpClient,
	}
}

// Name identifies the strategy inside the source registry.
func (c *Client) Name() string {
	return "notion"
}

type richText struct {
	PlainText string  `json:"plain_text"`
	Href      *string `json:"href"`
}

type property struct {
	Type  string     `json:"type"`
	Title []richText `json:"title"`
}

type page struct {
	ID          string              `json:"id"`
	URL         string              `json:"url"`
	CreatedTime time.Time           `json:"created_time"`
	Properties  map[string]property `json:"properties"`
}

type queryRequest struct {
	Sorts    []querySort `json:"sorts"`
	PageSize int         `json:"page_size"`
}

type querySort struct {
	Timestamp string `json:"timestamp"`
	Direction string `json:"direction"`
}

type queryResponse struct {
	Results []page `json:"results"`
}

type block struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	// Every text-bearing block type nests its rich_text under a key named after the type.
	Raw map[string]json.RawMessage `json:"-"`
}

type blockContent struct {
	RichText []richText `json:"rich_text"`
}

type childrenResponse struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor *string           `json:"next_cursor"`
}

// ListRecent returns the newest pages of the database, newest first.
func (c *Client) ListRecent(ctx context.Context, pageSize int) ([]domain.Document, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if c.databaseID == "" {
		return nil, fmt.Errorf("%w: notion database id is empty", domain.ErrConfiguration)
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	body, err := json.Marshal(queryRequest{
		Sorts:    []querySort{{Timestamp: "created_time", Direction: "descending"}},
		PageSize: pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	var resp queryResponse
	endpoint := fmt.Sprintf("%s/databases/%s/query", c.baseURL, url.PathEscape(c.databaseID))
	if err := c.do(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}

	docs := make([]domain.Document, 0, len(resp.Results))
	for _, p := range resp.Results {
		docs = append(docs, p.toDocument())
	}
	return docs, nil
}

// GetDocument returns page metadata without its body.
func (c *Client) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	if err := c.check(); err != nil {
		return domain.Document{}, err
	}

	var p page
	endpoint := fmt.Sprintf("%s/pages/%s", c.baseURL, url.PathEscape(id))
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &p); err != nil {
		return domain.Document{}, err
	}
	return p.toDocument(), nil
}

// FetchBlocks lists the top-level blocks of a page, following pagination.
func (c *Client) FetchBlocks(ctx context.Context, id string) ([]domain.Block, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	var blocks []domain.Block
	cursor := ""
	for {
		q := url.Values{}
		q.Set("page_size", fmt.Sprint(blockPageSize))
		if cursor != "" {
			q.Set("start_cursor", cursor)
		}
		endpoint := fmt.Sprintf("%s/blocks/%s/children?%s", c.baseURL, url.PathEscape(id), q.Encode())

		var resp childrenResponse
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return nil, err
		}
		for _, raw := range resp.Results {
			b, err := decodeBlock(raw)
			if err != nil {
				return nil, fmt.Errorf("decode block: %w", err)
			}
			blocks = append(blocks, b)
		}

		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return blocks, nil
		}
		cursor = *resp.NextCursor
	}
}

func decodeBlock(raw json.RawMessage) (domain.Block, error) {
	var b block
	if err := json.Unmarshal(raw, &b); err != nil {
		return domain.Block{}, err
	}
	if err := json.Unmarshal(raw, &b.Raw); err != nil {
		return domain.Block{}, err
	}

	out := domain.Block{ID: b.ID, Type: b.Type}
	content, ok := b.Raw[b.Type]
	if !ok {
		return out, nil
	}
	var bc blockContent
	// Non-text blocks (images, dividers) carry other shapes; they simply yield no runs.
	if err := json.Unmarshal(content, &bc); err != nil {
		return out, nil
	}
	out.Runs = toRuns(bc.RichText)
	return out, nil
}

func toRuns(rt []richText) []domain.TextRun {
	runs := make([]domain.TextRun, 0, len(rt))
	for _, r := range rt {
		run := domain.TextRun{PlainText: r.PlainText}
		if r.Href != nil {
			run.Href = *r.Href
		}
		runs = append(runs, run)
	}
	return runs
}

func (p page) toDocument() domain.Document {
	doc := domain.Document{ID: p.ID, URL: p.URL, CreatedAt: p.CreatedTime.UTC()}
	for _, prop := range p.Properties {
		if prop.Type != "title" {
			continue
		}
		var b strings.Builder
		for _, r := range prop.Title {
			b.WriteString(r.PlainText)
		}
		doc.Title = strings.TrimSpace(b.String())
		break
	}
	return doc
}

func (c *Client) check() error {
	if c == nil || c.token == "" || c.baseURL == "" {
		return fmt.Errorf("%w: notion client misconfigured", domain.ErrConfiguration)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: notion %s: %v", domain.ErrTransientExternal, method, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: notion %s", domain.ErrNotFound, endpoint)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: notion rejected token: status %d: %s", domain.ErrConfiguration, resp.StatusCode, strings.TrimSpace(string(msg)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: notion status %d: %s", domain.ErrTransientExternal, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode notion response: %v", domain.ErrTransientExternal, err)
	}
	return nil
}
