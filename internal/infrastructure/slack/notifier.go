package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/pacing"
	"github.com/skyyMo/skynet-ai/internal/ports"
)

// DefaultWebhookPrefix is the only URL shape incoming webhooks are issued under.
const DefaultWebhookPrefix = "https://hooks.slack.com/services/"

const maxErrorBody = 300

// Notifier posts one Block Kit message per story to an incoming webhook.
type Notifier struct {
	prefix string
	pacer  ports.Pacer
	client *http.Client
	now    func() time.Time
	logger *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// Option customizes a Notifier.
type Option func(*Notifier)

// WithPrefix overrides the accepted webhook URL prefix.
func WithPrefix(prefix string) Option {
	return func(n *Notifier) { n.prefix = prefix }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) { n.client = client }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// NewNotifier builds a notifier; pacer spaces consecutive posts in NotifyAll.
func NewNotifier(pacer ports.Pacer, logger *slog.Logger, opts ...Option) *Notifier {
	if pacer == nil {
		pacer = pacing.None{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := &Notifier{
		prefix: DefaultWebhookPrefix,
		pacer:  pacer,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ValidateWebhookURL rejects URLs outside the webhook prefix before any request is made.
func (n *Notifier) ValidateWebhookURL(webhookURL string) error {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return fmt.Errorf("%w: webhook url is empty", domain.ErrValidation)
	}
	if !strings.HasPrefix(webhookURL, n.prefix) || len(webhookURL) == len(n.prefix) {
		return fmt.Errorf("%w: webhook url must start with %s", domain.ErrValidation, n.prefix)
	}
	return nil
}

// NotifyAll delivers stories strictly in order. Every post takes a pacer token, so
// consecutive posts are at least one pacing interval apart.
// A failed delivery never stops the remaining ones.
func (n *Notifier) NotifyAll(ctx context.Context, stories []*domain.Story, webhookURL string) []domain.NotificationResult {
	results := make([]domain.NotificationResult, 0, len(stories))
	for _, story := range stories {
		if err := n.pacer.Wait(ctx); err != nil {
			result := domain.NotificationResult{ErrorDetail: fmt.Sprintf("delivery cancelled: %v", err), Timestamp: n.now().UTC()}
			story.NotificationStatus = &result
			results = append(results, result)
			continue
		}
		results = append(results, n.Notify(ctx, story, webhookURL))
	}
	return results
}

// Notify posts one story and attaches the outcome to story.NotificationStatus.
func (n *Notifier) Notify(ctx context.Context, story *domain.Story, webhookURL string) domain.NotificationResult {
	result := n.post(ctx, *story, webhookURL)
	story.NotificationStatus = &result

	if result.Success {
		n.logger.Info("story notified", "story_id", story.ID, "latency_ms", result.LatencyMs)
	} else {
		n.logger.Warn("story notification failed", "story_id", story.ID, "status", result.StatusCode, "error", result.ErrorDetail)
	}
	return result
}

func (n *Notifier) post(ctx context.Context, story domain.Story, webhookURL string) domain.NotificationResult {
	if err := n.ValidateWebhookURL(webhookURL); err != nil {
		return domain.NotificationResult{ErrorDetail: err.Error(), Timestamp: n.now().UTC()}
	}

	body, err := json.Marshal(BuildMessage(story))
	if err != nil {
		return domain.NotificationResult{ErrorDetail: fmt.Sprintf("marshal message: %v", err), Timestamp: n.now().UTC()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return domain.NotificationResult{ErrorDetail: fmt.Sprintf("new request: %v", err), Timestamp: n.now().UTC()}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := n.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return domain.NotificationResult{
			ErrorDetail: fmt.Sprintf("%v: %v", domain.ErrTransientExternal, err),
			Timestamp:   n.now().UTC(),
			LatencyMs:   latency,
		}
	}
	defer resp.Body.Close()

	result := domain.NotificationResult{
		StatusCode: resp.StatusCode,
		Timestamp:  n.now().UTC(),
		LatencyMs:  latency,
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		result.Success = true
		return result
	}

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(bytes.ToValidUTF8(payload, nil))))
	if resp.StatusCode == http.StatusNotFound {
		detail += " (webhook endpoint invalid or deleted)"
	}
	result.ErrorDetail = detail
	return result
}
