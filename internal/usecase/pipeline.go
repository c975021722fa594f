package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skyyMo/skynet-ai/internal/content"
	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/ports"
)

// Pass stages reported in PassSummary.Errors.
const (
	StageFetch   = "fetch"
	StageExtract = "extract"
	StageStore   = "store"
	StageLedger  = "ledger"
)

// PageSizes bounds how many documents each entry point pulls from the source.
type PageSizes struct {
	Scheduled int
	OnDemand  int
	Preview   int
}

// DefaultPageSizes are used for any zero field of PipelineDeps.PageSizes.
var DefaultPageSizes = PageSizes{Scheduled: 10, OnDemand: 20, Preview: 50}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.DocumentSource
	Ledger     ports.Ledger
	Extractor  ports.StoryExtractor
	Notifier   ports.Notifier
	Repository ports.StoryRepository
	WebhookURL string
	PageSizes  PageSizes
	RunState   *RunState
	Clock      func() time.Time
	Logger     *slog.Logger
}

// Pipeline implements the transcript-to-stories workflow. Documents are handled one at a
// time; a failing document is recorded in the summary and never aborts the pass.
type Pipeline struct {
	source     ports.DocumentSource
	ledger     ports.Ledger
	extractor  ports.StoryExtractor
	notifier   ports.Notifier
	repository ports.StoryRepository
	webhookURL string
	pageSizes  PageSizes
	state      *RunState
	now        func() time.Time
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	sizes := deps.PageSizes
	if sizes.Scheduled <= 0 {
		sizes.Scheduled = DefaultPageSizes.Scheduled
	}
	if sizes.OnDemand <= 0 {
		sizes.OnDemand = DefaultPageSizes.OnDemand
	}
	if sizes.Preview <= 0 {
		sizes.Preview = DefaultPageSizes.Preview
	}
	state := deps.RunState
	if state == nil {
		state = NewRunState()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Pipeline{
		source:     deps.Source,
		ledger:     deps.Ledger,
		extractor:  deps.Extractor,
		notifier:   deps.Notifier,
		repository: deps.Repository,
		webhookURL: deps.WebhookURL,
		pageSizes:  sizes,
		state:      state,
		now:        now,
		logger:     logger.With("component", "pipeline"),
	}
}

// RunState exposes the pass guard shared with the scheduler and HTTP status endpoint.
func (p *Pipeline) RunState() *RunState {
	return p.state
}

// RunScheduled is the periodic pass over the newest documents.
func (p *Pipeline) RunScheduled(ctx context.Context) (domain.PassSummary, error) {
	return p.runPass(ctx, domain.TriggerScheduled, p.pageSizes.Scheduled)
}

// RunOnDemand is an operator-triggered pass with a larger page.
func (p *Pipeline) RunOnDemand(ctx context.Context) (domain.PassSummary, error) {
	return p.runPass(ctx, domain.TriggerOnDemand, p.pageSizes.OnDemand)
}

// ProcessDocument runs a single document through the pipeline. Ledger eligibility
// still applies, so an already processed document is reported as skipped.
func (p *Pipeline) ProcessDocument(ctx context.Context, id string) (summary domain.PassSummary, err error) {
	if err = p.checkConfigured(); err != nil {
		return summary, err
	}
	if summary, err = p.begin(domain.TriggerDocument); err != nil {
		return summary, err
	}
	defer p.finish(&summary)

	doc, err := p.source.GetDocument(ctx, id)
	if err != nil {
		return summary, fmt.Errorf("get document %s: %w", id, err)
	}
	summary.Fetched = 1

	if !p.ledger.IsEligible(doc) {
		summary.Skipped++
		p.logger.Info("document not eligible", "document_id", id)
		return summary, nil
	}
	summary.Eligible++
	p.processDocument(ctx, doc, &summary)
	return summary, nil
}

// Preview reports what a pass would do with the newest documents without calling the
// extraction backend or touching the ledger.
func (p *Pipeline) Preview(ctx context.Context) ([]domain.DocumentPreview, error) {
	if p.source == nil || p.ledger == nil {
		return nil, fmt.Errorf("%w: document source and ledger are required", domain.ErrConfiguration)
	}

	docs, err := p.source.ListRecent(ctx, p.pageSizes.Preview)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	previews := make([]domain.DocumentPreview, 0, len(docs))
	for _, doc := range docs {
		preview := domain.DocumentPreview{
			ID:        doc.ID,
			Title:     doc.Title,
			CreatedAt: doc.CreatedAt,
			Eligible:  p.ledger.IsEligible(doc),
		}
		blocks, err := p.source.FetchBlocks(ctx, doc.ID)
		if err != nil {
			preview.Error = err.Error()
			previews = append(previews, preview)
			continue
		}
		doc.Blocks = blocks
		extracted := content.Extract(doc)
		preview.WordCount = extracted.WordCount
		preview.Sufficient = extracted.Sufficient()
		preview.ShareLink = extracted.ShareLink
		previews = append(previews, preview)
	}
	return previews, nil
}

func (p *Pipeline) runPass(ctx context.Context, trigger domain.Trigger, pageSize int) (summary domain.PassSummary, err error) {
	if err = p.checkConfigured(); err != nil {
		return summary, err
	}
	if summary, err = p.begin(trigger); err != nil {
		return summary, err
	}
	defer p.finish(&summary)

	docs, err := p.source.ListRecent(ctx, pageSize)
	if err != nil {
		return summary, fmt.Errorf("list documents: %w", err)
	}
	summary.Fetched = len(docs)
	p.logger.Info("pass started", "trigger", trigger, "documents", len(docs))

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if !p.ledger.IsEligible(doc) {
			summary.Skipped++
			continue
		}
		summary.Eligible++
		p.processDocument(ctx, doc, &summary)
	}
	return summary, nil
}

func (p *Pipeline) checkConfigured() error {
	switch {
	case p.source == nil:
		return fmt.Errorf("%w: no document source configured", domain.ErrConfiguration)
	case p.extractor == nil:
		return fmt.Errorf("%w: no extraction backend configured", domain.ErrConfiguration)
	case p.ledger == nil:
		return fmt.Errorf("%w: no processing ledger configured", domain.ErrConfiguration)
	}
	return nil
}

func (p *Pipeline) begin(trigger domain.Trigger) (domain.PassSummary, error) {
	started := p.now().UTC()
	if err := p.state.TryAcquire(trigger, started); err != nil {
		p.logger.Warn("pass rejected", "trigger", trigger, "error", err)
		return domain.PassSummary{Trigger: trigger}, err
	}
	return domain.PassSummary{Trigger: trigger, StartedAt: started}, nil
}

func (p *Pipeline) finish(summary *domain.PassSummary) {
	summary.FinishedAt = p.now().UTC()
	p.state.Release(*summary)
	p.logger.Info("pass finished",
		"trigger", summary.Trigger,
		"fetched", summary.Fetched,
		"eligible", summary.Eligible,
		"skipped", summary.Skipped,
		"insufficient", summary.Insufficient,
		"processed", summary.Processed,
		"stories", summary.StoriesExtracted,
		"notified", summary.Notified,
		"notify_failed", summary.NotifyFailed,
		"failed", summary.Failed)
}

// processDocument runs one eligible document to completion. Malformed model output still
// marks the document; fetch and transient failures leave it for the next pass.
func (p *Pipeline) processDocument(ctx context.Context, doc domain.Document, summary *domain.PassSummary) {
	log := p.logger.With("document_id", doc.ID)

	blocks, err := p.source.FetchBlocks(ctx, doc.ID)
	if err != nil {
		log.Warn("fetch blocks failed", "error", err)
		summary.RecordError(doc.ID, StageFetch, err)
		return
	}
	doc.Blocks = blocks

	extracted := content.Extract(doc)
	if !extracted.Sufficient() {
		summary.Insufficient++
		log.Debug("document below content threshold", "words", extracted.WordCount)
		return
	}
	summary.Analyzed++

	stories, err := p.extractor.Extract(ctx, ports.ExtractionInput{
		DocumentID: doc.ID,
		Title:      doc.Title,
		Text:       extracted.Text,
	})
	switch {
	case errors.Is(err, domain.ErrMalformedModelOutput):
		summary.RecordError(doc.ID, StageExtract, err)
		stories = nil
	case err != nil:
		log.Warn("extraction failed, document left for next pass", "error", err)
		summary.RecordError(doc.ID, StageExtract, err)
		return
	}

	if len(stories) > 0 {
		p.store(ctx, stories, summary)
		p.notify(ctx, stories, summary)
		summary.StoriesExtracted += len(stories)
		summary.Stories = append(summary.Stories, stories...)
	}

	if err := p.ledger.MarkProcessed(doc.ID); err != nil {
		summary.RecordError(doc.ID, StageLedger, err)
		return
	}
	summary.Processed++
	log.Info("document processed", "stories", len(stories), "share_link", extracted.ShareLink)
}

func (p *Pipeline) store(ctx context.Context, stories []domain.Story, summary *domain.PassSummary) {
	if p.repository == nil {
		return
	}
	if err := p.repository.SaveStories(ctx, stories); err != nil {
		p.logger.Error("store stories failed", "document_id", stories[0].SourceDocumentID, "error", err)
		summary.RecordError(stories[0].SourceDocumentID, StageStore, err)
	}
}

func (p *Pipeline) notify(ctx context.Context, stories []domain.Story, summary *domain.PassSummary) {
	if p.notifier == nil || p.webhookURL == "" {
		p.logger.Warn("no chat webhook configured, stories not delivered", "count", len(stories))
		return
	}

	ptrs := make([]*domain.Story, len(stories))
	for i := range stories {
		ptrs[i] = &stories[i]
	}

	results := p.notifier.NotifyAll(ctx, ptrs, p.webhookURL)
	for i, result := range results {
		if result.Success {
			summary.Notified++
		} else {
			summary.NotifyFailed++
		}
		if p.repository == nil || i >= len(stories) {
			continue
		}
		if err := p.repository.UpdateNotification(ctx, stories[i].ID, result); err != nil {
			p.logger.Warn("store notification status failed", "story_id", stories[i].ID, "error", err)
		}
	}
}
