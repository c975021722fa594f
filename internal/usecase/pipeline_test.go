package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/ledger"
	"github.com/skyyMo/skynet-ai/internal/ports"
)

var cutoff = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeSource struct {
	docs      []domain.Document
	blocks    map[string][]domain.Block
	blocksErr map[string]error
	listed    []int
}

func (f *fakeSource) ListRecent(_ context.Context, pageSize int) ([]domain.Document, error) {
	f.listed = append(f.listed, pageSize)
	if len(f.docs) > pageSize {
		return f.docs[:pageSize], nil
	}
	return f.docs, nil
}

func (f *fakeSource) GetDocument(_ context.Context, id string) (domain.Document, error) {
	for _, d := range f.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
}

func (f *fakeSource) FetchBlocks(_ context.Context, id string) ([]domain.Block, error) {
	if err := f.blocksErr[id]; err != nil {
		return nil, err
	}
	return f.blocks[id], nil
}

func (f *fakeSource) add(id string, created time.Time, words int) {
	if f.blocks == nil {
		f.blocks = map[string][]domain.Block{}
	}
	f.docs = append(f.docs, domain.Document{ID: id, Title: "Meeting " + id, CreatedAt: created})
	f.blocks[id] = []domain.Block{
		{Type: domain.BlockHeading1, Runs: []domain.TextRun{{PlainText: "notes"}}},
		{Type: domain.BlockParagraph, Runs: []domain.TextRun{{PlainText: strings.TrimSpace(strings.Repeat("word ", words-1))}}},
	}
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
	count int
}

func (f *fakeExtractor) Extract(_ context.Context, in ports.ExtractionInput) ([]domain.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in.DocumentID)
	if err := f.errs[in.DocumentID]; err != nil {
		return nil, err
	}
	n := f.count
	if n == 0 {
		n = 1
	}
	stories := make([]domain.Story, 0, n)
	for i := 0; i < n; i++ {
		stories = append(stories, domain.Story{
			ID:               fmt.Sprintf("%s-s%d", in.DocumentID, i),
			Title:            "Story from " + in.Title,
			SourceDocumentID: in.DocumentID,
		})
	}
	return stories, nil
}

type fakeNotifier struct {
	failFirst bool
	delivered []string
}

func (f *fakeNotifier) NotifyAll(_ context.Context, stories []*domain.Story, _ string) []domain.NotificationResult {
	results := make([]domain.NotificationResult, 0, len(stories))
	for i, s := range stories {
		r := domain.NotificationResult{Success: true, StatusCode: 200}
		if f.failFirst && i == 0 {
			r = domain.NotificationResult{StatusCode: 404, ErrorDetail: "status 404: no_service (webhook endpoint invalid or deleted)"}
		}
		s.NotificationStatus = &r
		f.delivered = append(f.delivered, s.ID)
		results = append(results, r)
	}
	return results
}

type memRepo struct {
	mu       sync.Mutex
	stories  map[string]domain.Story
	order    []string
	saveErr  error
	deployed map[string][2]string
}

func newMemRepo() *memRepo {
	return &memRepo{stories: map[string]domain.Story{}, deployed: map[string][2]string{}}
}

func (m *memRepo) SaveStories(_ context.Context, stories []domain.Story) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, s := range stories {
		if _, ok := m.stories[s.ID]; !ok {
			m.order = append(m.order, s.ID)
		}
		m.stories[s.ID] = s
	}
	return nil
}

func (m *memRepo) GetStory(_ context.Context, id string) (domain.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[id]
	if !ok {
		return domain.Story{}, fmt.Errorf("%w: story %s", domain.ErrNotFound, id)
	}
	return s, nil
}

func (m *memRepo) ListStories(_ context.Context, limit int) ([]domain.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Story, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.stories[id])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) UpdateNotification(_ context.Context, id string, result domain.NotificationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[id]
	if !ok {
		return fmt.Errorf("%w: story %s", domain.ErrNotFound, id)
	}
	s.NotificationStatus = &result
	m.stories[id] = s
	return nil
}

func (m *memRepo) MarkDeployed(_ context.Context, id, key, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[id]
	if !ok {
		return fmt.Errorf("%w: story %s", domain.ErrNotFound, id)
	}
	if s.Deployed() {
		return domain.ErrAlreadyDeployed
	}
	s.DeployedIssueKey, s.DeployedIssueURL = key, url
	m.stories[id] = s
	return nil
}

type harness struct {
	source    *fakeSource
	extractor *fakeExtractor
	notifier  *fakeNotifier
	repo      *memRepo
	ledger    *ledger.Ledger
	pipeline  *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		source:    &fakeSource{},
		extractor: &fakeExtractor{},
		notifier:  &fakeNotifier{},
		repo:      newMemRepo(),
		ledger:    ledger.Open(filepath.Join(t.TempDir(), "ledger.json"), func() time.Time { return cutoff }, nil),
	}
	h.pipeline = NewPipeline(PipelineDeps{
		Source:     h.source,
		Ledger:     h.ledger,
		Extractor:  h.extractor,
		Notifier:   h.notifier,
		Repository: h.repo,
		WebhookURL: "https://hooks.slack.com/services/T/B/X",
		Clock:      func() time.Time { return cutoff.Add(24 * time.Hour) },
	})
	return h
}

func TestRunScheduledHappyPath(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add("d1", cutoff.Add(time.Hour), 80)
	h.extractor.count = 2

	summary, err := h.pipeline.RunScheduled(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.TriggerScheduled, summary.Trigger)
	assert.Equal(t, []int{10}, h.source.listed)
	assert.Equal(t, 1, summary.Fetched)
	assert.Equal(t, 1, summary.Eligible)
	assert.Equal(t, 1, summary.Analyzed)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 2, summary.StoriesExtracted)
	assert.Equal(t, 2, summary.Notified)
	assert.Len(t, summary.Stories, 2)
	assert.False(t, summary.FinishedAt.IsZero())

	assert.Equal(t, []string{"d1-s0", "d1-s1"}, h.notifier.delivered)
	stored, err := h.repo.GetStory(context.Background(), "d1-s1")
	require.NoError(t, err)
	require.NotNil(t, stored.NotificationStatus)
	assert.True(t, stored.NotificationStatus.Success)

	assert.Contains(t, h.ledger.Snapshot().ProcessedIDs, "d1")
	assert.False(t, h.pipeline.RunState().Status().Running)
	assert.Equal(t, 1, h.pipeline.RunState().Status().LastPass.Processed)
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add("d1", cutoff.Add(time.Hour), 80)
	h.source.add("d2", cutoff.Add(2*time.Hour), 80)

	first, err := h.pipeline.RunOnDemand(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Processed)

	second, err := h.pipeline.RunScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Skipped)
	assert.Zero(t, second.Eligible)
	assert.Zero(t, second.Processed)
	assert.Len(t, h.extractor.calls, 2, "no document reaches the backend twice")
	assert.Len(t, h.notifier.delivered, 2)
	assert.Equal(t, []int{20, 10}, h.source.listed)
}

func TestDocumentsBeforeCutoffAreNeverProcessed(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add("old", cutoff.Add(-time.Minute), 80)
	h.source.add("same", cutoff, 80)

	summary, err := h.pipeline.RunScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Empty(t, h.extractor.calls)
}

func TestContentSufficiencyBoundary(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add("fifty", cutoff.Add(time.Hour), 50)
	h.source.add("fifty-one", cutoff.Add(time.Hour), 51)

	summary, err := h.pipeline.RunScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Insufficient)
	assert.Equal(t, []string{"fifty-one"}, h.extractor.calls)

	snap := h.ledger.Snapshot()
	assert.NotContains(t, snap.ProcessedIDs, "fifty", "insufficient documents are re-checked next pass")
	assert.Contains(t, snap.ProcessedIDs, "fifty-one")
}

func TestExtractionFailurePolicy(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add("garbled", cutoff.Add(time.Hour), 80)
	h.source.add("flaky", cutoff.Add(time.Hour), 80)
	h.source.add("broken", cutoff.Add(time.Hour), 80)
	h.source.blocksErr = map[string]error{"broken": fmt.Errorf("%w: 502", domain.ErrTransientExternal)}
	h.extractor.errs = map[string]error{
		"garbled": fmt.Errorf("%w: no json", domain.ErrMalformedModelOutput),
		"flaky":   fmt.Errorf("%w: timeout", domain.ErrTransientExternal),
	}

	summary, err := h.pipeline.RunScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, 1, summary.Processed)
	assert.Zero(t, summary.StoriesExtracted)

	stages := map[string]string{}
	for _, e := range summary.Errors {
		stages[e.DocumentID] = e.Stage
	}
	assert.Equal(t, map[string]string{"garbled": StageExtract, "flaky": StageExtract, "broken": StageFetch}, stages)

	snap := h.ledger.Snapshot()
	assert.Contains(t, snap.ProcessedIDs, "garbled")
	assert.NotContains(t, snap.ProcessedIDs, "flaky")
	assert.NotContains(t, snap.ProcessedIDs, "broken")
}

func TestWebhookFailureDoesNotStopPass(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.notifier.failFirst = true
	h.extractor.count = 3
	h.source.add("d1", cutoff.Add(time.Hour), 80)

	summary, err := h.pipeline.RunScheduled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.NotifyFailed)
	assert.Equal(t, 2, summary.Notified)
	assert.Equal(t, 1, summary.Processed)

	stored, err := h.repo.GetStory(context.Background(), "d1-s0")
	require.NoError(t, err)
	require.NotNil(t, stored.NotificationStatus)
	assert.Equal(t, 404, stored.NotificationStatus.StatusCode)
}

func TestStoreFailureIsRecorded(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.repo.saveErr = errors.New("disk full")
	h.source.add("d1", cutoff.Add(time.Hour), 80)

	summary, err := h.pipeline.RunScheduled(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, StageStore, summary.Errors[0].Stage)
	assert.Equal(t, 1, summary.Notified)
}

func TestConcurrentTriggerIsRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add("d1", cutoff.Add(time.Hour), 80)
	require.NoError(t, h.pipeline.RunState().TryAcquire(domain.TriggerScheduled, cutoff))

	_, err := h.pipeline.RunOnDemand(context.Background())
	assert.True(t, errors.Is(err, domain.ErrPassInProgress))
	_, err = h.pipeline.ProcessDocument(context.Background(), "d1")
	assert.True(t, errors.Is(err, domain.ErrPassInProgress))
	assert.Empty(t, h.extractor.calls)

	h.pipeline.RunState().Release(domain.PassSummary{})
	_, err = h.pipeline.RunOnDemand(context.Background())
	assert.NoError(t, err)
}

func TestMissingDependenciesFailBeforePass(t *testing.T) {
	t.Parallel()

	p := NewPipeline(PipelineDeps{Source: &fakeSource{}})
	_, err := p.RunScheduled(context.Background())
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.False(t, p.RunState().Status().Running)
}

func TestProcessDocument(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add("d1", cutoff.Add(time.Hour), 80)

	summary, err := h.pipeline.ProcessDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerDocument, summary.Trigger)
	assert.Equal(t, 1, summary.Processed)

	again, err := h.pipeline.ProcessDocument(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Skipped)
	assert.Len(t, h.extractor.calls, 1)

	_, err = h.pipeline.ProcessDocument(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPreviewDoesNotMutate(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add("new", cutoff.Add(time.Hour), 80)
	h.source.add("old", cutoff.Add(-time.Hour), 10)
	h.source.blocksErr = map[string]error{"old": errors.New("boom")}

	previews, err := h.pipeline.Preview(context.Background())
	require.NoError(t, err)
	require.Len(t, previews, 2)
	assert.Equal(t, []int{50}, h.source.listed)

	assert.True(t, previews[0].Eligible)
	assert.True(t, previews[0].Sufficient)
	assert.Equal(t, 80, previews[0].WordCount)
	assert.False(t, previews[1].Eligible)
	assert.Equal(t, "boom", previews[1].Error)

	assert.Empty(t, h.extractor.calls)
	assert.Empty(t, h.ledger.Snapshot().ProcessedIDs)
}

func TestPipelineWithExtractionService(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.source.add("d1", cutoff.Add(time.Hour), 80)
	h.pipeline.extractor = NewExtractionService(&fakeCompleter{response: rawStories}, sequentialIDs(), nil, nil)

	summary, err := h.pipeline.RunScheduled(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Stories, 1)
	assert.Equal(t, "story-1", summary.Stories[0].ID)
	assert.Equal(t, "Meeting d1", summary.Stories[0].SourceDocumentTitle)
	assert.Equal(t, "d1", summary.Stories[0].SourceDocumentID)
}
