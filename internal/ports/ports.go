package ports

import (
	"context"
	"time"

	"github.com/skyyMo/skynet-ai/internal/domain"
)

// DocumentSource pulls transcripts from the external document store.
type DocumentSource interface {
	// ListRecent returns document metadata sorted by creation time, newest first.
	ListRecent(ctx context.Context, pageSize int) ([]domain.Document, error)
	// GetDocument returns metadata for a single document.
	GetDocument(ctx context.Context, id string) (domain.Document, error)
	// FetchBlocks lists the body blocks of a document.
	FetchBlocks(ctx context.Context, id string) ([]domain.Block, error)
}

// Ledger is the persisted dedup record shared by every pipeline entry point.
type Ledger interface {
	IsEligible(doc domain.Document) bool
	MarkProcessed(id string) error
	Snapshot() domain.LedgerState
}

// Completer sends a system contract plus user content to a generative text backend.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// StoryExtractor turns transcript text into structured stories.
type StoryExtractor interface {
	Extract(ctx context.Context, in ExtractionInput) ([]domain.Story, error)
}

// ExtractionInput is the text and provenance handed to a StoryExtractor.
type ExtractionInput struct {
	DocumentID string
	Title      string
	Text       string
}

// Notifier delivers stories to a chat webhook, one message per story.
type Notifier interface {
	NotifyAll(ctx context.Context, stories []*domain.Story, webhookURL string) []domain.NotificationResult
}

// IssueDeployer creates a tracker issue from a story.
type IssueDeployer interface {
	Deploy(ctx context.Context, target domain.IssueTarget, story domain.Story) (domain.DeploymentResult, error)
}

// StoryRepository persists extracted stories so they can be deployed later.
type StoryRepository interface {
	SaveStories(ctx context.Context, stories []domain.Story) error
	GetStory(ctx context.Context, id string) (domain.Story, error)
	ListStories(ctx context.Context, limit int) ([]domain.Story, error)
	UpdateNotification(ctx context.Context, id string, result domain.NotificationResult) error
	MarkDeployed(ctx context.Context, id, issueKey, issueURL string) error
}

// Pacer spaces out consecutive calls to a rate-limited service.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
