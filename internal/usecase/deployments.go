package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/ports"
)

// Deployments pushes stored stories to an issue tracker on explicit request.
type Deployments struct {
	repository ports.StoryRepository
	deployer   ports.IssueDeployer
	logger     *slog.Logger

	// One deployment per story at a time so a double click cannot create two issues.
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewDeployments wires the story store to an issue deployer.
func NewDeployments(repository ports.StoryRepository, deployer ports.IssueDeployer, logger *slog.Logger) *Deployments {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Deployments{
		repository: repository,
		deployer:   deployer,
		logger:     logger.With("component", "deployments"),
		inflight:   map[string]struct{}{},
	}
}

// Deploy creates an issue for the story and records its key. Deployed stories are refused
// with ErrAlreadyDeployed.
func (d *Deployments) Deploy(ctx context.Context, storyID string, target domain.IssueTarget) (domain.DeploymentResult, error) {
	if d.repository == nil || d.deployer == nil {
		err := fmt.Errorf("%w: story storage and issue deployer are required", domain.ErrConfiguration)
		return domain.DeploymentResult{ErrorDetail: err.Error()}, err
	}
	storyID = strings.TrimSpace(storyID)
	if storyID == "" {
		err := fmt.Errorf("%w: story id is required", domain.ErrValidation)
		return domain.DeploymentResult{ErrorDetail: err.Error()}, err
	}

	if !d.claim(storyID) {
		err := fmt.Errorf("%w: deployment of story %s already running", domain.ErrAlreadyDeployed, storyID)
		return domain.DeploymentResult{ErrorDetail: err.Error()}, err
	}
	defer d.release(storyID)

	story, err := d.repository.GetStory(ctx, storyID)
	if err != nil {
		return domain.DeploymentResult{ErrorDetail: err.Error()}, err
	}
	if story.Deployed() {
		err := fmt.Errorf("%w: story %s is %s", domain.ErrAlreadyDeployed, storyID, story.DeployedIssueKey)
		return domain.DeploymentResult{
			IssueKey:    story.DeployedIssueKey,
			IssueURL:    story.DeployedIssueURL,
			ErrorDetail: err.Error(),
		}, err
	}

	result, err := d.deployer.Deploy(ctx, target, story)
	if err != nil {
		return result, err
	}

	if err := d.repository.MarkDeployed(ctx, storyID, result.IssueKey, result.IssueURL); err != nil {
		// The issue exists at this point; surface it so the operator does not redeploy.
		d.logger.Error("issue created but not recorded", "story_id", storyID, "issue_key", result.IssueKey, "error", err)
		result.ErrorDetail = fmt.Sprintf("issue %s created but not recorded: %v", result.IssueKey, err)
		return result, fmt.Errorf("record deployment of %s: %w", storyID, err)
	}

	d.logger.Info("story deployed", "story_id", storyID, "issue_key", result.IssueKey)
	return result, nil
}

func (d *Deployments) claim(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inflight[id]; busy {
		return false
	}
	d.inflight[id] = struct{}{}
	return true
}

func (d *Deployments) release(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inflight, id)
}
