package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/ports"
)

const (
	apiPrefix        = "/rest/api/3"
	defaultIssueType = "Story"
	maxErrorBody     = 500
)

var allowedPriorities = map[string]struct{}{
	"Highest": {},
	"High":    {},
	"Medium":  {},
	"Low":     {},
	"Lowest":  {},
}

var knownIssueTypes = map[string]struct{}{
	"Story": {},
	"Task":  {},
	"Bug":   {},
	"Epic":  {},
}

// Deployer creates Jira Cloud issues from stories. Every call verifies credentials,
// then the project, then creates the issue, stopping at the first failure.
type Deployer struct {
	client *http.Client
	logger *slog.Logger
}

var _ ports.IssueDeployer = (*Deployer)(nil)

// NewDeployer builds a deployer. A nil client gets a 30s timeout.
func NewDeployer(client *http.Client, logger *slog.Logger) *Deployer {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Deployer{client: client, logger: logger}
}

// IssueRequest is the body of POST /rest/api/3/issue.
type IssueRequest struct {
	Fields IssueFields `json:"fields"`
}

// IssueFields carries the issue fields Jira requires plus an optional priority.
type IssueFields struct {
	Project     KeyRef   `json:"project"`
	Summary     string   `json:"summary"`
	Description Document `json:"description"`
	IssueType   NameRef  `json:"issuetype"`
	Priority    *NameRef `json:"priority,omitempty"`
}

// KeyRef references an entity by key.
type KeyRef struct {
	Key string `json:"key"`
}

// NameRef references an entity by name.
type NameRef struct {
	Name string `json:"name"`
}

type createIssueResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// Deploy runs the three-step protocol for one story and returns the created issue.
// Failures are wrapped in the matching deployment error kind.
func (d *Deployer) Deploy(ctx context.Context, target domain.IssueTarget, story domain.Story) (domain.DeploymentResult, error) {
	base := strings.TrimSuffix(strings.TrimSpace(target.BaseURL), "/")
	if err := validateTarget(base, target); err != nil {
		return failed(err), err
	}

	if err := d.verifyCredentials(ctx, base, target); err != nil {
		d.logger.Warn("jira credential check failed", "base_url", base, "error", err)
		return failed(err), err
	}
	if err := d.verifyProject(ctx, base, target); err != nil {
		d.logger.Warn("jira project check failed", "project", target.ProjectKey, "error", err)
		return failed(err), err
	}

	created, err := d.createIssue(ctx, base, target, story)
	if err != nil {
		d.logger.Warn("jira issue creation failed", "story_id", story.ID, "error", err)
		return failed(err), err
	}

	result := domain.DeploymentResult{
		Success:  true,
		IssueKey: created.Key,
		IssueID:  created.ID,
		IssueURL: fmt.Sprintf("%s/browse/%s", base, created.Key),
	}
	d.logger.Info("story deployed", "story_id", story.ID, "issue_key", result.IssueKey)
	return result, nil
}

func validateTarget(base string, target domain.IssueTarget) error {
	u, err := url.Parse(base)
	if base == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: base url %q is not an absolute url", domain.ErrValidation, target.BaseURL)
	}
	if strings.TrimSpace(target.Email) == "" || strings.TrimSpace(target.APIToken) == "" {
		return fmt.Errorf("%w: email and api token are required", domain.ErrValidation)
	}
	if strings.TrimSpace(target.ProjectKey) == "" {
		return fmt.Errorf("%w: project key is required", domain.ErrValidation)
	}
	return nil
}

func (d *Deployer) verifyCredentials(ctx context.Context, base string, target domain.IssueTarget) error {
	resp, body, err := d.do(ctx, http.MethodGet, base+apiPrefix+"/myself", target, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnknownConnection, err)
	}
	if looksLikeHTML(resp, body) {
		return fmt.Errorf("%w: %s returned an html page, check the site url", domain.ErrMisconfiguredEndpoint, base)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: check email and api token", domain.ErrAuthenticationFailed)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s%s/myself", domain.ErrEndpointNotFound, base, apiPrefix)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrUnknownConnection, resp.StatusCode, snippet(body))
	}
}

func (d *Deployer) verifyProject(ctx context.Context, base string, target domain.IssueTarget) error {
	endpoint := base + apiPrefix + "/project/" + url.PathEscape(target.ProjectKey)
	resp, body, err := d.do(ctx, http.MethodGet, endpoint, target, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnknownConnection, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrProjectNotFoundOrNoAccess, target.ProjectKey)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrUnknownConnection, resp.StatusCode, snippet(body))
	}
}

func (d *Deployer) createIssue(ctx context.Context, base string, target domain.IssueTarget, story domain.Story) (createIssueResponse, error) {
	payload, err := json.Marshal(BuildIssueRequest(target, story))
	if err != nil {
		return createIssueResponse{}, fmt.Errorf("%w: marshal request: %v", domain.ErrIssueCreationFailed, err)
	}

	resp, body, err := d.do(ctx, http.MethodPost, base+apiPrefix+"/issue", target, payload)
	if err != nil {
		return createIssueResponse{}, fmt.Errorf("%w: %v", domain.ErrIssueCreationFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return createIssueResponse{}, fmt.Errorf("%w: status %d: %s", domain.ErrIssueCreationFailed, resp.StatusCode, snippet(body))
	}

	var created createIssueResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return createIssueResponse{}, fmt.Errorf("%w: decode response: %v", domain.ErrIssueCreationFailed, err)
	}
	if created.Key == "" {
		return createIssueResponse{}, fmt.Errorf("%w: response carried no issue key", domain.ErrIssueCreationFailed)
	}
	return created, nil
}

// BuildIssueRequest maps a story onto create-issue fields. Priorities outside the
// Jira default scheme are left out so the project default applies.
func BuildIssueRequest(target domain.IssueTarget, story domain.Story) IssueRequest {
	fields := IssueFields{
		Project:     KeyRef{Key: target.ProjectKey},
		Summary:     summary(story),
		Description: ToADF(BuildDescription(story)),
		IssueType:   NameRef{Name: issueType(target, story)},
	}
	if _, ok := allowedPriorities[story.Priority]; ok {
		fields.Priority = &NameRef{Name: story.Priority}
	}
	return IssueRequest{Fields: fields}
}

func issueType(target domain.IssueTarget, story domain.Story) string {
	if t := strings.TrimSpace(target.IssueType); t != "" {
		return t
	}
	if _, ok := knownIssueTypes[story.Type]; ok {
		return story.Type
	}
	return defaultIssueType
}

// Jira rejects summaries longer than 255 chars or containing newlines.
func summary(story domain.Story) string {
	s := strings.Join(strings.Fields(story.Title), " ")
	if s == "" {
		s = "Untitled story"
	}
	if r := []rune(s); len(r) > 255 {
		s = string(r[:254]) + "…"
	}
	return s
}

func (d *Deployer) do(ctx context.Context, method, endpoint string, target domain.IssueTarget, payload []byte) (*http.Response, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, nil, fmt.Errorf("new request: %w", err)
	}
	setAuthHeader(req, target)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	return resp, data, nil
}

func setAuthHeader(req *http.Request, target domain.IssueTarget) {
	auth := base64.StdEncoding.EncodeToString([]byte(target.Email + ":" + target.APIToken))
	req.Header.Set("Authorization", "Basic "+auth)
}

func looksLikeHTML(resp *http.Response, body []byte) bool {
	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("<"))
}

func snippet(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return strings.TrimSpace(string(bytes.ToValidUTF8(body, nil)))
}

func failed(err error) domain.DeploymentResult {
	return domain.DeploymentResult{ErrorDetail: err.Error()}
}
