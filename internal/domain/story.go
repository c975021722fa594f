package domain

import "time"

// Story is a development work item extracted from a transcript.
type Story struct {
	ID                    string              `json:"id"`
	Title                 string              `json:"title"`
	UserStory             string              `json:"userStory,omitempty"`
	ProblemStatement      string              `json:"problemStatement,omitempty"`
	Type                  string              `json:"type"`
	Priority              string              `json:"priority"`
	Effort                string              `json:"effort"`
	Epic                  string              `json:"epic"`
	Description           string              `json:"description"`
	AcceptanceCriteria    []string            `json:"acceptanceCriteria"`
	TechnicalRequirements []string            `json:"technicalRequirements"`
	BusinessValue         string              `json:"businessValue"`
	Risks                 []string            `json:"risks"`
	Confidence            float64             `json:"confidence"`
	ConfidenceOutOfRange  bool                `json:"confidenceOutOfRange,omitempty"`
	DiscussionContext     string              `json:"discussionContext,omitempty"`
	SourceDocumentID      string              `json:"sourceDocumentId"`
	SourceDocumentTitle   string              `json:"sourceDocumentTitle,omitempty"`
	SourceTimestamp       time.Time           `json:"sourceTimestamp"`
	NotificationStatus    *NotificationResult `json:"notificationStatus,omitempty"`
	DeployedIssueKey      string              `json:"deployedIssueKey,omitempty"`
	DeployedIssueURL      string              `json:"deployedIssueUrl,omitempty"`
}

// Deployed reports whether the story already has a tracker issue. Deployed stories are immutable.
func (s Story) Deployed() bool {
	return s.DeployedIssueKey != ""
}

// NotificationResult captures one webhook delivery attempt.
type NotificationResult struct {
	Success     bool      `json:"success"`
	StatusCode  int       `json:"statusCode,omitempty"`
	ErrorDetail string    `json:"errorDetail,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	LatencyMs   int64     `json:"latencyMs,omitempty"`
}

// DeploymentResult captures one issue-tracker deployment attempt.
type DeploymentResult struct {
	Success     bool   `json:"success"`
	IssueKey    string `json:"issueKey,omitempty"`
	IssueURL    string `json:"issueUrl,omitempty"`
	IssueID     string `json:"issueId,omitempty"`
	ErrorDetail string `json:"errorDetail,omitempty"`
}

// IssueTarget describes where a story should be deployed. It is supplied per call.
type IssueTarget struct {
	BaseURL    string `json:"baseUrl"`
	Email      string `json:"email"`
	APIToken   string `json:"apiToken"`
	ProjectKey string `json:"projectKey"`
	IssueType  string `json:"issueType,omitempty"`
}
