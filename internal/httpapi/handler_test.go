package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/usecase"
)

// stubPipeline returns canned pipeline results.
type stubPipeline struct {
	summary   domain.PassSummary
	previews  []domain.DocumentPreview
	err       error
	processed string
}

func (s *stubPipeline) RunOnDemand(context.Context) (domain.PassSummary, error) {
	return s.summary, s.err
}

func (s *stubPipeline) ProcessDocument(_ context.Context, id string) (domain.PassSummary, error) {
	s.processed = id
	return s.summary, s.err
}

func (s *stubPipeline) Preview(context.Context) ([]domain.DocumentPreview, error) {
	return s.previews, s.err
}

type stubStories struct {
	stories []domain.Story
	limit   int
}

func (s *stubStories) GetStory(_ context.Context, id string) (domain.Story, error) {
	for _, st := range s.stories {
		if st.ID == id {
			return st, nil
		}
	}
	return domain.Story{}, fmt.Errorf("%w: story %s", domain.ErrNotFound, id)
}

func (s *stubStories) ListStories(_ context.Context, limit int) ([]domain.Story, error) {
	s.limit = limit
	return s.stories, nil
}

type stubDeployments struct {
	target domain.IssueTarget
	err    error
}

func (s *stubDeployments) Deploy(_ context.Context, storyID string, target domain.IssueTarget) (domain.DeploymentResult, error) {
	s.target = target
	if s.err != nil {
		return domain.DeploymentResult{ErrorDetail: s.err.Error()}, s.err
	}
	return domain.DeploymentResult{Success: true, IssueKey: "SKY-7", IssueURL: target.BaseURL + "/browse/SKY-7"}, nil
}

type stubLedger struct{}

func (stubLedger) Snapshot() domain.LedgerState {
	return domain.LedgerState{ProcessedIDs: []string{"d1"}}
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestRunPipeline(t *testing.T) {
	t.Parallel()

	pipeline := &stubPipeline{summary: domain.PassSummary{Trigger: domain.TriggerOnDemand, Processed: 2}}
	h := NewHandler(Services{Pipeline: pipeline}, nil)

	rec := serve(t, h, http.MethodPost, "/api/v1/pipeline/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[domain.PassSummary](t, rec)
	assert.Equal(t, 2, got.Processed)
}

func TestRunPipelineConflict(t *testing.T) {
	t.Parallel()

	h := NewHandler(Services{Pipeline: &stubPipeline{err: domain.ErrPassInProgress}}, nil)

	rec := serve(t, h, http.MethodPost, "/api/v1/pipeline/run", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	env := decode[ErrorEnvelope](t, rec)
	assert.Equal(t, "pass_in_progress", env.Error.Code)
	assert.NotEmpty(t, env.Error.Hint)
}

func TestProcessDocumentPassesID(t *testing.T) {
	t.Parallel()

	pipeline := &stubPipeline{}
	h := NewHandler(Services{Pipeline: pipeline}, nil)

	rec := serve(t, h, http.MethodPost, "/api/v1/documents/abc-123/process", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", pipeline.processed)
}

func TestStoriesEndpoints(t *testing.T) {
	t.Parallel()

	stories := &stubStories{stories: []domain.Story{{ID: "s1", Title: "Export"}}}
	h := NewHandler(Services{Stories: stories}, nil)

	rec := serve(t, h, http.MethodGet, "/api/v1/stories?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, stories.limit)
	list := decode[map[string][]domain.Story](t, rec)
	assert.Len(t, list["stories"], 1)

	rec = serve(t, h, http.MethodGet, "/api/v1/stories?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h, http.MethodGet, "/api/v1/stories/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Export", decode[domain.Story](t, rec).Title)

	rec = serve(t, h, http.MethodGet, "/api/v1/stories/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeployEndpoint(t *testing.T) {
	t.Parallel()

	deployments := &stubDeployments{}
	h := NewHandler(Services{Deployments: deployments}, nil)

	body := `{"baseUrl":"https://acme.atlassian.net","email":"a@b.c","apiToken":"t","projectKey":"SKY"}`
	rec := serve(t, h, http.MethodPost, "/api/v1/stories/s1/deploy", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "SKY", deployments.target.ProjectKey)
	assert.Equal(t, "SKY-7", decode[domain.DeploymentResult](t, rec).IssueKey)

	rec = serve(t, h, http.MethodPost, "/api/v1/stories/s1/deploy", `{"bogus":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeployErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		code int
		name string
	}{
		{domain.ErrAlreadyDeployed, http.StatusConflict, "already_deployed"},
		{domain.ErrAuthenticationFailed, http.StatusUnprocessableEntity, "tracker_auth_failed"},
		{domain.ErrMisconfiguredEndpoint, http.StatusUnprocessableEntity, "tracker_endpoint_invalid"},
		{domain.ErrProjectNotFoundOrNoAccess, http.StatusUnprocessableEntity, "tracker_project_unavailable"},
		{domain.ErrIssueCreationFailed, http.StatusBadGateway, "upstream_error"},
		{domain.ErrConfiguration, http.StatusServiceUnavailable, "not_configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHandler(Services{Deployments: &stubDeployments{err: fmt.Errorf("deploy: %w", tt.err)}}, nil)
			rec := serve(t, h, http.MethodPost, "/api/v1/stories/s1/deploy", `{"projectKey":"SKY"}`)
			require.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.name, decode[ErrorEnvelope](t, rec).Error.Code)
		})
	}
}

func TestStatusLedgerAndHealth(t *testing.T) {
	t.Parallel()

	rs := usecase.NewRunState()
	h := NewHandler(Services{Status: rs, Ledger: stubLedger{}}, nil)

	rec := serve(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, h, http.MethodGet, "/api/v1/pipeline/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[usecase.RunStatus](t, rec).Running)

	rec = serve(t, h, http.MethodGet, "/api/v1/ledger", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"d1"}, decode[domain.LedgerState](t, rec).ProcessedIDs)

	rec = serve(t, h, http.MethodGet, "/api/v1/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, h, http.MethodPost, "/api/v1/pipeline/run", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
