// Package httpapi exposes the pipeline, story and deployment operations over REST.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/usecase"
)

// maxRequestBodyBytes limits decoded JSON payload size.
const maxRequestBodyBytes int64 = 1 << 20

const defaultStoryLimit = 50

// PipelineService is the subset of the pipeline the API drives.
type PipelineService interface {
	RunOnDemand(ctx context.Context) (domain.PassSummary, error)
	ProcessDocument(ctx context.Context, id string) (domain.PassSummary, error)
	Preview(ctx context.Context) ([]domain.DocumentPreview, error)
}

// StatusReader reports whether a pass is running.
type StatusReader interface {
	Status() usecase.RunStatus
}

// StoryReader loads persisted stories.
type StoryReader interface {
	GetStory(ctx context.Context, id string) (domain.Story, error)
	ListStories(ctx context.Context, limit int) ([]domain.Story, error)
}

// DeploymentService deploys one stored story.
type DeploymentService interface {
	Deploy(ctx context.Context, storyID string, target domain.IssueTarget) (domain.DeploymentResult, error)
}

// LedgerReader exposes the dedup ledger state.
type LedgerReader interface {
	Snapshot() domain.LedgerState
}

// Services groups the collaborators; nil members answer 503.
type Services struct {
	Pipeline    PipelineService
	Status      StatusReader
	Stories     StoryReader
	Deployments DeploymentService
	Ledger      LedgerReader
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Handler serves the versioned API under /api/v1 plus /healthz.
type Handler struct {
	svc    Services
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewHandler registers every route.
func NewHandler(svc Services, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{svc: svc, mux: http.NewServeMux(), logger: logger.With("component", "http")}

	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.HandleFunc("POST /api/v1/pipeline/run", h.handleRun)
	h.mux.HandleFunc("GET /api/v1/pipeline/status", h.handleStatus)
	h.mux.HandleFunc("POST /api/v1/documents/{id}/process", h.handleProcessDocument)
	h.mux.HandleFunc("GET /api/v1/documents/preview", h.handlePreview)
	h.mux.HandleFunc("GET /api/v1/stories", h.handleListStories)
	h.mux.HandleFunc("GET /api/v1/stories/{id}", h.handleGetStory)
	h.mux.HandleFunc("POST /api/v1/stories/{id}/deploy", h.handleDeploy)
	h.mux.HandleFunc("GET /api/v1/ledger", h.handleLedger)
	h.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: "endpoint not found"})
	})
	return h
}

// ServeHTTP routes one request and logs its outcome.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(rec, r)
	h.logger.Debug("request served",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRun serves POST `/pipeline/run`.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	if h.svc.Pipeline == nil {
		writeUnavailable(w, "pipeline")
		return
	}
	summary, err := h.svc.Pipeline.RunOnDemand(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleStatus serves GET `/pipeline/status`.
func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if h.svc.Status == nil {
		writeUnavailable(w, "pipeline status")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Status.Status())
}

// handleProcessDocument serves POST `/documents/{id}/process`.
func (h *Handler) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	if h.svc.Pipeline == nil {
		writeUnavailable(w, "pipeline")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{Code: "invalid_request", Message: "document id is required"})
		return
	}
	summary, err := h.svc.Pipeline.ProcessDocument(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handlePreview serves GET `/documents/preview`.
func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	if h.svc.Pipeline == nil {
		writeUnavailable(w, "pipeline")
		return
	}
	previews, err := h.svc.Pipeline.Preview(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": previews})
}

// handleListStories serves GET `/stories?limit=N`.
func (h *Handler) handleListStories(w http.ResponseWriter, r *http.Request) {
	if h.svc.Stories == nil {
		writeUnavailable(w, "story storage")
		return
	}
	limit := defaultStoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{Code: "invalid_request", Message: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	stories, err := h.svc.Stories.ListStories(r.Context(), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	if stories == nil {
		stories = []domain.Story{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stories": stories})
}

// handleGetStory serves GET `/stories/{id}`.
func (h *Handler) handleGetStory(w http.ResponseWriter, r *http.Request) {
	if h.svc.Stories == nil {
		writeUnavailable(w, "story storage")
		return
	}
	story, err := h.svc.Stories.GetStory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

// handleDeploy serves POST `/stories/{id}/deploy` with an IssueTarget body.
func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	if h.svc.Deployments == nil {
		writeUnavailable(w, "deployments")
		return
	}
	var target domain.IssueTarget
	if err := decodeJSONBody(r.Context(), w, r, &target); err != nil {
		writeErrorFrom(w, err)
		return
	}
	result, err := h.svc.Deployments.Deploy(r.Context(), r.PathValue("id"), target)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// handleLedger serves GET `/ledger`.
func (h *Handler) handleLedger(w http.ResponseWriter, _ *http.Request) {
	if h.svc.Ledger == nil {
		writeUnavailable(w, "ledger")
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Ledger.Snapshot())
}

// writeErrorFrom maps domain errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{Code: "internal_error", Message: "unknown error"})
	case errors.Is(err, domain.ErrValidation):
		writeJSONError(w, http.StatusBadRequest, APIError{Code: "invalid_request", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: err.Error()})
	case errors.Is(err, domain.ErrPassInProgress):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "pass_in_progress",
			Message: err.Error(),
			Hint:    "Retry once the running pass finishes; see GET /api/v1/pipeline/status.",
		})
	case errors.Is(err, domain.ErrAlreadyDeployed):
		writeJSONError(w, http.StatusConflict, APIError{Code: "already_deployed", Message: err.Error()})
	case errors.Is(err, domain.ErrMisconfiguredEndpoint), errors.Is(err, domain.ErrEndpointNotFound):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{
			Code:    "tracker_endpoint_invalid",
			Message: err.Error(),
			Hint:    "Use the site root, e.g. https://your-team.atlassian.net.",
		})
	case errors.Is(err, domain.ErrAuthenticationFailed):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{Code: "tracker_auth_failed", Message: err.Error()})
	case errors.Is(err, domain.ErrProjectNotFoundOrNoAccess):
		writeJSONError(w, http.StatusUnprocessableEntity, APIError{Code: "tracker_project_unavailable", Message: err.Error()})
	case errors.Is(err, domain.ErrUnknownConnection), errors.Is(err, domain.ErrIssueCreationFailed),
		errors.Is(err, domain.ErrTransientExternal), errors.Is(err, domain.ErrMalformedModelOutput):
		writeJSONError(w, http.StatusBadGateway, APIError{Code: "upstream_error", Message: err.Error()})
	case errors.Is(err, domain.ErrConfiguration):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{Code: "not_configured", Message: err.Error()})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{Code: "internal_error", Message: err.Error()})
	}
}

func writeUnavailable(w http.ResponseWriter, what string) {
	writeJSONError(w, http.StatusServiceUnavailable, APIError{
		Code:    "service_unavailable",
		Message: what + " is not configured",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":%q}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(domain.ErrValidation, err))
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", domain.ErrValidation)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
