package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/skyyMo/skynet-ai/internal/domain"
	"github.com/skyyMo/skynet-ai/internal/ports"
)

// MinTranscriptChars is the shortest text, in characters, worth sending to the backend.
const MinTranscriptChars = 100

// extractionContract instructs the backend to answer with a bare JSON object.
const extractionContract = `You are a senior product manager turning meeting transcripts into development work items.

Read the transcript and extract every concrete, actionable piece of development work that was discussed.
Skip small talk, status updates with no follow-up, and anything already finished.

Respond with ONLY a JSON object. No prose, no Markdown, no code fences. The object must match:
{
  "stories": [
    {
      "title": string,
      "userStory": string (optional, "As a ..., I want ..., so that ..."),
      "problemStatement": string (optional),
      "type": string ("Story", "Task", "Bug" or "Spike"),
      "priority": "High" | "Medium" | "Low",
      "effort": string (e.g. "S", "M", "L" or story points),
      "epic": string,
      "description": string,
      "acceptanceCriteria": [string],
      "technicalRequirements": [string],
      "businessValue": string,
      "risks": [string],
      "confidence": number between 0 and 1,
      "discussionContext": string (optional, who raised it and why)
    }
  ]
}
If nothing actionable was discussed, respond with {"stories": []}.`

// ExtractionService converts transcript text into stories through a generative backend.
type ExtractionService struct {
	completer ports.Completer
	newID     func() string
	now       func() time.Time
	logger    *slog.Logger
}

var _ ports.StoryExtractor = (*ExtractionService)(nil)

// NewExtractionService wires the backend, an ID generator and a clock.
func NewExtractionService(completer ports.Completer, newID func() string, now func() time.Time, logger *slog.Logger) *ExtractionService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ExtractionService{completer: completer, newID: newID, now: now, logger: logger}
}

// Extract returns no stories for short text without calling the backend. Backend failures
// wrap ErrTransientExternal; unparsable answers wrap ErrMalformedModelOutput.
func (s *ExtractionService) Extract(ctx context.Context, in ports.ExtractionInput) ([]domain.Story, error) {
	if utf8.RuneCountInString(in.Text) < MinTranscriptChars {
		s.logger.Debug("transcript too short for extraction", "document_id", in.DocumentID, "chars", len(in.Text))
		return nil, nil
	}
	if s.completer == nil {
		return nil, fmt.Errorf("%w: no extraction backend configured", domain.ErrConfiguration)
	}

	raw, err := s.completer.Complete(ctx, extractionContract, buildUserMessage(in))
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) || errors.Is(err, domain.ErrTransientExternal) {
			return nil, fmt.Errorf("extract stories: %w", err)
		}
		return nil, fmt.Errorf("extract stories: %w: %v", domain.ErrTransientExternal, err)
	}

	parsed, err := ParseModelOutput(raw)
	if err != nil {
		s.logger.Warn("model output could not be parsed",
			"document_id", in.DocumentID,
			"error", err,
			"raw", truncateForLog(raw, 4000))
		return nil, err
	}

	stamp := s.now().UTC()
	stories := make([]domain.Story, 0, len(parsed.Stories))
	for _, ms := range parsed.Stories {
		story := toStory(ms)
		story.ID = s.newID()
		story.SourceDocumentID = in.DocumentID
		story.SourceDocumentTitle = in.Title
		story.SourceTimestamp = stamp
		if story.ConfidenceOutOfRange {
			s.logger.Warn("model confidence out of range, clamped",
				"document_id", in.DocumentID, "title", story.Title, "raw_confidence", ms.Confidence)
		}
		stories = append(stories, story)
	}

	s.logger.Info("stories extracted", "document_id", in.DocumentID, "count", len(stories))
	return stories, nil
}

func buildUserMessage(in ports.ExtractionInput) string {
	var b strings.Builder
	b.WriteString("Meeting title: ")
	b.WriteString(strings.TrimSpace(in.Title))
	b.WriteString("\n\nTranscript:\n")
	b.WriteString(in.Text)
	return b.String()
}

func toStory(ms ModelStory) domain.Story {
	confidence, clamped := ClampConfidence(ms.Confidence)
	return domain.Story{
		Title:                 strings.TrimSpace(ms.Title),
		UserStory:             ms.UserStory,
		ProblemStatement:      ms.ProblemStatement,
		Type:                  ms.Type,
		Priority:              ms.Priority,
		Effort:                ms.Effort,
		Epic:                  ms.Epic,
		Description:           ms.Description,
		AcceptanceCriteria:    ms.AcceptanceCriteria,
		TechnicalRequirements: ms.TechnicalRequirements,
		BusinessValue:         ms.BusinessValue,
		Risks:                 ms.Risks,
		Confidence:            confidence,
		ConfidenceOutOfRange:  clamped,
		DiscussionContext:     ms.DiscussionContext,
	}
}

// ClampConfidence forces v into [0,1] and reports whether it had to. NaN becomes 0.
func ClampConfidence(v float64) (float64, bool) {
	switch {
	case math.IsNaN(v):
		return 0, true
	case v < 0:
		return 0, true
	case v > 1:
		return 1, true
	default:
		return v, false
	}
}
