package domain

import "time"

// Trigger names the entry point that started a pass.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerOnDemand  Trigger = "on-demand"
	TriggerDocument  Trigger = "document"
)

// DocumentError records a per-document failure inside a pass.
type DocumentError struct {
	DocumentID string `json:"documentId"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}

// PassSummary is what every pipeline entry point returns instead of failing on partial errors.
type PassSummary struct {
	Trigger          Trigger         `json:"trigger"`
	StartedAt        time.Time       `json:"startedAt"`
	FinishedAt       time.Time       `json:"finishedAt"`
	Fetched          int             `json:"fetched"`
	Eligible         int             `json:"eligible"`
	Skipped          int             `json:"skipped"`
	Insufficient     int             `json:"insufficient"`
	Analyzed         int             `json:"analyzed"`
	Processed        int             `json:"processed"`
	StoriesExtracted int             `json:"storiesExtracted"`
	Notified         int             `json:"notified"`
	NotifyFailed     int             `json:"notifyFailed"`
	Failed           int             `json:"failed"`
	Errors           []DocumentError `json:"errors,omitempty"`
	Stories          []Story         `json:"stories,omitempty"`
}

// RecordError counts a failed document and keeps its error for the caller.
func (s *PassSummary) RecordError(docID, stage string, err error) {
	s.Failed++
	s.Errors = append(s.Errors, DocumentError{DocumentID: docID, Stage: stage, Error: err.Error()})
}
