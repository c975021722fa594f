package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/skyyMo/skynet-ai/internal/domain"
)

// ModelStory mirrors one entry of the extraction contract.
type ModelStory struct {
	Title                 string   `json:"title"`
	UserStory             string   `json:"userStory"`
	ProblemStatement      string   `json:"problemStatement"`
	Type                  string   `json:"type"`
	Priority              string   `json:"priority"`
	Effort                string   `json:"effort"`
	Epic                  string   `json:"epic"`
	Description           string   `json:"description"`
	AcceptanceCriteria    []string `json:"acceptanceCriteria"`
	TechnicalRequirements []string `json:"technicalRequirements"`
	BusinessValue         string   `json:"businessValue"`
	Risks                 []string `json:"risks"`
	Confidence            float64  `json:"confidence"`
	DiscussionContext     string   `json:"discussionContext"`
}

// ModelOutput is the object the backend must return.
type ModelOutput struct {
	Stories []ModelStory `json:"stories"`
}

// ParseModelOutput tries, in order, a strict parse, a parse with code fences stripped and a
// parse of the outermost brace-delimited slice. It fails with ErrMalformedModelOutput.
func ParseModelOutput(raw string) (ModelOutput, error) {
	var firstErr error
	for _, stage := range []func(string) (string, bool){
		func(s string) (string, bool) { return strings.TrimSpace(s), true },
		StripCodeFence,
		SliceBraces,
	} {
		candidate, ok := stage(raw)
		if !ok {
			continue
		}
		out, err := ParseStrict(candidate)
		if err == nil {
			return out, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = fmt.Errorf("no JSON object found")
	}
	return ModelOutput{}, fmt.Errorf("%w: %v", domain.ErrMalformedModelOutput, firstErr)
}

// ParseStrict decodes s as exactly one JSON object.
func ParseStrict(s string) (ModelOutput, error) {
	var out ModelOutput
	dec := json.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(&out); err != nil {
		return ModelOutput{}, err
	}
	if dec.More() {
		return ModelOutput{}, fmt.Errorf("trailing data after JSON object")
	}
	return out, nil
}

// StripCodeFence removes a leading ``` or ```json line and a trailing ``` marker.
// It reports false when s is not fenced.
func StripCodeFence(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the language tag on the opening fence line.
		if tag := strings.TrimSpace(s[:nl]); !strings.HasPrefix(tag, "{") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s), true
}

// SliceBraces returns the text between the first '{' and the last '}' inclusive.
func SliceBraces(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// truncateForLog keeps logged model payloads bounded.
func truncateForLog(s string, limit int) string {
	b := []byte(s)
	if len(b) <= limit {
		return s
	}
	return string(bytes.ToValidUTF8(b[:limit], nil)) + "…"
}
