package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/clipmark/highlights/internal/huberrors"
)

// MinDescriptionLen is the shortest description a highlight may carry.
const MinDescriptionLen = 3

// Segment is one scene window of a video, in whole seconds.
type Segment struct {
	StartSec int `json:"start_sec"`
	EndSec   int `json:"end_sec"`
}

// Valid reports whether the window is non-empty and starts at or after zero.
func (s Segment) Valid() bool {
	return s.StartSec >= 0 && s.EndSec > s.StartSec
}

// HighlightCandidate is an accepted but not yet persisted highlight.
// Embedding stays nil until the description has been embedded.
type HighlightCandidate struct {
	TsStartSec  int              `json:"ts_start_sec"`
	TsEndSec    int              `json:"ts_end_sec"`
	Description string           `json:"description"`
	Summary     *string          `json:"summary,omitempty"`
	Confidence  *float64         `json:"confidence,omitempty"`
	Objects     []DetectedObject `json:"objects,omitempty"`
	Embedding   []float32        `json:"-"`
}

// NewHighlightCandidate validates the time range, description and confidence.
func NewHighlightCandidate(
	seg Segment, description string, summary *string, confidence *float64, objects []DetectedObject,
) (*HighlightCandidate, error) {
	if seg.StartSec < 0 {
		return nil, huberrors.NewValidationError("ts_start_sec", "ts_start_sec must not be negative")
	}

	if seg.EndSec <= seg.StartSec {
		return nil, huberrors.NewValidationError("ts_end_sec",
			fmt.Sprintf("ts_end_sec (%d) must be greater than ts_start_sec (%d)", seg.EndSec, seg.StartSec))
	}

	description = strings.TrimSpace(description)
	if len([]rune(description)) < MinDescriptionLen {
		return nil, huberrors.NewValidationError("description", "description must be at least 3 characters")
	}

	if confidence != nil && (*confidence < 0 || *confidence > 1) {
		return nil, huberrors.NewValidationError("confidence", "confidence must be within [0,1]")
	}

	if summary != nil {
		trimmed := strings.TrimSpace(*summary)
		if trimmed == "" {
			summary = nil
		} else {
			summary = &trimmed
		}
	}

	return &HighlightCandidate{
		TsStartSec:  seg.StartSec,
		TsEndSec:    seg.EndSec,
		Description: description,
		Summary:     summary,
		Confidence:  confidence,
		Objects:     objects,
	}, nil
}

// Highlight is a persisted highlight row. Objects holds the comma-joined name list.
type Highlight struct {
	ID          int64     `json:"id"`
	VideoID     int64     `json:"video_id"`
	TsStartSec  int       `json:"ts_start_sec"`
	TsEndSec    int       `json:"ts_end_sec"`
	Description string    `json:"description"`
	Summary     *string   `json:"summary,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Objects     *string   `json:"objects,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Text returns the summary when present, otherwise the description.
func (h Highlight) Text() string {
	if h.Summary != nil && strings.TrimSpace(*h.Summary) != "" {
		return strings.TrimSpace(*h.Summary)
	}

	return strings.TrimSpace(h.Description)
}
