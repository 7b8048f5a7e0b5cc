package models

import "strings"

// SearchResult is one retrieved highlight. Score is cosine similarity for vector
// search and a fixed sentinel for keyword search; the two are not comparable.
type SearchResult struct {
	ID          int64    `json:"id"`
	VideoID     int64    `json:"video_id"`
	TsStartSec  int      `json:"ts_start_sec"`
	TsEndSec    int      `json:"ts_end_sec"`
	Description string   `json:"description"`
	Summary     *string  `json:"summary,omitempty"`
	Objects     []string `json:"objects,omitempty"`
	Score       float64  `json:"score"`
}

// Text returns the summary when present, otherwise the description. Empty when neither has content.
func (r SearchResult) Text() string {
	if r.Summary != nil && strings.TrimSpace(*r.Summary) != "" {
		return strings.TrimSpace(*r.Summary)
	}

	return strings.TrimSpace(r.Description)
}

// ChatQueryRequest is the body of POST /v1/chat/query.
type ChatQueryRequest struct {
	Question string `json:"question" validate:"required,no_null_bytes,trimmed_min=2,max=1000"`
}

// ChatQueryResponse carries the composed answer and the rows it was built from, in timeline order.
type ChatQueryResponse struct {
	Answer  string         `json:"answer"`
	Mode    string         `json:"mode"`
	Matches []SearchResult `json:"matches"`
}
