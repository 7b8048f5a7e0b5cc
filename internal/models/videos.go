package models

import "time"

// Video is a processed source. ExternalUID, when set, is the dedup key:
// re-processing the same source updates Source and DurationSec in place.
type Video struct {
	ID          int64     `json:"id"`
	Source      string    `json:"source"`
	ExternalUID *string   `json:"external_uid,omitempty"`
	DurationSec *int      `json:"duration_sec,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// VideoWithHighlights is the detail view returned by GET /v1/videos/{id}.
type VideoWithHighlights struct {
	Video
	Highlights []Highlight `json:"highlights"`
}

// ProcessVideoRequest is the body of POST /v1/videos.
type ProcessVideoRequest struct {
	Source string `json:"source" validate:"required,min=1,max=2048,no_null_bytes"`
}

// ProcessVideoResponse acknowledges an enqueued processing job.
type ProcessVideoResponse struct {
	JobID  int64  `json:"job_id"`
	Source string `json:"source"`
}
