package models

import "strings"

// LocalVideo is a fetched source on local disk. ExternalUID is stable per source.
type LocalVideo struct {
	Path        string
	ExternalUID *string
}

// Frame is one sampled still image.
type Frame struct {
	Path         string
	TimestampSec float64
}

// TranscriptSegment is one timed span of recognized speech.
type TranscriptSegment struct {
	StartSec float64 `json:"start"`
	EndSec   float64 `json:"end"`
	Text     string  `json:"text"`
}

// Transcript is the speech recognized in a video. DurationSec is 0 when unknown.
type Transcript struct {
	Text        string              `json:"text"`
	DurationSec float64             `json:"duration"`
	Segments    []TranscriptSegment `json:"segments,omitempty"`
}

// Excerpt returns the speech overlapping [startSec, endSec). Without timed segments it returns the full text.
func (t Transcript) Excerpt(startSec, endSec int) string {
	if len(t.Segments) == 0 {
		return strings.TrimSpace(t.Text)
	}

	var parts []string

	for _, s := range t.Segments {
		if s.EndSec <= float64(startSec) || s.StartSec >= float64(endSec) {
			continue
		}

		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " ")
}

// Duration returns the known duration in whole seconds, or nil.
// A positive duration under one second counts as one second.
func (t Transcript) Duration() *int {
	d := t.DurationSec
	if d <= 0 && len(t.Segments) > 0 {
		d = t.Segments[len(t.Segments)-1].EndSec
	}

	if d <= 0 {
		return nil
	}

	secs := max(int(d), 1)

	return &secs
}
