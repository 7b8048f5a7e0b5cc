package highlight

import (
	"fmt"
	"strings"

	"github.com/clipmark/highlights/internal/models"
)

// instructions is the response contract appended to every classification prompt.
const instructions = `You are an expert video analyst.
Given:
- a scene time range in seconds
- speech transcript snippets (if any) from that range
- objects detected (e.g., person, car, dog, fire, explosion)

Pick if this segment is an IMPORTANT HIGHLIGHT (true/false).
If true, write:
- a vivid but factual description (1-3 sentences)
- a 1-sentence summary
- a confidence score 0..1.

Return strict JSON list of objects:
{
  "is_highlight": true|false,
  "description": "...",
  "summary": "...",
  "confidence": 0.0
}
`

// BuildPrompt renders the evidence for one segment. The transcript is cut to maxChars runes.
func BuildPrompt(seg models.Segment, transcript string, objects []models.DetectedObject, maxChars int) string {
	return fmt.Sprintf("Scene: %ds to %ds\nObjects: %s\nTranscript excerpt (may be empty): %s\n\n%s\nReturn JSON only.\n",
		seg.StartSec, seg.EndSec, formatObjects(objects), truncateRunes(strings.TrimSpace(transcript), maxChars), instructions)
}

func formatObjects(objects []models.DetectedObject) string {
	if len(objects) == 0 {
		return "none"
	}

	parts := make([]string, len(objects))
	for i, o := range objects {
		parts[i] = fmt.Sprintf("%s(%.2f)", o.Name, o.Confidence)
	}

	return strings.Join(parts, ", ")
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}

	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n])
}
