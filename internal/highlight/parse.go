package highlight

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// judgment is one element of the model's JSON reply. Fields are decoded loosely
// because models return booleans and numbers as strings often enough to matter.
type judgment struct {
	IsHighlight json.RawMessage `json:"is_highlight"`
	Description json.RawMessage `json:"description"`
	Summary     json.RawMessage `json:"summary"`
	Confidence  json.RawMessage `json:"confidence"`
}

// parseJudgments decodes a reply holding one object or a list of objects.
// Code fences and surrounding prose are stripped first.
func parseJudgments(raw string) ([]judgment, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, errors.New("empty payload")
	}

	switch payload[0] {
	case '[':
		var items []judgment
		if err := json.Unmarshal([]byte(payload), &items); err != nil {
			return nil, fmt.Errorf("decode judgment list: %w", err)
		}

		return items, nil
	case '{':
		var item judgment
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, fmt.Errorf("decode judgment: %w", err)
		}

		return []judgment{item}, nil
	default:
		return nil, fmt.Errorf("payload is not a JSON object or list: %q", snippet(payload))
	}
}

// extractJSON strips a markdown code fence and returns the outermost object or list.
func extractJSON(content string) string {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if trimmed == "" {
		return ""
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}

	obj := strings.Index(trimmed, "{")
	list := strings.Index(trimmed, "[")

	open, closer := obj, "}"
	if list >= 0 && (obj < 0 || list < obj) {
		open, closer = list, "]"
	}

	if open < 0 {
		return trimmed
	}

	if end := strings.LastIndex(trimmed, closer); end > open {
		return strings.TrimSpace(trimmed[open : end+1])
	}

	return trimmed
}

func stripCodeFence(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}

	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}

	return s
}

// isTrue accepts true, "true"/"yes"/"1" and non-zero numbers.
func (j judgment) isTrue() bool {
	v := bytes.TrimSpace(j.IsHighlight)
	if len(v) == 0 {
		return false
	}

	var b bool
	if json.Unmarshal(v, &b) == nil {
		return b
	}

	var s string
	if json.Unmarshal(v, &s) == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "1":
			return true
		}

		return false
	}

	var f float64
	if json.Unmarshal(v, &f) == nil {
		return f != 0
	}

	return false
}

func (j judgment) text(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}

	return strings.TrimSpace(s)
}

// confidence returns the parsed value, or def when absent, unparseable or outside [0,1].
func (j judgment) confidence(def float64) float64 {
	v := bytes.TrimSpace(j.Confidence)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return def
	}

	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		var s string
		if json.Unmarshal(v, &s) != nil {
			return def
		}

		parsed, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if perr != nil {
			return def
		}

		f = parsed
	}

	if f < 0 || f > 1 {
		return def
	}

	return f
}

func snippet(s string) string {
	const limit = 120
	if len(s) <= limit {
		return s
	}

	return s[:limit] + "..."
}
