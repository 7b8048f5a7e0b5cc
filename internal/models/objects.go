package models

import (
	"sort"
	"strings"
)

// DetectedObject is one labelled visual detection inside a segment.
// Objects are folded into highlights and never persisted on their own.
type DetectedObject struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// DedupeObjects collapses detections by name, keeping the maximum confidence per name.
// Names are trimmed and lower-cased; empty names are dropped. Output order is by first appearance.
func DedupeObjects(objects []DetectedObject) []DetectedObject {
	if len(objects) == 0 {
		return nil
	}

	index := make(map[string]int, len(objects))
	out := make([]DetectedObject, 0, len(objects))

	for _, obj := range objects {
		name := normalizeObjectName(obj.Name)
		if name == "" {
			continue
		}

		if i, ok := index[name]; ok {
			if obj.Confidence > out[i].Confidence {
				out[i].Confidence = obj.Confidence
			}

			continue
		}

		index[name] = len(out)
		out = append(out, DetectedObject{Name: name, Confidence: obj.Confidence})
	}

	return out
}

// FilterObjects drops detections below minConfidence.
func FilterObjects(objects []DetectedObject, minConfidence float64) []DetectedObject {
	out := objects[:0:0]

	for _, obj := range objects {
		if obj.Confidence >= minConfidence {
			out = append(out, obj)
		}
	}

	return out
}

// JoinObjectNames renders the stored form of an object list: normalized names,
// sorted, unique, comma-joined. Returns nil when no names remain.
func JoinObjectNames(objects []DetectedObject) *string {
	seen := make(map[string]struct{}, len(objects))
	names := make([]string, 0, len(objects))

	for _, obj := range objects {
		name := normalizeObjectName(obj.Name)
		if name == "" {
			continue
		}

		if _, ok := seen[name]; ok {
			continue
		}

		seen[name] = struct{}{}
		names = append(names, name)
	}

	if len(names) == 0 {
		return nil
	}

	sort.Strings(names)
	joined := strings.Join(names, ",")

	return &joined
}

// SplitObjectNames is the inverse of JoinObjectNames.
func SplitObjectNames(stored *string) []string {
	if stored == nil || *stored == "" {
		return nil
	}

	return strings.Split(*stored, ",")
}

func normalizeObjectName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
