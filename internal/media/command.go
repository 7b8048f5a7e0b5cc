package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/clipmark/highlights/internal/models"
)

// CommandTranscriber runs an external speech recognizer. The command gets the video path as its
// last argument and prints {"text": ..., "duration": ..., "segments": [{"start","end","text"}]}.
type CommandTranscriber struct {
	Command string
}

// Transcribe runs the command for path.
func (t CommandTranscriber) Transcribe(ctx context.Context, path string) (models.Transcript, error) {
	out, err := runCommand(ctx, t.Command, path)
	if err != nil {
		return models.Transcript{}, fmt.Errorf("transcribe: %w", err)
	}

	var tr models.Transcript
	if err := json.Unmarshal(out, &tr); err != nil {
		return models.Transcript{}, fmt.Errorf("transcribe: parse output: %w", err)
	}

	tr.Text = strings.TrimSpace(tr.Text)

	return tr, nil
}

// CommandDetector runs an external object detector. The command gets the frame paths as arguments
// and prints [{"name": ..., "confidence": ...}].
type CommandDetector struct {
	Command string
}

// Detect runs the command over frames.
func (d CommandDetector) Detect(ctx context.Context, frames []models.Frame) ([]models.DetectedObject, error) {
	if len(frames) == 0 {
		return nil, nil
	}

	paths := make([]string, len(frames))
	for i, f := range frames {
		paths[i] = f.Path
	}

	out, err := runCommand(ctx, d.Command, paths...)
	if err != nil {
		return nil, fmt.Errorf("detect objects: %w", err)
	}

	var objects []models.DetectedObject
	if err := json.Unmarshal(out, &objects); err != nil {
		return nil, fmt.Errorf("detect objects: parse output: %w", err)
	}

	return objects, nil
}

// NoopTranscriber hears nothing.
type NoopTranscriber struct{}

// Transcribe returns an empty transcript.
func (NoopTranscriber) Transcribe(context.Context, string) (models.Transcript, error) {
	return models.Transcript{}, nil
}

// NoopDetector sees nothing.
type NoopDetector struct{}

// Detect returns no objects.
func (NoopDetector) Detect(context.Context, []models.Frame) ([]models.DetectedObject, error) {
	return nil, nil
}

func runCommand(ctx context.Context, command string, args ...string) ([]byte, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no command configured")
	}

	cmd := exec.CommandContext(ctx, fields[0], append(fields[1:], args...)...) //nolint:gosec

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", fields[0], err, lastLine(stderr.String()))
	}

	return out, nil
}
