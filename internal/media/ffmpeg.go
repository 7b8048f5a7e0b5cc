package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/clipmark/highlights/internal/models"
)

// FFprobe reads container metadata.
type FFprobe struct {
	Binary string
}

// ProbeDuration returns the container duration in seconds.
func (p FFprobe) ProbeDuration(ctx context.Context, path string) (float64, error) {
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", //nolint:gosec
		"-show_entries", "format=duration", "-of", "json", "--", path)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	return parseProbeDuration(output)
}

func parseProbeDuration(output []byte) (float64, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}

	if err := json.Unmarshal(output, &probe); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil || math.IsNaN(d) || d <= 0 {
		return 0, fmt.Errorf("ffprobe: no duration in %q", probe.Format.Duration)
	}

	return d, nil
}

// FFmpegSceneDetector finds cuts with ffmpeg's scene score filter.
type FFmpegSceneDetector struct {
	Binary    string
	Threshold float64
	Prober    interface {
		ProbeDuration(ctx context.Context, path string) (float64, error)
	}
}

// DetectScenes returns windows between consecutive cuts. No cuts means no scenes.
func (d FFmpegSceneDetector) DetectScenes(ctx context.Context, path string) ([]models.Segment, error) {
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = 0.4
	}

	filter := fmt.Sprintf("select='gt(scene,%s)',showinfo", strconv.FormatFloat(threshold, 'f', -1, 64))
	cmd := exec.CommandContext(ctx, ffmpegBinary(d.Binary), "-hide_banner", "-nostats", //nolint:gosec
		"-i", path, "-vf", filter, "-an", "-f", "null", "-")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg scene detect: %w: %s", err, lastLine(stderr.String()))
	}

	cuts := parseSceneCuts(stderr.String())
	if len(cuts) == 0 {
		return nil, nil
	}

	var duration float64

	if d.Prober != nil {
		if probed, err := d.Prober.ProbeDuration(ctx, path); err == nil {
			duration = probed
		}
	}

	return buildSegments(cuts, duration), nil
}

var ptsTime = regexp.MustCompile(`pts_time:\s*([0-9]+(?:\.[0-9]+)?)`)

// parseSceneCuts extracts the sorted, distinct cut times printed by showinfo.
func parseSceneCuts(stderr string) []float64 {
	var cuts []float64

	for _, line := range strings.Split(stderr, "\n") {
		if !strings.Contains(line, "showinfo") {
			continue
		}

		m := ptsTime.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		if t, err := strconv.ParseFloat(m[1], 64); err == nil && t > 0 {
			cuts = append(cuts, t)
		}
	}

	sort.Float64s(cuts)

	out := cuts[:0]

	for i, c := range cuts {
		if i == 0 || c != cuts[i-1] {
			out = append(out, c)
		}
	}

	return out
}

// buildSegments turns cut points into [0,c1), [c1,c2), ..., [cn,duration) windows with whole-second
// bounds (start floored, end ceiled). Without a duration the last cut ends the video.
// Windows that collapse after rounding are dropped.
func buildSegments(cuts []float64, duration float64) []models.Segment {
	bounds := append([]float64{0}, cuts...)
	if duration > cuts[len(cuts)-1] {
		bounds = append(bounds, duration)
	}

	var segs []models.Segment

	for i := 0; i+1 < len(bounds); i++ {
		s := models.Segment{StartSec: int(math.Floor(bounds[i])), EndSec: int(math.Ceil(bounds[i+1]))}
		if s.Valid() {
			segs = append(segs, s)
		}
	}

	return segs
}

// FFmpegFrameSampler extracts JPEG stills at a fixed interval.
type FFmpegFrameSampler struct {
	Binary   string
	EverySec float64
	// Dir receives one subdirectory per video and window. Reruns overwrite.
	Dir string
}

// Sample writes frames from [startSec, endSec] and returns them in time order.
func (s FFmpegFrameSampler) Sample(ctx context.Context, path string, startSec, endSec int) ([]models.Frame, error) {
	every := s.EverySec
	if every <= 0 {
		every = 1.5
	}

	if endSec <= startSec {
		return nil, nil
	}

	dir := filepath.Join(s.Dir, SourceUID(path), fmt.Sprintf("%d-%d", startSec, endSec))
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear frame dir: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.Itoa(startSec),
		"-t", strconv.Itoa(endSec - startSec),
		"-i", path,
		"-vf", "fps=1/" + strconv.FormatFloat(every, 'f', -1, 64),
		"-q:v", "3",
		filepath.Join(dir, "frame_%05d.jpg"),
	}

	cmd := exec.CommandContext(ctx, ffmpegBinary(s.Binary), args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg sample frames: %w: %s", err, strings.TrimSpace(string(output)))
	}

	files, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}

	sort.Strings(files)

	return framesAt(files, startSec, every), nil
}

// framesAt assigns each extracted file its timestamp.
func framesAt(files []string, startSec int, every float64) []models.Frame {
	frames := make([]models.Frame, len(files))
	for i, f := range files {
		frames[i] = models.Frame{Path: f, TimestampSec: float64(startSec) + float64(i)*every}
	}

	return frames
}

func ffmpegBinary(b string) string {
	if b = strings.TrimSpace(b); b != "" {
		return b
	}

	return "ffmpeg"
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}

	return s
}
