// Package pipeline turns one video source into stored, embedded highlights.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clipmark/highlights/internal/highlight"
	"github.com/clipmark/highlights/internal/huberrors"
	"github.com/clipmark/highlights/internal/models"
	"github.com/clipmark/highlights/internal/observability"
)

// DefaultSegmentSec is the fallback segment length when the duration is unknown.
const DefaultSegmentSec = 60

// Fetcher makes a source available on local disk. Unreachable sources return huberrors.NotFoundError.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (models.LocalVideo, error)
}

// Transcriber recognizes speech. No speech is an empty transcript, not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (models.Transcript, error)
}

// DurationProber reads a container's duration in seconds.
type DurationProber interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// SceneDetector splits a video into scene windows. An empty result is allowed.
type SceneDetector interface {
	DetectScenes(ctx context.Context, path string) ([]models.Segment, error)
}

// FrameSampler extracts still frames from [startSec, endSec).
type FrameSampler interface {
	Sample(ctx context.Context, path string, startSec, endSec int) ([]models.Frame, error)
}

// ObjectDetector labels objects seen in frames.
type ObjectDetector interface {
	Detect(ctx context.Context, frames []models.Frame) ([]models.DetectedObject, error)
}

// Classifier decides whether a segment is a highlight and embeds accepted descriptions.
type Classifier interface {
	Decide(ctx context.Context, seg models.Segment, transcript string, objects []models.DetectedObject) (highlight.Decision, error)
	EmbedDescription(ctx context.Context, text string) ([]float32, error)
}

// Store persists videos and highlights.
type Store interface {
	UpsertVideo(ctx context.Context, source string, externalUID *string, durationSec *int) (*models.Video, error)
	ReplaceHighlights(ctx context.Context, videoID int64, candidates []models.HighlightCandidate) ([]int64, error)
}

// Deps are the orchestrator's collaborators. Prober is optional.
type Deps struct {
	Fetcher     Fetcher
	Transcriber Transcriber
	Prober      DurationProber
	Scenes      SceneDetector
	Sampler     FrameSampler
	Detector    ObjectDetector
	Classifier  Classifier
	Store       Store
}

// Params tunes processing. Zero values take defaults.
type Params struct {
	ClassifyDelay         time.Duration
	DefaultSegmentSec     int
	DetectorMinConfidence float64
	Sleep                 func(ctx context.Context, d time.Duration) error
	Metrics               observability.PipelineMetrics
	Logger                *slog.Logger
}

// Result is one processed video.
type Result struct {
	Video        *models.Video
	Segments     int
	Highlights   []models.HighlightCandidate
	HighlightIDs []int64
}

// Orchestrator runs the per-video state machine.
type Orchestrator struct {
	deps    Deps
	params  Params
	logger  *slog.Logger
	metrics observability.PipelineMetrics
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Deps, params Params) *Orchestrator {
	if params.DefaultSegmentSec <= 0 {
		params.DefaultSegmentSec = DefaultSegmentSec
	}

	if params.Sleep == nil {
		params.Sleep = sleepCtx
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{deps: deps, params: params, logger: logger, metrics: params.Metrics}
}

// Process fetches, analyzes and persists one source.
// Only a missing source, store failures and cancellation fail the run.
func (o *Orchestrator) Process(ctx context.Context, source string) (*Result, error) {
	start := time.Now()

	res, err := o.process(ctx, source)

	status := observability.VideoStatusOK

	switch {
	case errors.Is(err, huberrors.ErrNotFound):
		status = observability.VideoStatusNotFound
	case err != nil:
		status = observability.VideoStatusFailed
	}

	if o.metrics != nil {
		o.metrics.RecordVideoProcessed(ctx, status, time.Since(start))
	}

	if err != nil {
		o.logger.Error("pipeline: processing failed", "source", source, "status", status, "error", err)

		return nil, err
	}

	o.logger.Info("pipeline: video processed",
		"source", source,
		"video_id", res.Video.ID,
		"segments", res.Segments,
		"highlights", len(res.Highlights),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return res, nil
}

func (o *Orchestrator) process(ctx context.Context, source string) (*Result, error) {
	local, err := o.deps.Fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", source, err)
	}

	transcript := o.transcribe(ctx, local.Path)
	duration := o.duration(ctx, local.Path, transcript)

	video, err := o.deps.Store.UpsertVideo(ctx, source, local.ExternalUID, duration)
	if err != nil {
		return nil, fmt.Errorf("register video: %w", err)
	}

	segments := o.segments(ctx, local.Path, duration)
	res := &Result{Video: video, Segments: len(segments)}

	for i, seg := range segments {
		cand, err := o.analyze(ctx, local.Path, seg, transcript)
		if err != nil {
			return nil, err
		}

		if cand != nil {
			res.Highlights = append(res.Highlights, *cand)
		}

		if i < len(segments)-1 && o.params.ClassifyDelay > 0 {
			if err := o.params.Sleep(ctx, o.params.ClassifyDelay); err != nil {
				return nil, err
			}
		}
	}

	if o.metrics != nil {
		o.metrics.RecordSegmentsAnalyzed(ctx, len(segments))
	}

	ids, err := o.deps.Store.ReplaceHighlights(ctx, video.ID, res.Highlights)
	if err != nil {
		return nil, fmt.Errorf("store highlights for video %d: %w", video.ID, err)
	}

	res.HighlightIDs = ids

	return res, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, path string) models.Transcript {
	t, err := o.deps.Transcriber.Transcribe(ctx, path)
	if err != nil {
		o.degraded(ctx, observability.StageTranscribe, err)

		return models.Transcript{}
	}

	return t
}

func (o *Orchestrator) duration(ctx context.Context, path string, t models.Transcript) *int {
	if d := t.Duration(); d != nil || o.deps.Prober == nil {
		return d
	}

	secs, err := o.deps.Prober.ProbeDuration(ctx, path)
	if err != nil {
		o.degraded(ctx, observability.StageProbe, err)

		return nil
	}

	return models.Transcript{DurationSec: secs}.Duration()
}

// segments returns the valid scene windows, or one window spanning the known or default duration.
func (o *Orchestrator) segments(ctx context.Context, path string, duration *int) []models.Segment {
	scenes, err := o.deps.Scenes.DetectScenes(ctx, path)
	if err != nil {
		o.degraded(ctx, observability.StageSegment, err)
	}

	valid := make([]models.Segment, 0, len(scenes))

	for _, s := range scenes {
		if s.Valid() {
			valid = append(valid, s)
		}
	}

	if len(valid) > 0 {
		return valid
	}

	end := o.params.DefaultSegmentSec
	if duration != nil && *duration > 0 {
		end = *duration
	}

	return []models.Segment{{StartSec: 0, EndSec: end}}
}

func (o *Orchestrator) analyze(
	ctx context.Context, path string, seg models.Segment, transcript models.Transcript,
) (*models.HighlightCandidate, error) {
	frames, err := o.deps.Sampler.Sample(ctx, path, seg.StartSec, seg.EndSec)
	if err != nil {
		o.degraded(ctx, observability.StageSample, err)

		frames = nil
	}

	var objects []models.DetectedObject

	if len(frames) > 0 {
		detected, err := o.deps.Detector.Detect(ctx, frames)
		if err != nil {
			o.degraded(ctx, observability.StageDetect, err)
		}

		objects = models.FilterObjects(models.DedupeObjects(detected), o.params.DetectorMinConfidence)
	}

	d, err := o.deps.Classifier.Decide(ctx, seg, transcript.Excerpt(seg.StartSec, seg.EndSec), objects)
	if err != nil {
		return nil, err
	}

	if d.Candidate == nil || d.Candidate.Description == "" {
		o.logger.Debug("pipeline: segment rejected", "start", seg.StartSec, "end", seg.EndSec)

		return nil, nil
	}

	vec, err := o.deps.Classifier.EmbedDescription(ctx, d.Candidate.Description)
	if err != nil {
		return nil, fmt.Errorf("embed highlight %d-%d: %w", seg.StartSec, seg.EndSec, err)
	}

	d.Candidate.Embedding = vec

	if o.metrics != nil {
		o.metrics.RecordHighlightAccepted(ctx, d.Source)
	}

	o.logger.Debug("pipeline: highlight accepted",
		"start", seg.StartSec, "end", seg.EndSec, "source", d.Source, "objects", len(objects))

	return d.Candidate, nil
}

func (o *Orchestrator) degraded(ctx context.Context, stage string, err error) {
	o.logger.Warn("pipeline: stage degraded", "stage", stage, "error", err)

	if o.metrics != nil {
		o.metrics.RecordStageDegraded(ctx, stage)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
