// Package highlight decides whether a segment is a highlight from its transcript and detected objects.
package highlight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clipmark/highlights/internal/models"
)

// Defaults for Params.
const (
	DefaultConfidence  = 0.6
	FallbackConfidence = 0.55
	TranscriptMaxChars = 1200
)

// Fixed texts of the evidence fallback candidate.
const (
	fallbackDescriptionPrefix = "Notable activity with objects: "
	fallbackSummary           = "Notable visual activity."
)

// Decision sources.
const (
	SourceModel    = "model"
	SourceEvidence = "evidence_fallback"
)

// Generator produces model text for a prompt. Implementations absorb their own retries.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Params tunes the classifier. Zero values take the package defaults.
type Params struct {
	DefaultConfidence  float64
	FallbackConfidence float64
	TranscriptMaxChars int
	Logger             *slog.Logger
}

// Decision is the classifier's verdict. Candidate is nil when the segment is not a highlight.
type Decision struct {
	Candidate *models.HighlightCandidate
	Source    string
}

// Classifier turns segment evidence into an optional highlight candidate.
type Classifier struct {
	generator  Generator
	embedder   Embedder
	params     Params
	strategies []strategy
	logger     *slog.Logger
}

// evidence is what the strategies see for one segment.
type evidence struct {
	seg       models.Segment
	objects   []models.DetectedObject
	judgments []judgment
	parseErr  error
}

// strategy returns a candidate or nil for "no result".
type strategy struct {
	source string
	decide func(ev evidence) *models.HighlightCandidate
}

// NewClassifier creates a Classifier. embedder may be nil when only Classify is used.
func NewClassifier(generator Generator, embedder Embedder, params Params) *Classifier {
	if params.DefaultConfidence == 0 {
		params.DefaultConfidence = DefaultConfidence
	}

	if params.FallbackConfidence == 0 {
		params.FallbackConfidence = FallbackConfidence
	}

	if params.TranscriptMaxChars <= 0 {
		params.TranscriptMaxChars = TranscriptMaxChars
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Classifier{
		generator: generator,
		embedder:  embedder,
		params:    params,
		logger:    logger,
	}
	c.strategies = []strategy{
		{source: SourceModel, decide: c.fromModel},
		{source: SourceEvidence, decide: c.fromEvidence},
	}

	return c
}

// Classify returns the accepted candidate for seg, or nil.
func (c *Classifier) Classify(
	ctx context.Context, seg models.Segment, transcript string, objects []models.DetectedObject,
) (*models.HighlightCandidate, error) {
	d, err := c.Decide(ctx, seg, transcript, objects)
	if err != nil {
		return nil, err
	}

	return d.Candidate, nil
}

// Decide is Classify with the source of the decision.
// Errors come only from the generator (in practice, context cancellation).
func (c *Classifier) Decide(
	ctx context.Context, seg models.Segment, transcript string, objects []models.DetectedObject,
) (Decision, error) {
	prompt := BuildPrompt(seg, transcript, objects, c.params.TranscriptMaxChars)

	raw, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		return Decision{}, fmt.Errorf("classify segment %d-%d: %w", seg.StartSec, seg.EndSec, err)
	}

	ev := evidence{seg: seg, objects: objects}

	ev.judgments, ev.parseErr = parseJudgments(raw)
	if ev.parseErr != nil {
		c.logger.Warn("highlight: unparseable model output",
			"segment_start", seg.StartSec, "segment_end", seg.EndSec, "error", ev.parseErr)
	}

	for _, s := range c.strategies {
		if cand := s.decide(ev); cand != nil {
			return Decision{Candidate: cand, Source: s.source}, nil
		}
	}

	return Decision{}, nil
}

// EmbedDescription embeds an accepted candidate's text.
func (c *Classifier) EmbedDescription(ctx context.Context, text string) ([]float32, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("embed description: no embedder configured")
	}

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed description: %w", err)
	}

	return vec, nil
}

// fromModel returns the first judgment marked as a highlight that forms a valid candidate.
func (c *Classifier) fromModel(ev evidence) *models.HighlightCandidate {
	if ev.parseErr != nil {
		return nil
	}

	for _, j := range ev.judgments {
		if !j.isTrue() {
			continue
		}

		var summary *string
		if s := j.text(j.Summary); s != "" {
			summary = &s
		}

		conf := j.confidence(c.params.DefaultConfidence)

		cand, err := models.NewHighlightCandidate(ev.seg, j.text(j.Description), summary, &conf, ev.objects)
		if err != nil {
			c.logger.Debug("highlight: skipping unusable judgment",
				"segment_start", ev.seg.StartSec, "error", err)

			continue
		}

		return cand
	}

	return nil
}

// fromEvidence synthesizes a candidate naming the detected objects. No objects, no candidate.
func (c *Classifier) fromEvidence(ev evidence) *models.HighlightCandidate {
	if len(ev.objects) == 0 {
		return nil
	}

	names := make([]string, len(ev.objects))
	for i, o := range ev.objects {
		names[i] = o.Name
	}

	summary := fallbackSummary
	conf := c.params.FallbackConfidence

	cand, err := models.NewHighlightCandidate(ev.seg,
		fallbackDescriptionPrefix+strings.Join(names, ", ")+".", &summary, &conf, ev.objects)
	if err != nil {
		return nil
	}

	return cand
}
