package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipmark/highlights/internal/highlight"
	"github.com/clipmark/highlights/internal/huberrors"
	"github.com/clipmark/highlights/internal/models"
)

type mockFetcher struct {
	FetchFunc func(ctx context.Context, source string) (models.LocalVideo, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, source string) (models.LocalVideo, error) {
	return m.FetchFunc(ctx, source)
}

type mockTranscriber struct {
	TranscribeFunc func(ctx context.Context, path string) (models.Transcript, error)
}

func (m *mockTranscriber) Transcribe(ctx context.Context, path string) (models.Transcript, error) {
	return m.TranscribeFunc(ctx, path)
}

type mockProber struct {
	ProbeDurationFunc func(ctx context.Context, path string) (float64, error)
}

func (m *mockProber) ProbeDuration(ctx context.Context, path string) (float64, error) {
	return m.ProbeDurationFunc(ctx, path)
}

type mockScenes struct {
	DetectScenesFunc func(ctx context.Context, path string) ([]models.Segment, error)
}

func (m *mockScenes) DetectScenes(ctx context.Context, path string) ([]models.Segment, error) {
	return m.DetectScenesFunc(ctx, path)
}

type mockSampler struct {
	SampleFunc func(ctx context.Context, path string, startSec, endSec int) ([]models.Frame, error)
}

func (m *mockSampler) Sample(ctx context.Context, path string, startSec, endSec int) ([]models.Frame, error) {
	return m.SampleFunc(ctx, path, startSec, endSec)
}

type mockDetector struct {
	DetectFunc func(ctx context.Context, frames []models.Frame) ([]models.DetectedObject, error)
}

func (m *mockDetector) Detect(ctx context.Context, frames []models.Frame) ([]models.DetectedObject, error) {
	return m.DetectFunc(ctx, frames)
}

type mockClassifier struct {
	DecideFunc func(ctx context.Context, seg models.Segment, transcript string, objects []models.DetectedObject) (highlight.Decision, error)
	EmbedFunc  func(ctx context.Context, text string) ([]float32, error)
	segments   []models.Segment
	transcript []string
	objects    [][]models.DetectedObject
}

func (m *mockClassifier) Decide(
	ctx context.Context, seg models.Segment, transcript string, objects []models.DetectedObject,
) (highlight.Decision, error) {
	m.segments = append(m.segments, seg)
	m.transcript = append(m.transcript, transcript)
	m.objects = append(m.objects, objects)

	return m.DecideFunc(ctx, seg, transcript, objects)
}

func (m *mockClassifier) EmbedDescription(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}

	return []float32{0.1, 0.2}, nil
}

type mockStore struct {
	upserts   int
	duration  *int
	uid       *string
	replaceCalls  int
	replaced     []models.HighlightCandidate
	UpsertErr error
	ReplaceErr    error
}

func (m *mockStore) UpsertVideo(_ context.Context, source string, uid *string, duration *int) (*models.Video, error) {
	m.upserts++
	m.uid = uid
	m.duration = duration

	if m.UpsertErr != nil {
		return nil, m.UpsertErr
	}

	return &models.Video{ID: 7, Source: source, ExternalUID: uid, DurationSec: duration}, nil
}

func (m *mockStore) ReplaceHighlights(_ context.Context, _ int64, candidates []models.HighlightCandidate) ([]int64, error) {
	m.replaceCalls++
	m.replaced = append(m.replaced, candidates...)

	if m.ReplaceErr != nil {
		return nil, m.ReplaceErr
	}

	ids := make([]int64, len(candidates))
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	return ids, nil
}

type fixture struct {
	deps       Deps
	store      *mockStore
	classifier *mockClassifier
	sleeps     []time.Duration
}

func accept(description string) func(context.Context, models.Segment, string, []models.DetectedObject) (highlight.Decision, error) {
	return func(_ context.Context, seg models.Segment, _ string, objects []models.DetectedObject) (highlight.Decision, error) {
		summary := description
		conf := 0.8

		c, err := models.NewHighlightCandidate(seg, description, &summary, &conf, objects)

		return highlight.Decision{Candidate: c, Source: highlight.SourceModel}, err
	}
}

func newFixture(transcript models.Transcript, scenes []models.Segment) *fixture {
	uid := "abc123"
	f := &fixture{
		store:      &mockStore{},
		classifier: &mockClassifier{DecideFunc: accept("Person enters")},
	}
	f.deps = Deps{
		Fetcher: &mockFetcher{FetchFunc: func(_ context.Context, source string) (models.LocalVideo, error) {
			return models.LocalVideo{Path: "/cache/" + source, ExternalUID: &uid}, nil
		}},
		Transcriber: &mockTranscriber{TranscribeFunc: func(context.Context, string) (models.Transcript, error) {
			return transcript, nil
		}},
		Scenes: &mockScenes{DetectScenesFunc: func(context.Context, string) ([]models.Segment, error) {
			return scenes, nil
		}},
		Sampler: &mockSampler{SampleFunc: func(_ context.Context, path string, s, _ int) ([]models.Frame, error) {
			return []models.Frame{{Path: path + ".jpg", TimestampSec: float64(s)}}, nil
		}},
		Detector: &mockDetector{DetectFunc: func(context.Context, []models.Frame) ([]models.DetectedObject, error) {
			return nil, nil
		}},
		Classifier: f.classifier,
		Store:      f.store,
	}

	return f
}

func (f *fixture) orchestrator(params Params) *Orchestrator {
	params.Sleep = func(_ context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)

		return nil
	}

	return NewOrchestrator(f.deps, params)
}

func TestProcess_NoScenesSingleHighlight(t *testing.T) {
	f := newFixture(models.Transcript{Text: "someone walks in", DurationSec: 30}, nil)

	res, err := f.orchestrator(Params{ClassifyDelay: time.Second}).Process(context.Background(), "clip.mp4")
	require.NoError(t, err)

	require.NotNil(t, res.Video.DurationSec)
	assert.Equal(t, 30, *res.Video.DurationSec)
	assert.Equal(t, "abc123", *res.Video.ExternalUID)
	assert.Equal(t, 1, res.Segments)

	require.Len(t, res.Highlights, 1)
	h := res.Highlights[0]
	assert.Equal(t, 0, h.TsStartSec)
	assert.Equal(t, 30, h.TsEndSec)
	assert.Equal(t, "Person enters", h.Description)
	assert.Equal(t, []float32{0.1, 0.2}, h.Embedding)

	assert.Equal(t, 1, f.store.replaceCalls)
	assert.Equal(t, []int64{1}, res.HighlightIDs)
	assert.Empty(t, f.sleeps, "no delay after the last segment")
	assert.Equal(t, []string{"someone walks in"}, f.classifier.transcript)
}

func TestProcess_ZeroScenesUnknownDurationUsesDefault(t *testing.T) {
	f := newFixture(models.Transcript{}, nil)
	f.deps.Transcriber = &mockTranscriber{TranscribeFunc: func(context.Context, string) (models.Transcript, error) {
		return models.Transcript{}, errors.New("whisper crashed")
	}}
	f.deps.Scenes = &mockScenes{DetectScenesFunc: func(context.Context, string) ([]models.Segment, error) {
		return nil, errors.New("ffmpeg missing")
	}}

	res, err := f.orchestrator(Params{}).Process(context.Background(), "clip.mp4")
	require.NoError(t, err)

	assert.Nil(t, f.store.duration)
	assert.Equal(t, []models.Segment{{StartSec: 0, EndSec: DefaultSegmentSec}}, f.classifier.segments)
	assert.Equal(t, []string{""}, f.classifier.transcript)
	assert.Len(t, res.Highlights, 1)
}

func TestProcess_InvalidScenesAreDropped(t *testing.T) {
	f := newFixture(models.Transcript{DurationSec: 20}, []models.Segment{{StartSec: 5, EndSec: 5}, {StartSec: 8, EndSec: 3}})

	_, err := f.orchestrator(Params{}).Process(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, []models.Segment{{StartSec: 0, EndSec: 20}}, f.classifier.segments)
}

func TestProcess_ProbesDurationWhenTranscriptHasNone(t *testing.T) {
	f := newFixture(models.Transcript{Text: "hi"}, nil)
	f.deps.Prober = &mockProber{ProbeDurationFunc: func(context.Context, string) (float64, error) {
		return 42.9, nil
	}}

	_, err := f.orchestrator(Params{}).Process(context.Background(), "clip.mp4")
	require.NoError(t, err)
	require.NotNil(t, f.store.duration)
	assert.Equal(t, 42, *f.store.duration)
	assert.Equal(t, []models.Segment{{StartSec: 0, EndSec: 42}}, f.classifier.segments)
}

func TestProcess_MultipleScenes(t *testing.T) {
	scenes := []models.Segment{{StartSec: 0, EndSec: 5}, {StartSec: 5, EndSec: 10}, {StartSec: 10, EndSec: 15}}
	f := newFixture(models.Transcript{
		Segments: []models.TranscriptSegment{
			{StartSec: 0, EndSec: 4, Text: "intro"},
			{StartSec: 11, EndSec: 14, Text: "boom"},
		},
	}, scenes)

	f.classifier.DecideFunc = func(ctx context.Context, seg models.Segment, tr string, objs []models.DetectedObject) (highlight.Decision, error) {
		if seg.StartSec == 5 {
			return highlight.Decision{}, nil
		}

		return accept("Something happens")(ctx, seg, tr, objs)
	}

	res, err := f.orchestrator(Params{ClassifyDelay: 2 * time.Second}).Process(context.Background(), "clip.mp4")
	require.NoError(t, err)

	assert.Equal(t, scenes, f.classifier.segments)
	assert.Equal(t, []string{"intro", "", "boom"}, f.classifier.transcript)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, f.sleeps)

	require.Len(t, res.Highlights, 2)
	assert.Equal(t, 0, res.Highlights[0].TsStartSec)
	assert.Equal(t, 10, res.Highlights[1].TsStartSec)
	assert.Equal(t, 1, f.store.replaceCalls)
	assert.Equal(t, 1, f.store.upserts)
}

func TestProcess_ObjectsAreDedupedAndFiltered(t *testing.T) {
	f := newFixture(models.Transcript{DurationSec: 10}, nil)
	f.deps.Detector = &mockDetector{DetectFunc: func(context.Context, []models.Frame) ([]models.DetectedObject, error) {
		return []models.DetectedObject{
			{Name: "Person", Confidence: 0.5},
			{Name: "person", Confidence: 0.9},
			{Name: "cat", Confidence: 0.1},
		}, nil
	}}

	_, err := f.orchestrator(Params{DetectorMinConfidence: 0.35}).Process(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, [][]models.DetectedObject{{{Name: "person", Confidence: 0.9}}}, f.classifier.objects)
}

func TestProcess_SamplerAndDetectorFailuresDegrade(t *testing.T) {
	f := newFixture(models.Transcript{DurationSec: 10}, nil)
	f.deps.Sampler = &mockSampler{SampleFunc: func(context.Context, string, int, int) ([]models.Frame, error) {
		return nil, errors.New("no frames")
	}}
	detectCalled := false
	f.deps.Detector = &mockDetector{DetectFunc: func(context.Context, []models.Frame) ([]models.DetectedObject, error) {
		detectCalled = true

		return nil, errors.New("model missing")
	}}

	res, err := f.orchestrator(Params{}).Process(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.False(t, detectCalled)
	assert.Equal(t, [][]models.DetectedObject{nil}, f.classifier.objects)
	assert.Len(t, res.Highlights, 1)

	f = newFixture(models.Transcript{DurationSec: 10}, nil)
	f.deps.Detector = &mockDetector{DetectFunc: func(context.Context, []models.Frame) ([]models.DetectedObject, error) {
		return nil, errors.New("model missing")
	}}

	_, err = f.orchestrator(Params{}).Process(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Empty(t, f.classifier.objects[0])
}

func TestProcess_SubSecondDurationBoundsSegment(t *testing.T) {
	f := newFixture(models.Transcript{DurationSec: 0.5}, nil)

	res, err := f.orchestrator(Params{}).Process(context.Background(), "clip.mp4")
	require.NoError(t, err)

	require.NotNil(t, f.store.duration)
	assert.Equal(t, 1, *f.store.duration)
	assert.Equal(t, []models.Segment{{StartSec: 0, EndSec: 1}}, f.classifier.segments)
	assert.Equal(t, 1, res.Segments)
}

func TestProcess_NoHighlightsClearsStored(t *testing.T) {
	f := newFixture(models.Transcript{DurationSec: 10}, nil)
	f.classifier.DecideFunc = func(context.Context, models.Segment, string, []models.DetectedObject) (highlight.Decision, error) {
		return highlight.Decision{}, nil
	}

	res, err := f.orchestrator(Params{}).Process(context.Background(), "clip.mp4")
	require.NoError(t, err)
	assert.Empty(t, res.Highlights)
	assert.Equal(t, 1, f.store.replaceCalls)
	assert.Empty(t, f.store.replaced)
	assert.Equal(t, 1, f.store.upserts)
}

func TestProcess_FetchNotFoundIsFatal(t *testing.T) {
	f := newFixture(models.Transcript{}, nil)
	f.deps.Fetcher = &mockFetcher{FetchFunc: func(context.Context, string) (models.LocalVideo, error) {
		return models.LocalVideo{}, huberrors.NewNotFoundError("video", "no such file")
	}}

	_, err := f.orchestrator(Params{}).Process(context.Background(), "missing.mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, huberrors.ErrNotFound)
	assert.Equal(t, 0, f.store.upserts)
	assert.Empty(t, f.classifier.segments)
}

func TestProcess_StoreErrorsAreFatal(t *testing.T) {
	f := newFixture(models.Transcript{DurationSec: 10}, nil)
	f.store.UpsertErr = errors.New("db down")

	_, err := f.orchestrator(Params{}).Process(context.Background(), "clip.mp4")
	require.Error(t, err)
	assert.Empty(t, f.classifier.segments)

	f = newFixture(models.Transcript{DurationSec: 10}, nil)
	f.store.ReplaceErr = errors.New("db down")

	_, err = f.orchestrator(Params{}).Process(context.Background(), "clip.mp4")
	assert.ErrorContains(t, err, "db down")
}

func TestProcess_ClassifierErrorPropagates(t *testing.T) {
	f := newFixture(models.Transcript{DurationSec: 10}, nil)
	f.classifier.DecideFunc = func(context.Context, models.Segment, string, []models.DetectedObject) (highlight.Decision, error) {
		return highlight.Decision{}, context.Canceled
	}

	_, err := f.orchestrator(Params{}).Process(context.Background(), "clip.mp4")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.store.replaceCalls)
}

func TestProcess_CancelDuringDelay(t *testing.T) {
	f := newFixture(models.Transcript{}, []models.Segment{{StartSec: 0, EndSec: 5}, {StartSec: 5, EndSec: 10}})
	o := NewOrchestrator(f.deps, Params{
		ClassifyDelay: time.Minute,
		Sleep:         func(context.Context, time.Duration) error { return context.Canceled },
	})

	_, err := o.Process(context.Background(), "clip.mp4")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, f.classifier.segments, 1)
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))
}
