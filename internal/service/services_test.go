package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipmark/highlights/internal/config"
	"github.com/clipmark/highlights/internal/huberrors"
	"github.com/clipmark/highlights/internal/jobs"
	"github.com/clipmark/highlights/internal/llm"
	"github.com/clipmark/highlights/internal/models"
	"github.com/clipmark/highlights/internal/retrieval"
)

type mockInserter struct {
	InsertFunc func(ctx context.Context, args jobs.ProcessVideoArgs) (int64, error)
}

func (m *mockInserter) InsertProcessVideoJob(ctx context.Context, args jobs.ProcessVideoArgs) (int64, error) {
	return m.InsertFunc(ctx, args)
}

type mockVideoStore struct {
	GetVideoFunc    func(ctx context.Context, id int64) (*models.VideoWithHighlights, error)
	DeleteVideoFunc func(ctx context.Context, id int64) error
}

func (m *mockVideoStore) GetVideo(ctx context.Context, id int64) (*models.VideoWithHighlights, error) {
	return m.GetVideoFunc(ctx, id)
}

func (m *mockVideoStore) DeleteVideo(ctx context.Context, id int64) error {
	return m.DeleteVideoFunc(ctx, id)
}

func TestVideosService_EnqueueVideo(t *testing.T) {
	var got jobs.ProcessVideoArgs

	svc := NewVideosService(&mockVideoStore{}, &mockInserter{
		InsertFunc: func(_ context.Context, args jobs.ProcessVideoArgs) (int64, error) {
			got = args

			return 42, nil
		},
	})

	resp, err := svc.EnqueueVideo(context.Background(), &models.ProcessVideoRequest{Source: "  /videos/a.mp4 "})
	require.NoError(t, err)
	assert.Equal(t, int64(42), resp.JobID)
	assert.Equal(t, "/videos/a.mp4", resp.Source)
	assert.Equal(t, "/videos/a.mp4", got.Source)
}

func TestVideosService_EnqueueVideo_Errors(t *testing.T) {
	called := false
	inserter := &mockInserter{InsertFunc: func(context.Context, jobs.ProcessVideoArgs) (int64, error) {
		called = true

		return 0, errors.New("queue down")
	}}
	svc := NewVideosService(&mockVideoStore{}, inserter)

	_, err := svc.EnqueueVideo(context.Background(), &models.ProcessVideoRequest{Source: "   "})
	require.ErrorIs(t, err, huberrors.ErrValidation)
	assert.False(t, called)

	_, err = svc.EnqueueVideo(context.Background(), &models.ProcessVideoRequest{Source: "a.mp4"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue down")
}

func TestVideosService_GetAndDelete(t *testing.T) {
	store := &mockVideoStore{
		GetVideoFunc: func(_ context.Context, id int64) (*models.VideoWithHighlights, error) {
			if id != 1 {
				return nil, huberrors.NewNotFoundError("video", "video not found")
			}

			return &models.VideoWithHighlights{Video: models.Video{ID: 1}}, nil
		},
		DeleteVideoFunc: func(_ context.Context, id int64) error {
			return huberrors.NewNotFoundError("video", "video not found")
		},
	}
	svc := NewVideosService(store, &mockInserter{})

	v, err := svc.GetVideo(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ID)

	_, err = svc.GetVideo(context.Background(), 2)
	require.ErrorIs(t, err, huberrors.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteVideo(context.Background(), 9), huberrors.ErrNotFound)
}

type answererFunc func(ctx context.Context, q string) (*retrieval.Answer, error)

func (f answererFunc) Answer(ctx context.Context, q string) (*retrieval.Answer, error) { return f(ctx, q) }

func TestChatService_Query(t *testing.T) {
	svc := NewChatService(answererFunc(func(_ context.Context, q string) (*retrieval.Answer, error) {
		assert.Equal(t, "what exploded?", q)

		return &retrieval.Answer{Text: retrieval.NoResultsAnswer, Mode: retrieval.ModeNone}, nil
	}))

	resp, err := svc.Query(context.Background(), &models.ChatQueryRequest{Question: "what exploded?"})
	require.NoError(t, err)
	assert.Equal(t, retrieval.NoResultsAnswer, resp.Answer)
	assert.Equal(t, retrieval.ModeNone, resp.Mode)
	assert.NotNil(t, resp.Matches)
	assert.Empty(t, resp.Matches)

	failing := NewChatService(answererFunc(func(context.Context, string) (*retrieval.Answer, error) {
		return nil, errors.New("keyword search: boom")
	}))
	_, err = failing.Query(context.Background(), &models.ChatQueryRequest{Question: "x?"})
	assert.Error(t, err)
}

func TestProviderCandidates_Order(t *testing.T) {
	cands := ProviderCandidates(config.ProviderConfig{OpenAIAPIKey: "sk", ClaudeAPIKey: "ck"})
	require.Len(t, cands, 3)

	names := []string{cands[0].Name, cands[1].Name, cands[2].Name}
	assert.Equal(t, []string{"gemini", "openai", "claude"}, names)
	assert.False(t, cands[0].Configured)
	assert.True(t, cands[1].Configured)
	assert.True(t, cands[2].Configured)
}

func TestNewGateway_NoKeys(t *testing.T) {
	_, err := NewGateway(context.Background(), config.ProviderConfig{}, nil, nil)
	assert.ErrorIs(t, err, llm.ErrNoProviderAvailable)
}

func TestGatewayOptions_RateLimit(t *testing.T) {
	assert.Len(t, GatewayOptions(config.ProviderConfig{}, nil, nil), 3)
	assert.Len(t, GatewayOptions(config.ProviderConfig{GenerateRateLimit: 2}, nil, nil), 4)
}

func TestOpenStore_SQLite(t *testing.T) {
	cfg := &config.Config{StoreDriver: config.StoreDriverSQLite, SQLitePath: t.TempDir() + "/h.db"}

	h, err := OpenStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer h.Close()

	assert.Nil(t, h.Pool)

	_, err = h.Store.GetVideo(context.Background(), 1)
	assert.ErrorIs(t, err, huberrors.ErrNotFound)
}
