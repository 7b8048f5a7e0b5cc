package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipmark/highlights/internal/api/handlers"
	"github.com/clipmark/highlights/internal/huberrors"
	"github.com/clipmark/highlights/internal/models"
)

const testKey = "test-key"

type mockChatService struct {
	QueryFunc func(ctx context.Context, req *models.ChatQueryRequest) (*models.ChatQueryResponse, error)
}

func (m *mockChatService) Query(ctx context.Context, req *models.ChatQueryRequest) (*models.ChatQueryResponse, error) {
	return m.QueryFunc(ctx, req)
}

type mockVideosService struct {
	EnqueueVideoFunc func(ctx context.Context, req *models.ProcessVideoRequest) (*models.ProcessVideoResponse, error)
	GetVideoFunc     func(ctx context.Context, id int64) (*models.VideoWithHighlights, error)
	DeleteVideoFunc  func(ctx context.Context, id int64) error
}

func (m *mockVideosService) EnqueueVideo(
	ctx context.Context, req *models.ProcessVideoRequest,
) (*models.ProcessVideoResponse, error) {
	return m.EnqueueVideoFunc(ctx, req)
}

func (m *mockVideosService) GetVideo(ctx context.Context, id int64) (*models.VideoWithHighlights, error) {
	return m.GetVideoFunc(ctx, id)
}

func (m *mockVideosService) DeleteVideo(ctx context.Context, id int64) error {
	return m.DeleteVideoFunc(ctx, id)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestRouter(chat *mockChatService, videos *mockVideosService) http.Handler {
	return NewRouter(RouterConfig{
		APIKey:         testKey,
		Health:         handlers.NewHealthHandler(nil),
		Chat:           handlers.NewChatHandler(chat),
		Videos:         handlers.NewVideosHandler(videos),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}

	req.Header.Set("Authorization", "Bearer "+testKey)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func TestChatQuery(t *testing.T) {
	chat := &mockChatService{QueryFunc: func(_ context.Context, req *models.ChatQueryRequest) (*models.ChatQueryResponse, error) {
		assert.Equal(t, "what exploded?", req.Question)

		return &models.ChatQueryResponse{
			Answer: "[30s–40s] Car explodes",
			Mode:   "keyword",
			Matches: []models.SearchResult{
				{ID: 1, VideoID: 1, TsStartSec: 30, TsEndSec: 40, Description: "Car explodes", Score: 0.5},
			},
		}, nil
	}}
	h := newTestRouter(chat, &mockVideosService{})

	rec := do(t, h, http.MethodPost, "/v1/chat/query", `{"question":"what exploded?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ChatQueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "[30s–40s] Car explodes", resp.Answer)
	assert.Equal(t, "keyword", resp.Mode)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, 30, resp.Matches[0].TsStartSec)
}

func TestChatQuery_Validation(t *testing.T) {
	called := false
	chat := &mockChatService{QueryFunc: func(context.Context, *models.ChatQueryRequest) (*models.ChatQueryResponse, error) {
		called = true

		return &models.ChatQueryResponse{}, nil
	}}
	h := newTestRouter(chat, &mockVideosService{})

	for _, body := range []string{`{"question":" a "}`, `{}`, `not json`, `{"question":"ok?","extra":1}`} {
		rec := do(t, h, http.MethodPost, "/v1/chat/query", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	}

	assert.False(t, called)
}

func TestChatQuery_ServiceError(t *testing.T) {
	chat := &mockChatService{QueryFunc: func(context.Context, *models.ChatQueryRequest) (*models.ChatQueryResponse, error) {
		return nil, errors.New("keyword search: connection reset")
	}}

	rec := do(t, newTestRouter(chat, &mockVideosService{}), http.MethodPost, "/v1/chat/query", `{"question":"anything?"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestVideos_Create(t *testing.T) {
	videos := &mockVideosService{
		EnqueueVideoFunc: func(_ context.Context, req *models.ProcessVideoRequest) (*models.ProcessVideoResponse, error) {
			return &models.ProcessVideoResponse{JobID: 7, Source: req.Source}, nil
		},
	}

	rec := do(t, newTestRouter(&mockChatService{}, videos), http.MethodPost, "/v1/videos", `{"source":"/v/a.mp4"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"job_id":7,"source":"/v/a.mp4"}`, rec.Body.String())
}

func TestVideos_CreateTooLarge(t *testing.T) {
	h := NewRouter(RouterConfig{
		APIKey:       testKey,
		MaxBodyBytes: 32,
		Health:       handlers.NewHealthHandler(nil),
		Chat:         handlers.NewChatHandler(&mockChatService{}),
		Videos:       handlers.NewVideosHandler(&mockVideosService{}),
	})

	rec := do(t, h, http.MethodPost, "/v1/videos", `{"source":"`+strings.Repeat("a", 100)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestVideos_GetAndDelete(t *testing.T) {
	videos := &mockVideosService{
		GetVideoFunc: func(_ context.Context, id int64) (*models.VideoWithHighlights, error) {
			if id == 404 {
				return nil, huberrors.NewNotFoundError("video", "video not found")
			}

			return &models.VideoWithHighlights{
				Video:      models.Video{ID: id, Source: "a.mp4"},
				Highlights: []models.Highlight{{ID: 1, VideoID: id, TsStartSec: 0, TsEndSec: 30, Description: "Person enters"}},
			}, nil
		},
		DeleteVideoFunc: func(_ context.Context, id int64) error {
			if id == 404 {
				return huberrors.NewNotFoundError("video", "video not found")
			}

			return nil
		},
	}
	h := newTestRouter(&mockChatService{}, videos)

	rec := do(t, h, http.MethodGet, "/v1/videos/3", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.VideoWithHighlights
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(3), got.ID)
	require.Len(t, got.Highlights, 1)
	assert.Equal(t, "Person enters", got.Highlights[0].Description)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/v1/videos/404", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/videos/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/videos/0", "").Code)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/v1/videos/3", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/v1/videos/404", "").Code)
}

func TestAuthRequiredOnV1Only(t *testing.T) {
	h := newTestRouter(&mockChatService{}, &mockVideosService{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/videos/1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth_DatabaseDown(t *testing.T) {
	rec := httptest.NewRecorder()
	handlers.NewHealthHandler(failingPinger{}).Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
