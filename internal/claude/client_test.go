package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipmark/highlights/internal/llm"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-3-5-haiku-20241022", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, llm.SystemPrompt, req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[` +
			`{"index":0,"message":{"role":"assistant","content":" [] "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	text, err := c.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "[]", text)
}

func TestGenerate_RateLimitIsQuota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate_limit_error","type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, llm.ErrQuotaExhausted)
}

func TestEmbed_IsDeterministic(t *testing.T) {
	c, err := NewClient(Config{APIKey: "key"})
	require.NoError(t, err)

	a, err := c.Embed(context.Background(), "crowd cheers")
	require.NoError(t, err)
	b, _ := c.Embed(context.Background(), "crowd cheers")

	assert.Len(t, a, llm.EmbeddingDimensions)
	assert.Equal(t, a, b)
}

func TestNewClient_EmptyKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}
