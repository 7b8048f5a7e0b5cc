package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name       string
	embedFn    func(ctx context.Context, text string) ([]float32, error)
	generateFn func(ctx context.Context, prompt string) (string, error)
	calls      int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.embedFn != nil {
		return f.embedFn(ctx, text)
	}

	return HashEmbedder{}.Embed(ctx, text)
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++

	return f.generateFn(ctx, prompt)
}

type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)

	return nil
}

func built(p Provider) func(context.Context) (Provider, error) {
	return func(context.Context) (Provider, error) { return p, nil }
}

func TestNewGateway_Selection(t *testing.T) {
	gemini := &fakeProvider{name: "gemini"}
	openai := &fakeProvider{name: "openai"}
	claude := &fakeProvider{name: "claude"}

	t.Run("first configured candidate wins", func(t *testing.T) {
		g, err := NewGateway(context.Background(), []Candidate{
			{Name: "gemini", Configured: true, Build: built(gemini)},
			{Name: "openai", Configured: true, Build: built(openai)},
		})
		require.NoError(t, err)
		assert.Equal(t, "gemini", g.Name())
	})

	t.Run("unconfigured candidates are skipped", func(t *testing.T) {
		g, err := NewGateway(context.Background(), []Candidate{
			{Name: "gemini", Configured: false, Build: built(gemini)},
			{Name: "openai", Configured: false, Build: built(openai)},
			{Name: "claude", Configured: true, Build: built(claude)},
		})
		require.NoError(t, err)
		assert.Equal(t, "claude", g.Name())
	})

	t.Run("build failure falls through to next", func(t *testing.T) {
		g, err := NewGateway(context.Background(), []Candidate{
			{Name: "gemini", Configured: true, Build: func(context.Context) (Provider, error) {
				return nil, errors.New("bad key")
			}},
			{Name: "openai", Configured: true, Build: built(openai)},
		})
		require.NoError(t, err)
		assert.Equal(t, "openai", g.Name())
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := NewGateway(context.Background(), []Candidate{
			{Name: "gemini"}, {Name: "openai"}, {Name: "claude"},
		})
		assert.ErrorIs(t, err, ErrNoProviderAvailable)
	})

	t.Run("every configured backend fails", func(t *testing.T) {
		fail := func(context.Context) (Provider, error) { return nil, errors.New("boom") }
		_, err := NewGateway(context.Background(), []Candidate{
			{Name: "gemini", Configured: true, Build: fail},
			{Name: "claude", Configured: true, Build: fail},
		})
		assert.ErrorIs(t, err, ErrNoProviderAvailable)
	})
}

func TestGateway_Generate_RetriesQuotaThenFallsBack(t *testing.T) {
	p := &fakeProvider{name: "gemini", generateFn: func(context.Context, string) (string, error) {
		return "", fmt.Errorf("gemini generate: %w", ErrQuotaExhausted)
	}}
	sleeper := &recordingSleeper{}
	g := NewGatewayFor(p, WithRetryPolicy(RetryPolicy{MaxRetries: 3, Backoff: 5 * time.Second, Sleep: sleeper.sleep}))

	res, err := g.GenerateResult(context.Background(), "prompt")
	require.NoError(t, err)

	assert.Equal(t, 4, p.calls)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, FallbackQuota, res.FallbackReason)
	assert.Equal(t, FallbackPayload, res.Text)
	assert.ErrorIs(t, res.Err, ErrQuotaExhausted)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, sleeper.waits)
}

func TestGateway_Generate_QuotaThenSuccess(t *testing.T) {
	p := &fakeProvider{name: "openai"}
	p.generateFn = func(context.Context, string) (string, error) {
		if p.calls < 3 {
			return "", ErrQuotaExhausted
		}

		return `{"is_highlight": false}`, nil
	}
	sleeper := &recordingSleeper{}
	g := NewGatewayFor(p, WithRetryPolicy(RetryPolicy{MaxRetries: 3, Backoff: time.Second, Sleep: sleeper.sleep}))

	text, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_highlight": false}`, text)
	assert.Equal(t, 3, p.calls)
	assert.Len(t, sleeper.waits, 2)
}

func TestGateway_Generate_OtherErrorsFallBackWithoutRetry(t *testing.T) {
	p := &fakeProvider{name: "claude", generateFn: func(context.Context, string) (string, error) {
		return "", errors.New("500 internal")
	}}
	sleeper := &recordingSleeper{}
	g := NewGatewayFor(p, WithRetryPolicy(RetryPolicy{MaxRetries: 3, Backoff: time.Second, Sleep: sleeper.sleep}))

	res, err := g.GenerateResult(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)
	assert.Empty(t, sleeper.waits)
	assert.Equal(t, FallbackProviderError, res.FallbackReason)
	assert.Equal(t, FallbackPayload, res.Text)
}

func TestGateway_Generate_ContextCancelledPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakeProvider{name: "gemini", generateFn: func(context.Context, string) (string, error) {
		cancel()

		return "", ErrQuotaExhausted
	}}
	g := NewGatewayFor(p)

	_, err := g.Generate(ctx, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, p.calls)
}

func TestGateway_Generate_CancelDuringBackoff(t *testing.T) {
	p := &fakeProvider{name: "gemini", generateFn: func(context.Context, string) (string, error) {
		return "", ErrQuotaExhausted
	}}
	g := NewGatewayFor(p, WithRetryPolicy(RetryPolicy{
		MaxRetries: 3,
		Backoff:    time.Second,
		Sleep: func(context.Context, time.Duration) error {
			return context.DeadlineExceeded
		},
	}))

	_, err := g.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, p.calls)
}

func TestRetryPolicy_ZeroRetries(t *testing.T) {
	calls := 0
	res, err := RetryPolicy{MaxRetries: 0}.Run(context.Background(), func(context.Context) (string, error) {
		calls++

		return "", ErrQuotaExhausted
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, res.FellBack())
}

func TestFallbackPayloadIsValidHighlight(t *testing.T) {
	var payload struct {
		IsHighlight bool    `json:"is_highlight"`
		Description string  `json:"description"`
		Summary     string  `json:"summary"`
		Confidence  float64 `json:"confidence"`
	}
	require.NoError(t, json.Unmarshal([]byte(FallbackPayload), &payload))
	assert.True(t, payload.IsHighlight)
	assert.Equal(t, "Video segment with detected activity", payload.Description)
	assert.Equal(t, "Notable moment", payload.Summary)
	assert.InDelta(t, 0.5, payload.Confidence, 1e-9)
}

func TestHashEmbedder(t *testing.T) {
	a, err := HashEmbedder{}.Embed(context.Background(), "goal scored")
	require.NoError(t, err)
	b, _ := HashEmbedder{}.Embed(context.Background(), "goal scored")
	c, _ := HashEmbedder{}.Embed(context.Background(), "goal missed")

	assert.Len(t, a, EmbeddingDimensions)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGateway_EmbedWrapsError(t *testing.T) {
	p := &fakeProvider{name: "openai", embedFn: func(context.Context, string) ([]float32, error) {
		return nil, errors.New("down")
	}}

	_, err := NewGatewayFor(p).Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai embed: down")
}
