package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/clipmark/highlights/internal/observability"
)

// Gateway fronts the single backend selected at construction.
type Gateway struct {
	provider Provider
	policy   RetryPolicy
	limiter  *rate.Limiter
	metrics  observability.LLMMetrics
	logger   *slog.Logger
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithRetryPolicy replaces the default quota retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(g *Gateway) {
		g.policy = p
	}
}

// WithRateLimiter throttles Generate calls. A nil limiter disables throttling.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(g *Gateway) {
		g.limiter = l
	}
}

// WithMetrics records generate outcomes. Nil disables metrics.
func WithMetrics(m observability.LLMMetrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGateway builds the first configured candidate that constructs successfully, in slice order.
// Construction failures are logged and the next candidate is tried.
func NewGateway(ctx context.Context, candidates []Candidate, opts ...Option) (*Gateway, error) {
	g := &Gateway{
		policy: DefaultRetryPolicy(),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	for _, c := range candidates {
		if !c.Configured || c.Build == nil {
			continue
		}

		p, err := c.Build(ctx)
		if err != nil {
			g.logger.Warn("llm: backend init failed, trying next", "provider", c.Name, "error", err)

			continue
		}

		g.provider = p
		g.logger.Info("llm: backend selected", "provider", p.Name())

		return g, nil
	}

	return nil, ErrNoProviderAvailable
}

// NewGatewayFor wraps an already-built provider. Used by tests and by callers that pick the backend themselves.
func NewGatewayFor(p Provider, opts ...Option) *Gateway {
	g := &Gateway{
		provider: p,
		policy:   DefaultRetryPolicy(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Name returns the selected backend's name.
func (g *Gateway) Name() string {
	return g.provider.Name()
}

// Embed delegates to the selected backend.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := g.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%s embed: %w", g.provider.Name(), err)
	}

	return vec, nil
}

// Generate returns model output or FallbackPayload. The only error is context cancellation.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	res, err := g.GenerateResult(ctx, prompt)
	if err != nil {
		return "", err
	}

	return res.Text, nil
}

// GenerateResult is Generate with attempt and fallback details.
func (g *Gateway) GenerateResult(ctx context.Context, prompt string) (GenerateResult, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return GenerateResult{}, fmt.Errorf("llm rate limit wait: %w", err)
		}
	}

	name := g.provider.Name()
	policy := g.policy
	userOnRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error) {
		g.logger.Warn("llm: quota exhausted, retrying after backoff",
			"provider", name,
			"attempt", attempt,
			"max_attempts", max(policy.MaxRetries, 0)+1,
			"backoff", policy.Backoff,
			"error", err,
		)

		if g.metrics != nil {
			g.metrics.RecordQuotaRetry(ctx, name)
		}

		if userOnRetry != nil {
			userOnRetry(attempt, err)
		}
	}

	start := time.Now()
	res, err := policy.Run(ctx, func(ctx context.Context) (string, error) {
		return g.provider.Generate(ctx, prompt)
	})

	outcome := observability.GenerateOutcomeOK
	switch {
	case err != nil:
		outcome = observability.GenerateOutcomeCanceled
	case res.FallbackReason == FallbackQuota:
		outcome = observability.GenerateOutcomeFallbackQuota
	case res.FallbackReason == FallbackProviderError:
		outcome = observability.GenerateOutcomeFallbackError
	}

	if res.FellBack() {
		g.logger.Warn("llm: generate failed, using fallback payload",
			"provider", name, "reason", res.FallbackReason, "attempts", res.Attempts, "error", res.Err)
	}

	if g.metrics != nil {
		g.metrics.RecordGenerate(ctx, name, outcome, time.Since(start))
	}

	return res, err
}
