// Package service wires configuration into the gateway, pipeline, retrieval engine and stores, and
// holds the request-level services used by the HTTP API.
package service

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/clipmark/highlights/internal/claude"
	"github.com/clipmark/highlights/internal/config"
	"github.com/clipmark/highlights/internal/googleai"
	"github.com/clipmark/highlights/internal/llm"
	"github.com/clipmark/highlights/internal/observability"
	"github.com/clipmark/highlights/internal/openai"
)

// ProviderCandidates lists the model backends in priority order: Gemini, OpenAI, Claude.
func ProviderCandidates(cfg config.ProviderConfig) []llm.Candidate {
	return []llm.Candidate{
		{
			Name:       googleai.ProviderName,
			Configured: cfg.GoogleAPIKey != "",
			Build: func(ctx context.Context) (llm.Provider, error) {
				return googleai.NewClient(ctx, cfg.GoogleAPIKey,
					googleai.WithDimensions(cfg.EmbeddingDimensions),
					googleai.WithEmbeddingModel(cfg.GeminiEmbeddingModel),
					googleai.WithGenerationModel(cfg.GeminiGenerationModel),
				)
			},
		},
		{
			Name:       openai.ProviderName,
			Configured: cfg.OpenAIAPIKey != "",
			Build: func(context.Context) (llm.Provider, error) {
				return openai.NewClient(cfg.OpenAIAPIKey, []openai.ClientOption{
					openai.WithDimensions(cfg.EmbeddingDimensions),
					openai.WithEmbeddingModel(cfg.OpenAIEmbeddingModel),
					openai.WithChatModel(cfg.OpenAIChatModel),
				})
			},
		},
		{
			Name:       claude.ProviderName,
			Configured: cfg.ClaudeAPIKey != "",
			Build: func(context.Context) (llm.Provider, error) {
				return claude.NewClient(claude.Config{
					APIKey:     cfg.ClaudeAPIKey,
					Model:      cfg.ClaudeModel,
					BaseURL:    cfg.ClaudeBaseURL,
					Dimensions: cfg.EmbeddingDimensions,
				})
			},
		},
	}
}

// GatewayOptions derives the retry policy and rate limit from cfg.
func GatewayOptions(
	cfg config.ProviderConfig, metrics observability.LLMMetrics, logger *slog.Logger,
) []llm.Option {
	opts := []llm.Option{
		llm.WithRetryPolicy(llm.RetryPolicy{MaxRetries: cfg.QuotaMaxRetries, Backoff: cfg.QuotaBackoff}),
		llm.WithMetrics(metrics),
		llm.WithLogger(logger),
	}

	if cfg.GenerateRateLimit > 0 {
		opts = append(opts, llm.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.GenerateRateLimit), 1)))
	}

	return opts
}

// NewGateway selects the first configured backend. Returns llm.ErrNoProviderAvailable when none is.
func NewGateway(
	ctx context.Context, cfg config.ProviderConfig, metrics observability.LLMMetrics, logger *slog.Logger,
) (*llm.Gateway, error) {
	return llm.NewGateway(ctx, ProviderCandidates(cfg), GatewayOptions(cfg, metrics, logger)...)
}
