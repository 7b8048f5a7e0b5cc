// Package llm selects one language model backend and wraps its generate call in a
// bounded quota retry that ends in a canonical fallback payload.
package llm

import (
	"context"
	"errors"

	"github.com/clipmark/highlights/pkg/embeddings"
)

// EmbeddingDimensions is the vector width every backend must return.
const EmbeddingDimensions = 768

// SystemPrompt is sent as the system message by chat-style backends.
const SystemPrompt = "You are an expert video analyst. Return only valid JSON as requested."

// FallbackPayload is returned in place of model output once retries are exhausted
// or the backend fails. It parses as a single low-confidence highlight.
const FallbackPayload = `{"is_highlight": true, "description": "Video segment with detected activity", ` +
	`"summary": "Notable moment", "confidence": 0.5}`

var (
	// ErrNoProviderAvailable is returned when no backend has credentials or every configured one failed to build.
	ErrNoProviderAvailable = errors.New(
		"no valid LLM API keys found: set one of GOOGLE_API_KEY, OPENAI_API_KEY or CLAUDE_API_KEY")
	// ErrQuotaExhausted marks a backend error caused by rate limiting or exhausted quota. Backends wrap it.
	ErrQuotaExhausted = errors.New("llm: quota exhausted")
)

// Provider is one language model backend.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, prompt string) (string, error)
}

// Candidate describes a backend the gateway may select. Configured is false when credentials are missing.
type Candidate struct {
	Name       string
	Configured bool
	Build      func(ctx context.Context) (Provider, error)
}

// HashEmbedder provides deterministic content-derived embeddings for backends without an embeddings API.
type HashEmbedder struct {
	Dimensions int
}

// Embed returns the hash vector of text.
func (h HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dims := h.Dimensions
	if dims <= 0 {
		dims = EmbeddingDimensions
	}

	return embeddings.HashVector(text, dims), nil
}
