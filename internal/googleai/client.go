// Package googleai implements the Gemini backend (embeddings and text generation) on the Google Gen AI SDK.
package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/clipmark/highlights/internal/llm"
)

var (
	// ErrEmptyInput is returned when Embed or Generate is called with empty input.
	ErrEmptyInput = errors.New("googleai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("googleai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("googleai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("googleai: embedding dimension mismatch")
)

const (
	// ProviderName identifies this backend in logs and metrics.
	ProviderName = "gemini"

	defaultEmbeddingModel  = "text-embedding-004"
	defaultGenerationModel = "gemini-2.0-flash"
	defaultTemperature     = 0.7
	defaultMaxOutputTokens = 500
)

// models is the subset of *genai.Models the client calls.
type models interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client calls the Gemini API for embeddings and generation.
type Client struct {
	models          models
	embeddingModel  string
	generationModel string
	dimensions      int
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the requested embedding dimension (must match DB column).
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithEmbeddingModel sets the embedding model name. Empty keeps the default.
func WithEmbeddingModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithGenerationModel sets the generation model name. Empty keeps the default.
func WithGenerationModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.generationModel = model
		}
	}
}

// NewClient creates a Gemini client. An empty apiKey is rejected before any network use.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("googleai: GOOGLE_API_KEY is empty")
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	return newClient(genaiClient.Models, opts...), nil
}

func newClient(m models, opts ...ClientOption) *Client {
	client := &Client{
		models:          m,
		embeddingModel:  defaultEmbeddingModel,
		generationModel: defaultGenerationModel,
		dimensions:      llm.EmbeddingDimensions,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Name implements llm.Provider.
func (c *Client) Name() string { return ProviderName }

// Embed returns the embedding vector for text. Its length equals the configured dimensions.
func (c *Client) Embed(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 || c.dimensions > math.MaxInt32 {
		return nil, ErrInvalidDims
	}

	contents := []*genai.Content{genai.NewContentFromText(input, genai.RoleUser)}
	//nolint:gosec // G115: c.dimensions is bounded above by math.MaxInt32
	dimInt32 := int32(c.dimensions)

	resp, err := c.models.EmbedContent(ctx, c.embeddingModel, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dimInt32,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", classify(err))
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Embeddings[0].Values
	if len(emb) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), c.dimensions)
	}

	out := make([]float32, len(emb))
	copy(out, emb)

	return out, nil
}

// Generate returns the model's text for prompt. Rate limit responses wrap llm.ErrQuotaExhausted.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyInput
	}

	resp, err := c.models.GenerateContent(ctx, c.generationModel, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(llm.SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](defaultTemperature),
		MaxOutputTokens:   defaultMaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", classify(err))
	}

	if resp == nil {
		return "", nil
	}

	return strings.TrimSpace(resp.Text()), nil
}

// classify wraps quota errors with llm.ErrQuotaExhausted and leaves others unchanged.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && isQuota(apiErr) {
		return fmt.Errorf("%w: %w", llm.ErrQuotaExhausted, err)
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil && isQuota(*apiErrPtr) {
		return fmt.Errorf("%w: %w", llm.ErrQuotaExhausted, err)
	}

	return err
}

func isQuota(e genai.APIError) bool {
	return e.Code == http.StatusTooManyRequests || e.Status == "RESOURCE_EXHAUSTED"
}

var _ llm.Provider = (*Client)(nil)
