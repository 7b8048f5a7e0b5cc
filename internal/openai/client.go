// Package openai implements the OpenAI backend (embeddings and chat completions) on the official OpenAI Go SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/clipmark/highlights/internal/llm"
	"github.com/clipmark/highlights/pkg/embeddings"
)

var (
	// ErrEmptyInput is returned when Embed or Generate is called with empty input.
	ErrEmptyInput = errors.New("openai: input text is empty")
	// ErrInvalidDims is returned when dimensions is not positive.
	ErrInvalidDims = errors.New("openai: embedding dimensions must be positive")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("openai: no embedding in response")
	// ErrDimensionMismatch is returned when the response embedding length does not match configured dimensions.
	ErrDimensionMismatch = errors.New("openai: embedding dimension mismatch")
	// ErrNoChoices is returned when a chat completion has no choices.
	ErrNoChoices = errors.New("openai: no choices in response")
)

const (
	// ProviderName identifies this backend in logs and metrics.
	ProviderName = "openai"

	defaultEmbeddingModel = openaisdk.EmbeddingModelTextEmbedding3Small
	defaultChatModel      = openaisdk.ChatModelGPT4oMini
	defaultTemperature    = 0.7
	defaultMaxTokens      = 500
)

// Client calls the OpenAI embeddings and chat completions APIs via the official SDK.
type Client struct {
	sdk            openaisdk.Client
	embeddingModel string
	chatModel      string
	dimensions     int
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithDimensions sets the requested embedding dimension (must match DB column).
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithEmbeddingModel sets the embedding model. Empty keeps the default.
func WithEmbeddingModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithChatModel sets the chat model. Empty keeps the default.
func WithChatModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.chatModel = model
		}
	}
}

// NewClient creates an OpenAI client. SDK-level retries are disabled; quota retries belong to the gateway.
// requestOpts are passed to the SDK (e.g. option.WithBaseURL in tests).
func NewClient(apiKey string, opts []ClientOption, requestOpts ...option.RequestOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: OPENAI_API_KEY is empty")
	}

	sdkOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, requestOpts...)

	client := &Client{
		sdk:            openaisdk.NewClient(sdkOpts...),
		embeddingModel: defaultEmbeddingModel,
		chatModel:      defaultChatModel,
		dimensions:     llm.EmbeddingDimensions,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Name implements llm.Provider.
func (c *Client) Name() string { return ProviderName }

// Embed returns the embedding vector for text. The returned slice length equals the configured dimensions.
func (c *Client) Embed(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if c.dimensions <= 0 {
		return nil, ErrInvalidDims
	}

	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(input),
		},
		Model:      c.embeddingModel,
		Dimensions: param.NewOpt(int64(c.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", classify(err))
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Data[0].Embedding
	if len(emb) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(emb), c.dimensions)
	}

	return embeddings.Float64To32(emb), nil
}

// Generate runs one chat completion with the analyst system prompt. 429 responses wrap llm.ErrQuotaExhausted.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyInput
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: c.chatModel,
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(llm.SystemPrompt),
			openaisdk.UserMessage(prompt),
		},
		Temperature: param.NewOpt(defaultTemperature),
		MaxTokens:   param.NewOpt(int64(defaultMaxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", classify(err))
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classify(err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", llm.ErrQuotaExhausted, err)
	}

	return err
}

var _ llm.Provider = (*Client)(nil)
