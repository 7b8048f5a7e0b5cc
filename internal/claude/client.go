// Package claude implements the Claude backend through Anthropic's OpenAI-compatible
// chat completions endpoint. Claude has no embeddings API, so Embed uses a content hash.
package claude

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clipmark/highlights/internal/llm"
)

const (
	// ProviderName identifies this backend in logs and metrics.
	ProviderName = "claude"

	// DefaultBaseURL is Anthropic's OpenAI-compatible API root.
	DefaultBaseURL = "https://api.anthropic.com/v1"
	defaultModel   = "claude-3-5-haiku-20241022"

	defaultTemperature = 0.7
	defaultMaxTokens   = 500
)

// ErrNoChoices is returned when a completion has no choices.
var ErrNoChoices = errors.New("claude: no choices in response")

// Config configures the Claude client.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
	HTTPClient *http.Client
}

// Client generates text with Claude and embeds with llm.HashEmbedder.
type Client struct {
	cli      *openai.Client
	model    string
	embedder llm.HashEmbedder
}

// NewClient creates a Claude client. An empty API key is rejected.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("claude: CLAUDE_API_KEY is empty")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)

	clientConfig.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &Client{
		cli:      openai.NewClientWithConfig(clientConfig),
		model:    model,
		embedder: llm.HashEmbedder{Dimensions: cfg.Dimensions},
	}, nil
}

// Name implements llm.Provider.
func (c *Client) Name() string { return ProviderName }

// Embed returns a deterministic hash vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.embedder.Embed(ctx, text)
}

// Generate runs one chat completion. 429 responses wrap llm.ErrQuotaExhausted.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llm.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	}

	resp, err := c.cli.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("claude generate: %w", classify(err))
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", llm.ErrQuotaExhausted, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", llm.ErrQuotaExhausted, err)
	}

	return err
}

var _ llm.Provider = (*Client)(nil)
