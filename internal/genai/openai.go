package genai

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient is the OpenAI-compatible alternative backend, selected with
// MODEL_PROVIDER=openai. The SDK negotiates compressed transport itself.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    zerolog.Logger
}

var _ TextGenerator = (*OpenAIClient)(nil)

// NewOpenAIClient builds a chat-completion backed generator.
func NewOpenAIClient(apiKey, baseURL, model string, maxTokens int, logger zerolog.Logger) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	return &OpenAIClient{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger.With().Str("component", "openai_client").Logger(),
	}
}

// Generate requests model text for the prompt pair.
func (c *OpenAIClient) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: status %d: %s", ErrModelError, apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	choice := resp.Choices[0]
	if choice.Message.Content == "" {
		return "", ErrEmptyResponse
	}

	if choice.FinishReason == openai.FinishReasonLength {
		c.logger.Warn().
			Int("max_tokens", c.maxTokens).
			Msg("model response truncated by token budget")
	}

	return choice.Message.Content, nil
}
