package llm

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	BaseURL string // empty means api.openai.com
	APIKey  string
	Model   string
}

// OpenAIGateway calls an OpenAI-compatible chat completions API.
type OpenAIGateway struct {
	client  *openai.Client
	model   string
	baseURL string
	logger  *zap.Logger
}

// NewOpenAIGateway creates a gateway for the given endpoint and model.
func NewOpenAIGateway(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIGateway, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &OpenAIGateway{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		baseURL: clientConfig.BaseURL,
		logger:  logger.Named("openai"),
	}, nil
}

// Complete implements Gateway.
func (g *OpenAIGateway) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if params.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: params.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	// go-openai drops a zero temperature from the request body, which makes
	// the server fall back to its default of 1.
	temperature := float32(params.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		return "", g.wrap(ClassifyError(err))
	}

	if len(resp.Choices) == 0 {
		return "", g.wrap(NewError(ErrorTypeResponse, "no choices in response", false, nil))
	}

	g.logger.Debug("Completion received",
		zap.String("operation", params.Operation),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return CleanCompletion(resp.Choices[0].Message.Content), nil
}

func (g *OpenAIGateway) wrap(e *Error) *Error {
	e.Provider = ProviderOpenAI
	e.Model = g.model
	return e
}
