package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// DefaultMaxTokens is sent when a step does not bound its output. The
// Messages API requires max_tokens on every request.
const DefaultMaxTokens = 1024

// AnthropicConfig configures the Anthropic Messages API.
type AnthropicConfig struct {
	BaseURL string // empty means api.anthropic.com
	APIKey  string
	Model   string
}

// AnthropicGateway calls the Anthropic Messages API.
type AnthropicGateway struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicGateway creates a gateway for the given model.
func NewAnthropicGateway(cfg AnthropicConfig, logger *zap.Logger) (*AnthropicGateway, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}

	return &AnthropicGateway{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		model:  cfg.Model,
		logger: logger.Named("anthropic"),
	}, nil
}

// Complete implements Gateway.
func (g *AnthropicGateway) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	temperature := float32(params.Temperature)

	start := time.Now()
	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(g.model),
		System:      params.System,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		return "", g.wrap(ClassifyError(err))
	}

	text, ok := textFromResponse(resp)
	if !ok {
		return "", g.wrap(NewError(ErrorTypeResponse, "no text content in response", false, nil))
	}

	g.logger.Debug("Completion received",
		zap.String("operation", params.Operation),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return CleanCompletion(text), nil
}

func textFromResponse(resp anthropic.MessagesResponse) (string, bool) {
	var sb strings.Builder
	found := false
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			sb.WriteString(*block.Text)
			found = true
		}
	}
	return sb.String(), found
}

func (g *AnthropicGateway) wrap(e *Error) *Error {
	e.Provider = ProviderAnthropic
	e.Model = g.model
	return e
}
