package llm

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/retry"
)

// Config selects and tunes the provider behind the Gateway.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string

	Timeout        time.Duration
	Retry          *retry.Config
	CircuitBreaker CircuitBreakerConfig
}

// NewGateway builds the configured provider wrapped in a ResilientGateway.
func NewGateway(cfg Config, logger *zap.Logger) (Gateway, error) {
	var (
		base Gateway
		err  error
	)

	switch cfg.Provider {
	case ProviderOpenAI, "":
		base, err = NewOpenAIGateway(OpenAIConfig{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Model: cfg.Model}, logger)
	case ProviderAnthropic:
		base, err = NewAnthropicGateway(AnthropicConfig{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Model: cfg.Model}, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s gateway: %w", cfg.Provider, err)
	}

	breaker := NewCircuitBreaker(cfg.CircuitBreaker, clockwork.NewRealClock())
	return NewResilientGateway(base, breaker, cfg.Retry, cfg.Timeout, logger), nil
}
