// Package llm is the single gateway to the external language model used by
// every reasoning step of the question pipeline.
package llm

import "context"

// Provider names accepted in configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Params controls one completion.
type Params struct {
	// Operation names the calling step (classify, refine, ...) for logs and metrics.
	Operation   string
	System      string
	Temperature float64
	MaxTokens   int
}

// Gateway turns a prompt into model-generated text. Implementations return
// *Error values for transport, rate-limit and malformed-response failures.
type Gateway interface {
	Complete(ctx context.Context, prompt string, params Params) (string, error)
}
