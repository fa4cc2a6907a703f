package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ask/pkg/retry"
)

func fastRetry(attempts int) *retry.Config {
	return &retry.Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestResilientGateway_RetriesTransientFailures(t *testing.T) {
	calls := 0
	mock := &MockGateway{CompleteFunc: func(ctx context.Context, prompt string, params Params) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("error, status code: 503, status: 503 Service Unavailable")
		}
		return "DB", nil
	}}

	g := NewResilientGateway(mock, nil, fastRetry(3), 0, zap.NewNop())
	got, err := g.Complete(context.Background(), "prompt", Params{Operation: "classify"})

	require.NoError(t, err)
	assert.Equal(t, "DB", got)
	assert.Equal(t, 3, mock.CallCount("classify"))
}

func TestResilientGateway_DoesNotRetryPermanentFailures(t *testing.T) {
	mock := &MockGateway{CompleteFunc: func(ctx context.Context, prompt string, params Params) (string, error) {
		return "", errors.New("error, status code: 401, status: 401 Unauthorized")
	}}

	g := NewResilientGateway(mock, nil, fastRetry(5), 0, zap.NewNop())
	_, err := g.Complete(context.Background(), "prompt", Params{Operation: "refine"})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGeneration)
	assert.Equal(t, ErrorTypeAuth, GetErrorType(err))
	assert.Equal(t, 1, mock.CallCount(""))
}

func TestResilientGateway_ExhaustedRetriesReturnGenerationError(t *testing.T) {
	mock := &MockGateway{CompleteFunc: func(ctx context.Context, prompt string, params Params) (string, error) {
		return "", errors.New("error, status code: 429, message: Rate limit reached")
	}}

	g := NewResilientGateway(mock, nil, fastRetry(2), 0, zap.NewNop())
	_, err := g.Complete(context.Background(), "prompt", Params{})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGeneration)
	assert.Equal(t, ErrorTypeRateLimit, GetErrorType(err))
	assert.Equal(t, 2, mock.CallCount(""))
}

func TestResilientGateway_OpenCircuitFailsFast(t *testing.T) {
	mock := &MockGateway{CompleteFunc: func(ctx context.Context, prompt string, params Params) (string, error) {
		return "", errors.New("dial tcp: connection refused")
	}}
	breaker := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 2, ResetAfter: time.Minute}, clockwork.NewFakeClock())

	g := NewResilientGateway(mock, breaker, fastRetry(5), 0, zap.NewNop())
	_, err := g.Complete(context.Background(), "prompt", Params{})

	require.Error(t, err)
	assert.Equal(t, ErrorTypeCircuit, GetErrorType(err))
	assert.Equal(t, 2, mock.CallCount(""), "third attempt should be refused by the open circuit")
	assert.Equal(t, CircuitOpen, breaker.State())
}

func TestResilientGateway_AppliesPerCallTimeout(t *testing.T) {
	mock := &MockGateway{CompleteFunc: func(ctx context.Context, prompt string, params Params) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}

	g := NewResilientGateway(mock, nil, fastRetry(1), 10*time.Millisecond, zap.NewNop())
	_, err := g.Complete(context.Background(), "prompt", Params{})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, apperrors.ErrGeneration)
}

func TestNewGateway(t *testing.T) {
	g, err := NewGateway(Config{Provider: ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "test"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &ResilientGateway{}, g)

	g, err = NewGateway(Config{Provider: ProviderAnthropic, Model: "claude-3-5-haiku-latest", APIKey: "test"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &ResilientGateway{}, g)

	_, err = NewGateway(Config{Provider: ProviderAnthropic, Model: "claude-3-5-haiku-latest"}, zap.NewNop())
	assert.Error(t, err, "anthropic requires an api key")

	_, err = NewGateway(Config{Provider: "bard", Model: "x"}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown llm provider")
}
