package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenAIGateway_Complete(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "<think>hmm</think>\n  DB  "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 1, "total_tokens": 13}
		}`)
	}))
	defer server.Close()

	g, err := NewOpenAIGateway(OpenAIConfig{BaseURL: server.URL + "/v1/", APIKey: "test", Model: "gpt-4o-mini"}, zap.NewNop())
	require.NoError(t, err)

	got, err := g.Complete(context.Background(), "Is this answerable?", Params{
		Operation:   "classify",
		System:      "You are an expert data analyst and business consultant.",
		Temperature: 0,
		MaxTokens:   500,
	})
	require.NoError(t, err)
	assert.Equal(t, "DB", got)

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	assert.EqualValues(t, 500, captured["max_tokens"])
	temp, ok := captured["temperature"].(float64)
	require.True(t, ok, "zero temperature must still be sent")
	assert.Less(t, temp, 0.001)

	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestOpenAIGateway_ClassifiesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error": {"message": "Rate limit reached", "type": "requests", "code": "rate_limit_exceeded"}}`)
	}))
	defer server.Close()

	g, err := NewOpenAIGateway(OpenAIConfig{BaseURL: server.URL + "/v1", APIKey: "test", Model: "gpt-4o-mini"}, zap.NewNop())
	require.NoError(t, err)

	_, err = g.Complete(context.Background(), "prompt", Params{})
	require.Error(t, err)
	assert.Equal(t, ErrorTypeRateLimit, GetErrorType(err))
	assert.True(t, IsRetryable(err))

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ProviderOpenAI, llmErr.Provider)
	assert.Equal(t, "gpt-4o-mini", llmErr.Model)
}

func TestOpenAIGateway_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "x", "object": "chat.completion", "choices": []}`)
	}))
	defer server.Close()

	g, err := NewOpenAIGateway(OpenAIConfig{BaseURL: server.URL, Model: "m"}, zap.NewNop())
	require.NoError(t, err)

	_, err = g.Complete(context.Background(), "prompt", Params{})
	assert.Equal(t, ErrorTypeResponse, GetErrorType(err))
}

func TestNewOpenAIGateway_RequiresModel(t *testing.T) {
	_, err := NewOpenAIGateway(OpenAIConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestAnthropicGateway_Complete(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/messages"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "SELECT region, SUM(amount) FROM sales GROUP BY region"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 40, "output_tokens": 12}
		}`)
	}))
	defer server.Close()

	g, err := NewAnthropicGateway(AnthropicConfig{BaseURL: server.URL, APIKey: "test", Model: "claude-3-5-haiku-latest"}, zap.NewNop())
	require.NoError(t, err)

	got, err := g.Complete(context.Background(), "total sales by region", Params{Operation: "generate_sql", MaxTokens: 1000})
	require.NoError(t, err)
	assert.Equal(t, "SELECT region, SUM(amount) FROM sales GROUP BY region", got)

	assert.Equal(t, "claude-3-5-haiku-latest", captured["model"])
	assert.EqualValues(t, 1000, captured["max_tokens"])
	assert.EqualValues(t, 0, captured["temperature"])
}

func TestAnthropicGateway_DefaultMaxTokens(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "msg_2", "type": "message", "role": "assistant", "content": [{"type": "text", "text": "ok"}], "usage": {"input_tokens": 1, "output_tokens": 1}}`)
	}))
	defer server.Close()

	g, err := NewAnthropicGateway(AnthropicConfig{BaseURL: server.URL, APIKey: "test", Model: "claude-3-5-haiku-latest"}, zap.NewNop())
	require.NoError(t, err)

	_, err = g.Complete(context.Background(), "hi", Params{})
	require.NoError(t, err)
	assert.EqualValues(t, DefaultMaxTokens, captured["max_tokens"])
}

func TestCleanCompletion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "  DB\n", "DB"},
		{"think block", "<think>\nthe user wants totals\n</think>\nSELECT 1", "SELECT 1"},
		{"think tag later is kept", "answer <think>x</think>", "answer <think>x</think>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanCompletion(tt.input))
		})
	}
}
