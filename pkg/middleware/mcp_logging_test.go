package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-ask/pkg/logging"
)

const askRequest = `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ask_question","arguments":{"handle":"h1","question":"total sales by region"}}}`

func serveMCP(t *testing.T, logger *zap.Logger, reqBody string, respond func(w http.ResponseWriter)) *httptest.ResponseRecorder {
	t.Helper()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { respond(w) })
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(reqBody))
	rec := httptest.NewRecorder()
	MCPRequestLogger(logger)(handler).ServeHTTP(rec, req)
	return rec
}

func TestMCPRequestLogger(t *testing.T) {
	t.Run("logs successful tool call", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		serveMCP(t, zap.New(core), askRequest, func(w http.ResponseWriter) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"{}"}]}}`))
		})

		require.Equal(t, 2, logs.Len(), "Should log request and response")

		requestLog := logs.All()[0]
		assert.Equal(t, "MCP request", requestLog.Message)
		assert.Equal(t, "tools/call", requestLog.ContextMap()["method"])
		assert.Equal(t, "ask_question", requestLog.ContextMap()["tool"])
		args := requestLog.ContextMap()["arguments"].(map[string]any)
		assert.Equal(t, "total sales by region", args["question"])

		responseLog := logs.All()[1]
		assert.Equal(t, "MCP response success", responseLog.Message)
		assert.Equal(t, "ask_question", responseLog.ContextMap()["tool"])
		assert.NotNil(t, responseLog.ContextMap()["duration"])
	})

	t.Run("logs protocol error response", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		serveMCP(t, zap.New(core), askRequest, func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"unknown tool"}}`))
		})

		require.Equal(t, 2, logs.Len())
		responseLog := logs.All()[1]
		assert.Equal(t, "MCP response error", responseLog.Message)
		assert.Equal(t, int64(-32602), responseLog.ContextMap()["error_code"])
		assert.Equal(t, "unknown tool", responseLog.ContextMap()["error_message"])
	})

	t.Run("logs tool level error result", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		serveMCP(t, zap.New(core), askRequest, func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"isError":true,"content":[{"type":"text","text":"{\"code\":\"not_found\"}"}]}}`))
		})

		require.Equal(t, 2, logs.Len())
		assert.Equal(t, "MCP tool error", logs.All()[1].Message)
	})

	t.Run("parses event stream responses", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		serveMCP(t, zap.New(core), askRequest, func(w http.ResponseWriter) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write([]byte("event: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":1,\"error\":{\"code\":-32603,\"message\":\"boom\"}}\n\n"))
		})

		require.Equal(t, 2, logs.Len())
		responseLog := logs.All()[1]
		assert.Equal(t, "MCP response error", responseLog.Message)
		assert.Equal(t, "boom", responseLog.ContextMap()["error_message"])
	})

	t.Run("passes through with nil logger", func(t *testing.T) {
		called := false
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()
		MCPRequestLogger(nil)(handler).ServeHTTP(rec, req)

		assert.True(t, called, "Should pass through to handler")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("handles malformed JSON gracefully", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)

		rec := serveMCP(t, zap.New(core), `{invalid json`, func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`not json either`))
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "not json either", rec.Body.String(), "body reaches the client untouched")
		assert.GreaterOrEqual(t, logs.Len(), 1)
	})

	t.Run("request body is still readable downstream", func(t *testing.T) {
		var seen string
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := new(bytes.Buffer)
			_, _ = buf.ReadFrom(r.Body)
			seen = buf.String()
		})
		req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(askRequest))
		MCPRequestLogger(zap.NewNop())(handler).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, askRequest, seen)
	})
}

func TestSanitizeArguments(t *testing.T) {
	t.Run("redacts sensitive keywords", func(t *testing.T) {
		args := map[string]any{
			"password":      "secret",
			"api_key":       "abc123",
			"access_token":  "xyz789",
			"client_secret": "hidden",
			"credential":    "cred123",
			"question":      "visible",
		}

		result := sanitizeArguments(args)

		for _, k := range []string{"password", "api_key", "access_token", "client_secret", "credential"} {
			assert.Equal(t, logging.RedactedText, result[k], k)
		}
		assert.Equal(t, "visible", result["question"])
	})

	t.Run("shortens long questions", func(t *testing.T) {
		long := strings.Repeat("how much ", 40)

		result := sanitizeArguments(map[string]any{"question": long, "short": "abc"})

		truncated := result["question"].(string)
		assert.LessOrEqual(t, len(truncated), logging.MaxTextLogLength+3)
		assert.True(t, strings.HasSuffix(truncated, "..."))
		assert.Equal(t, "abc", result["short"])
	})

	t.Run("redacts keys pasted into free text", func(t *testing.T) {
		result := sanitizeArguments(map[string]any{"question": "my key is sk-abcdefgh12345678, why?"})
		assert.NotContains(t, result["question"], "sk-abcdefgh12345678")
	})

	t.Run("handles nil and empty arguments", func(t *testing.T) {
		assert.Nil(t, sanitizeArguments(nil))
		assert.Empty(t, sanitizeArguments(map[string]any{}))
	})

	t.Run("preserves non-string values", func(t *testing.T) {
		args := map[string]any{"limit": 42, "verbose": true, "none": nil}
		result := sanitizeArguments(args)
		assert.Equal(t, 42, result["limit"])
		assert.Equal(t, true, result["verbose"])
		assert.Nil(t, result["none"])
	})
}
