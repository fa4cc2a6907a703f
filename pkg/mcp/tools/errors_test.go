package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
)

// getTextContent extracts the text string from the first text content item
func getTextContent(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	jsonBytes, _ := json.Marshal(result.Content[0])
	var textContent struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	_ = json.Unmarshal(jsonBytes, &textContent)
	return textContent.Text
}

func TestNewErrorResult(t *testing.T) {
	result := NewErrorResult("dataset_not_found", "no dataset with handle \"x\"")

	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	assert.True(t, result.IsError)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &errResp))
	assert.True(t, errResp.Error)
	assert.Equal(t, "dataset_not_found", errResp.Code)
	assert.Equal(t, "no dataset with handle \"x\"", errResp.Message)
	assert.Nil(t, errResp.Details)
}

func TestNewErrorResultWithDetails(t *testing.T) {
	result := NewErrorResultWithDetails("schema_unavailable", "unreadable", map[string]string{"handle": "h1"})

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &raw))
	assert.Equal(t, map[string]any{"handle": "h1"}, raw["details"])
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err        error
		code       string
		actionable bool
	}{
		{fmt.Errorf("data source %q: %w", "x", apperrors.ErrNotFound), "dataset_not_found", true},
		{fmt.Errorf("bad: %w", apperrors.ErrInvalidInput), "invalid_input", true},
		{fmt.Errorf("%w: no tables", apperrors.ErrSchema), "schema_unavailable", true},
		{errors.New("disk full"), "internal_error", false},
	}
	for _, tt := range tests {
		code, actionable := errorCode(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.Equal(t, tt.actionable, actionable, tt.err.Error())
	}
}
