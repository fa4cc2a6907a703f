package tools

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrimString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"whitespace only", "   ", ""},
		{"leading whitespace", "  test", "test"},
		{"trailing whitespace", "test  ", "test"},
		{"both sides whitespace", "  test  ", "test"},
		{"tabs", "\ttest\t", "test"},
		{"newlines", "\ntest\n", "test"},
		{"mixed whitespace", " \t\ntest\n\t ", "test"},
		{"no whitespace", "test", "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := trimString(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRequireTrimmed(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		want      string
		wantError bool
	}{
		{"present", map[string]any{"handle": "abc"}, "abc", false},
		{"padded", map[string]any{"handle": "  abc\n"}, "abc", false},
		{"blank", map[string]any{"handle": "   "}, "", true},
		{"missing", map[string]any{}, "", true},
		{"wrong type", map[string]any{"handle": 42}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mcp.CallToolRequest{}
			req.Params.Arguments = tt.args

			got, errResult := requireTrimmed(req, "handle")

			if tt.wantError {
				require.NotNil(t, errResult)
				assert.True(t, errResult.IsError)
				return
			}
			assert.Nil(t, errResult)
			assert.Equal(t, tt.want, got)
		})
	}
}
