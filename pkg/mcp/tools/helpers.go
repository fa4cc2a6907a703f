package tools

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// trimString removes leading and trailing whitespace from a string.
// This is a common helper used across MCP tool parameter validation.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

// requireTrimmed returns the named string argument with surrounding
// whitespace removed, or an error result when it is missing or blank.
func requireTrimmed(req mcp.CallToolRequest, name string) (string, *mcp.CallToolResult) {
	value, err := req.RequireString(name)
	if err != nil || trimString(value) == "" {
		return "", NewErrorResult("invalid_input", name+" is required")
	}
	return trimString(value), nil
}
