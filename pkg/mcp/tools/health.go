package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type healthResult struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Datasets int    `json:"datasets"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and number of open datasets.
func RegisterHealthTool(s *server.MCPServer, version string, datasets Datasets) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and the number of open datasets"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := healthResult{Status: "ok", Version: version}
		if datasets != nil {
			res.Datasets = len(datasets.List())
		}
		result, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
