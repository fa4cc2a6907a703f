package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	"github.com/ekaya-inc/ekaya-ask/pkg/schema"
	"github.com/ekaya-inc/ekaya-ask/pkg/session"
)

// Pipeline describes data sources and answers questions about them.
type Pipeline interface {
	Describe(ctx context.Context, src datasource.SchemaExtractor) (string, error)
	Resolve(ctx context.Context, sess *session.Context, question string, src datasource.QueryExecutor, schemaText string) *models.ResultBundle
}

// Datasets looks up open data sources by handle.
type Datasets interface {
	Get(id string) (*datasource.Handle, error)
	List() []*datasource.Handle
}

// AskToolDeps contains dependencies for the question tools.
type AskToolDeps struct {
	Datasets Datasets
	Pipeline Pipeline
	// Sessions keeps conversation history; nil disables it.
	Sessions *session.Store
	Logger   *zap.Logger
}

// DatasetInfo is one entry of list_datasets.
type DatasetInfo struct {
	Handle    string    `json:"handle"`
	Filename  string    `json:"filename"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// SchemaResult is the describe_schema response.
type SchemaResult struct {
	Handle   string   `json:"handle"`
	Filename string   `json:"filename"`
	Schema   string   `json:"schema"`
	Columns  []string `json:"columns"`
}

// RegisterAskTools registers list_datasets, describe_schema and ask_question.
func RegisterAskTools(s *server.MCPServer, deps *AskToolDeps) {
	registerListDatasetsTool(s, deps)
	registerDescribeSchemaTool(s, deps)
	registerAskQuestionTool(s, deps)
}

func registerListDatasetsTool(s *server.MCPServer, deps *AskToolDeps) {
	tool := mcp.NewTool(
		"list_datasets",
		mcp.WithDescription("List the uploaded datasets that questions can be asked about, oldest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		handles := deps.Datasets.List()
		out := struct {
			Datasets []DatasetInfo `json:"datasets"`
		}{Datasets: make([]DatasetInfo, 0, len(handles))}
		for _, h := range handles {
			out.Datasets = append(out.Datasets, DatasetInfo{
				Handle:    h.ID,
				Filename:  h.Filename,
				Type:      h.Type,
				CreatedAt: h.CreatedAt,
			})
		}
		return jsonResult(out)
	})
}

func registerDescribeSchemaTool(s *server.MCPServer, deps *AskToolDeps) {
	tool := mcp.NewTool(
		"describe_schema",
		mcp.WithDescription(
			"Describe the tables and columns of an uploaded dataset. "+
				"The schema text lists each table followed by its columns and their types.",
		),
		mcp.WithString(
			"handle",
			mcp.Required(),
			mcp.Description("Dataset handle returned by the upload or by list_datasets"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requireTrimmed(req, "handle")
		if errResult != nil {
			return errResult, nil
		}

		h, schemaText, errResult, err := lookupDataset(ctx, deps, id)
		if errResult != nil || err != nil {
			return errResult, err
		}

		return jsonResult(SchemaResult{
			Handle:   h.ID,
			Filename: h.Filename,
			Schema:   schemaText,
			Columns:  schema.Parse(schemaText).ColumnListing(),
		})
	})
}

func registerAskQuestionTool(s *server.MCPServer, deps *AskToolDeps) {
	tool := mcp.NewTool(
		"ask_question",
		mcp.WithDescription(
			"Answer a natural-language question about an uploaded dataset. "+
				"Returns the SQL that was run, a plain-language summary, the result rows, chart settings "+
				"and suggested follow-up questions. Questions about the dataset's columns are answered "+
				"from its schema; questions the data cannot answer get general advice instead.",
		),
		mcp.WithString(
			"handle",
			mcp.Required(),
			mcp.Description("Dataset handle returned by the upload or by list_datasets"),
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question, e.g. 'total sales by region'"),
		),
		mcp.WithString(
			"conversation",
			mcp.Description("Optional conversation id; questions sharing an id are kept in one history"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requireTrimmed(req, "handle")
		if errResult != nil {
			return errResult, nil
		}
		question, errResult := requireTrimmed(req, "question")
		if errResult != nil {
			return errResult, nil
		}

		h, schemaText, errResult, err := lookupDataset(ctx, deps, id)
		if errResult != nil || err != nil {
			return errResult, err
		}

		var sess *session.Context
		if conv := trimString(req.GetString("conversation", "")); conv != "" && deps.Sessions != nil {
			sess = deps.Sessions.Context("mcp:" + conv)
		}

		bundle := deps.Pipeline.Resolve(ctx, sess, question, h.Source, schemaText)
		deps.Logger.Debug("Answered question over MCP",
			zap.String("handle", h.ID),
			zap.String("classification", string(bundle.Classification)),
			zap.Bool("cached", bundle.Cached),
			zap.Bool("failed", bundle.Failed))
		return jsonResult(bundle)
	})
}

// lookupDataset resolves a handle and its schema description. Caller
// mistakes come back as an error result, system failures as an error.
func lookupDataset(ctx context.Context, deps *AskToolDeps, id string) (*datasource.Handle, string, *mcp.CallToolResult, error) {
	h, err := deps.Datasets.Get(id)
	if err != nil {
		code, _ := errorCode(err)
		return nil, "", NewErrorResult(code, fmt.Sprintf("no dataset with handle %q", id)), nil
	}

	schemaText, err := h.Schema(ctx, deps.Pipeline.Describe)
	if err != nil {
		code, actionable := errorCode(err)
		if !actionable {
			return nil, "", nil, fmt.Errorf("describe dataset %s: %w", id, err)
		}
		return nil, "", NewErrorResultWithDetails(code, "the dataset's structure could not be read", map[string]string{
			"handle": id,
		}), nil
	}
	return h, schemaText, nil, nil
}
