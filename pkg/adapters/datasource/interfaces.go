// Package datasource defines the tabular data sources questions are asked
// against, and the adapters that open uploaded files as such sources.
package datasource

import "context"

// MaxQueryLimit is the hard cap on rows returned by Query.
const MaxQueryLimit = 1000

// Column is a column name with its declared type.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

// QueryResult holds the rows of one executed statement. Values are
// normalised by NormalizeValue.
type QueryResult struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// SchemaExtractor enumerates tables and columns in the source's own order.
type SchemaExtractor interface {
	// GetTables returns user table names in enumeration order.
	GetTables(ctx context.Context) ([]string, error)

	// GetColumns returns the columns of table in ordinal order.
	GetColumns(ctx context.Context, table string) ([]Column, error)
}

// QueryExecutor runs read statements.
type QueryExecutor interface {
	// Query runs a SELECT and returns bounded results. The statement is
	// always wrapped with a LIMIT:
	//   - limit <= 0: uses MaxQueryLimit
	//   - limit > MaxQueryLimit: capped to MaxQueryLimit
	Query(ctx context.Context, sqlQuery string, limit int) (*QueryResult, error)
}

// Source is an open data source. Each implementation owns its connection
// and must be closed when done.
type Source interface {
	SchemaExtractor
	QueryExecutor

	// Type returns the adapter type ("sqlite", "duckdb").
	Type() string

	Close() error
}

// EffectiveLimit applies the MaxQueryLimit rules to a requested limit.
func EffectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}
