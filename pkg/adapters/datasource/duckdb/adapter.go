// Package duckdb loads delimited text uploads into an in-memory DuckDB
// database and serves them as a data source.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	sqlutil "github.com/ekaya-inc/ekaya-ask/pkg/sql"
)

// TableName is the table an uploaded file is loaded into.
const TableName = "uploaded_data"

// Adapter is an in-memory DuckDB holding one uploaded file.
type Adapter struct {
	db *sql.DB
}

// NewAdapter loads the delimited file at path into TableName. Column types
// are inferred by read_csv_auto. External access is switched off afterwards
// so generated SQL cannot read other files from disk.
func NewAdapter(ctx context.Context, path string) (*Adapter, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE %s AS SELECT * FROM read_csv_auto(%s)`, TableName, quoteLiteral(path)),
		`SET enable_external_access = false`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	return &Adapter{db: db}, nil
}

// Type implements datasource.Source.
func (a *Adapter) Type() string { return "duckdb" }

// GetTables implements datasource.SchemaExtractor.
func (a *Adapter) GetTables(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT table_name
		FROM duckdb_tables()
		WHERE schema_name = 'main' AND NOT internal
		ORDER BY table_oid`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// GetColumns implements datasource.SchemaExtractor.
func (a *Adapter) GetColumns(ctx context.Context, table string) ([]datasource.Column, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'main' AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []datasource.Column
	for rows.Next() {
		var col datasource.Column
		if err := rows.Scan(&col.Name, &col.DataType); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// Query implements datasource.QueryExecutor.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryResult, error) {
	rows, err := a.db.QueryContext(ctx, sqlutil.BoundRows(sqlQuery, datasource.EffectiveLimit(limit)))
	if err != nil {
		return nil, err
	}
	return datasource.CollectRows(rows)
}

// Close implements datasource.Source.
func (a *Adapter) Close() error {
	return a.db.Close()
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
