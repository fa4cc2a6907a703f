// Package sqlite opens uploaded SQLite database files as read-only data sources.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"

	_ "modernc.org/sqlite"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	sqlutil "github.com/ekaya-inc/ekaya-ask/pkg/sql"
)

// Adapter is a read-only SQLite data source.
type Adapter struct {
	db   *sql.DB
	path string
}

// NewAdapter opens the database file at path with query_only set, so the
// connection refuses writes even if a statement slipped past validation.
func NewAdapter(ctx context.Context, path string) (*Adapter, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat database file: %w", err)
	}

	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() +
		"?mode=ro&_pragma=query_only(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A file that is not a SQLite database only fails on first read.
	var n int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return nil, fmt.Errorf("read sqlite schema: %w", err)
	}

	return &Adapter{db: db, path: path}, nil
}

// Type implements datasource.Source.
func (a *Adapter) Type() string { return "sqlite" }

// GetTables implements datasource.SchemaExtractor.
func (a *Adapter) GetTables(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY rowid`)
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
	rows, err := a.db.QueryContext(ctx,
		`SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table)
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
