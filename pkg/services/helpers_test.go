package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
)

// scriptedGateway answers each operation with a fixed reply or error.
func scriptedGateway(replies map[string]string, errs map[string]error) *llm.MockGateway {
	return &llm.MockGateway{
		CompleteFunc: func(_ context.Context, _ string, params llm.Params) (string, error) {
			if err, ok := errs[params.Operation]; ok {
				return "", err
			}
			return replies[params.Operation], nil
		},
	}
}

// createSalesSource writes a small SQLite database and opens it read-only.
func createSalesSource(t *testing.T) *sqlite.Adapter {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE sales (id INTEGER PRIMARY KEY, region TEXT, amount REAL);
		INSERT INTO sales (region, amount) VALUES ('north', 100.5), ('south', 50.25), ('north', 20.0);
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src, err := sqlite.NewAdapter(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

// countingExecutor records the statements that reach the data source.
type countingExecutor struct {
	next datasource.QueryExecutor

	mu      sync.Mutex
	queries []string
}

func (c *countingExecutor) Query(ctx context.Context, query string, limit int) (*datasource.QueryResult, error) {
	c.mu.Lock()
	c.queries = append(c.queries, query)
	c.mu.Unlock()
	return c.next.Query(ctx, query, limit)
}

func (c *countingExecutor) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queries)
}
