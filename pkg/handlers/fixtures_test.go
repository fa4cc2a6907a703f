package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource/sqlite"
)

const salesSchema = "Table: sales\n  - id (INTEGER)\n  - region (TEXT)\n"

// fakeDescriber returns a fixed description, or err.
type fakeDescriber struct {
	err error

	mu    sync.Mutex
	calls int
}

func (d *fakeDescriber) Describe(context.Context, datasource.SchemaExtractor) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return "", d.err
	}
	return salesSchema, nil
}

// salesDB writes a small SQLite database and returns its contents.
func salesDB(t *testing.T) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sales.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE sales (id INTEGER PRIMARY KEY, region TEXT); INSERT INTO sales (region) VALUES ('north'), ('south');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func newDatasets(t *testing.T, maxBytes int64) *datasource.Manager {
	t.Helper()
	m, err := datasource.NewManager(t.TempDir(), maxBytes, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(m.CloseAll)
	return m
}

// uploadRequest builds a multipart POST /api/uploads request.
func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
