package datasource

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
)

type fakeSource struct {
	path   string
	closed bool
}

func (f *fakeSource) GetTables(context.Context) ([]string, error) { return []string{"t"}, nil }
func (f *fakeSource) GetColumns(context.Context, string) ([]Column, error) {
	return []Column{{Name: "c", DataType: "TEXT"}}, nil
}
func (f *fakeSource) Query(context.Context, string, int) (*QueryResult, error) {
	return &QueryResult{}, nil
}
func (f *fakeSource) Type() string { return "fake" }
func (f *fakeSource) Close() error { f.closed = true; return nil }

func init() {
	Register(AdapterRegistration{
		Info: AdapterInfo{Type: "fake", DisplayName: "Fake", Extensions: []string{".fake"}},
		Open: func(ctx context.Context, path string) (Source, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			if string(data) == "corrupt" {
				return nil, errors.New("corrupt file")
			}
			return &fakeSource{path: path}, nil
		},
	})
}

func TestManager_SaveGetClose(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, 0, zap.NewNop())
	require.NoError(t, err)

	h, err := m.Save(context.Background(), "../../etc/Report.FAKE", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, "Report.FAKE", h.Filename)
	assert.Equal(t, "fake", h.Type)
	assert.NotEmpty(t, h.ID)

	src := h.Source.(*fakeSource)
	assert.Equal(t, dir, filepath.Dir(src.path), "uploads are stored inside the upload directory")

	got, err := m.Get(h.ID)
	require.NoError(t, err)
	assert.Same(t, h, got)

	require.NoError(t, m.Close(h.ID))
	assert.True(t, src.closed)
	_, statErr := os.Stat(src.path)
	assert.True(t, os.IsNotExist(statErr), "uploaded copy is removed on close")

	_, err = m.Get(h.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.ErrorIs(t, m.Close(h.ID), apperrors.ErrNotFound)
}

func TestManager_SaveRejectsUnsupportedFormat(t *testing.T) {
	m, err := NewManager(t.TempDir(), 0, zap.NewNop())
	require.NoError(t, err)

	for _, name := range []string{"book.xlsx", "notes.txt", "README"} {
		_, err := m.Save(context.Background(), name, strings.NewReader("x"))
		assert.ErrorIs(t, err, apperrors.ErrUnsupportedFormat, name)
	}
}

func TestManager_SaveEnforcesSizeLimit(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, 4, zap.NewNop())
	require.NoError(t, err)

	_, err = m.Save(context.Background(), "big.fake", strings.NewReader("12345"))
	assert.ErrorIs(t, err, ErrUploadTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected upload leaves no file behind")

	_, err = m.Save(context.Background(), "ok.fake", strings.NewReader("1234"))
	assert.NoError(t, err)
}

func TestManager_SaveOpenFailureIsSchemaError(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, 0, zap.NewNop())
	require.NoError(t, err)

	_, err = m.Save(context.Background(), "bad.fake", strings.NewReader("corrupt"))
	assert.ErrorIs(t, err, apperrors.ErrSchema)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestManager_OpenPathAndCloseAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.fake")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	m, err := NewManager(t.TempDir(), 0, zap.NewNop())
	require.NoError(t, err)

	h, err := m.OpenPath(context.Background(), path)
	require.NoError(t, err)
	src := h.Source.(*fakeSource)

	m.CloseAll()
	assert.True(t, src.closed)
	_, err = os.Stat(path)
	assert.NoError(t, err, "files opened in place are not deleted")
}

func TestRegisteredAdapters(t *testing.T) {
	var types []string
	for _, info := range RegisteredAdapters() {
		types = append(types, info.Type)
	}
	assert.Contains(t, types, "fake")
}

func TestEffectiveLimit(t *testing.T) {
	assert.Equal(t, MaxQueryLimit, EffectiveLimit(0))
	assert.Equal(t, MaxQueryLimit, EffectiveLimit(-1))
	assert.Equal(t, MaxQueryLimit, EffectiveLimit(MaxQueryLimit+1))
	assert.Equal(t, 50, EffectiveLimit(50))
}

type decimal struct{ v float64 }

func (d decimal) Float64() float64 { return d.v }

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int64", int64(7), int64(7)},
		{"int32", int32(7), int64(7)},
		{"int", 7, int64(7)},
		{"uint8", uint8(7), int64(7)},
		{"float32", float32(1.5), 1.5},
		{"float64", 2.25, 2.25},
		{"string", "North", "North"},
		{"bytes", []byte("hi"), "hi"},
		{"time", ts, "2024-01-15T10:30:00Z"},
		{"small big.Int", big.NewInt(42), int64(42)},
		{"huge big.Int", huge, "123456789012345678901234567890"},
		{"decimal", decimal{v: 3.75}, 3.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeValue(tt.in))
		})
	}
}

func TestHandle_SchemaIsDescribedOnce(t *testing.T) {
	m, err := NewManager(t.TempDir(), 0, zap.NewNop())
	require.NoError(t, err)
	h, err := m.Save(context.Background(), "data.fake", strings.NewReader("payload"))
	require.NoError(t, err)
	t.Cleanup(m.CloseAll)

	calls := 0
	fail := true
	describe := func(_ context.Context, src SchemaExtractor) (string, error) {
		calls++
		if fail {
			return "", errors.New("busy")
		}
		tables, _ := src.GetTables(context.Background())
		return "Table: " + tables[0] + "\n", nil
	}

	_, err = h.Schema(context.Background(), describe)
	require.Error(t, err)

	fail = false
	for range 3 {
		text, err := h.Schema(context.Background(), describe)
		require.NoError(t, err)
		assert.Equal(t, "Table: t\n", text)
	}
	assert.Equal(t, 2, calls, "failures are retried, successes are kept")
}

func TestManager_List(t *testing.T) {
	m, err := NewManager(t.TempDir(), 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(m.CloseAll)

	assert.Empty(t, m.List())

	a, err := m.Save(context.Background(), "a.fake", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := m.Save(context.Background(), "b.fake", strings.NewReader("b"))
	require.NoError(t, err)

	got := m.List()
	require.Len(t, got, 2)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, []string{got[0].ID, got[1].ID})

	require.NoError(t, m.Close(a.ID))
	got = m.List()
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)
}
