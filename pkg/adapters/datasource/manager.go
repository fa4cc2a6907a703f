package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
)

// ErrUploadTooLarge is returned when an upload exceeds the configured size.
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// Handle is an open data source registered with a Manager.
type Handle struct {
	ID        string    `json:"handle"`
	Filename  string    `json:"filename"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`

	path   string
	owned  bool // file was copied into the upload directory
	Source Source `json:"-"`

	schemaMu sync.Mutex
	schema   string
}

// Schema returns the schema description of the handle's source. The first
// successful describe is kept for the life of the handle.
func (h *Handle) Schema(ctx context.Context, describe func(context.Context, SchemaExtractor) (string, error)) (string, error) {
	h.schemaMu.Lock()
	defer h.schemaMu.Unlock()

	if h.schema != "" {
		return h.schema, nil
	}
	text, err := describe(ctx, h.Source)
	if err != nil {
		return "", err
	}
	h.schema = text
	return text, nil
}

// Manager owns the open data sources. Each upload gets its own Source, so
// sessions never share a connection.
type Manager struct {
	dir      string
	maxBytes int64
	logger   *zap.Logger

	mu      sync.RWMutex
	handles map[string]*Handle
}

// NewManager stores uploads under dir, refusing files larger than maxBytes
// (zero means unlimited).
func NewManager(dir string, maxBytes int64, logger *zap.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Manager{
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logger.Named("datasource"),
		handles:  make(map[string]*Handle),
	}, nil
}

// Save copies an uploaded file into the upload directory and opens it.
func (m *Manager) Save(ctx context.Context, filename string, r io.Reader) (*Handle, error) {
	reg, err := AdapterFor(filename)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	path := filepath.Join(m.dir, id+filepath.Ext(filename))

	if err := m.copyUpload(path, r); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	src, err := reg.Open(ctx, path)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: open %s: %v", apperrors.ErrSchema, filepath.Base(filename), err)
	}

	h := &Handle{
		ID:        id,
		Filename:  filepath.Base(filename),
		Type:      reg.Info.Type,
		CreatedAt: time.Now().UTC(),
		path:      path,
		owned:     true,
		Source:    src,
	}
	m.add(h)
	return h, nil
}

// OpenPath opens an existing file in place.
func (m *Manager) OpenPath(ctx context.Context, path string) (*Handle, error) {
	src, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	h := &Handle{
		ID:        uuid.NewString(),
		Filename:  filepath.Base(path),
		Type:      src.Type(),
		CreatedAt: time.Now().UTC(),
		path:      path,
		Source:    src,
	}
	m.add(h)
	return h, nil
}

// Get returns the handle with the given id.
func (m *Manager) Get(id string) (*Handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.handles[id]
	if !ok {
		return nil, fmt.Errorf("data source %q: %w", id, apperrors.ErrNotFound)
	}
	return h, nil
}

// List returns the open handles, oldest first.
func (m *Manager) List() []*Handle {
	m.mu.RLock()
	out := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		out = append(out, h)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Close closes a handle and deletes its uploaded copy.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	h, ok := m.handles[id]
	delete(m.handles, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("data source %q: %w", id, apperrors.ErrNotFound)
	}
	return m.release(h)
}

// CloseAll closes every open handle.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	handles := m.handles
	m.handles = make(map[string]*Handle)
	m.mu.Unlock()

	for _, h := range handles {
		if err := m.release(h); err != nil {
			m.logger.Warn("Failed to close data source", zap.String("handle", h.ID), zap.Error(err))
		}
	}
}

func (m *Manager) add(h *Handle) {
	m.mu.Lock()
	m.handles[h.ID] = h
	m.mu.Unlock()

	m.logger.Info("Opened data source",
		zap.String("handle", h.ID),
		zap.String("filename", h.Filename),
		zap.String("type", h.Type))
}

func (m *Manager) release(h *Handle) error {
	err := h.Source.Close()
	if h.owned {
		if rmErr := os.Remove(h.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	}
	return err
}

func (m *Manager) copyUpload(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	src := r
	if m.maxBytes > 0 {
		src = io.LimitReader(r, m.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return fmt.Errorf("write upload file: %w", err)
	}
	if m.maxBytes > 0 && n > m.maxBytes {
		return fmt.Errorf("%w (%d bytes)", ErrUploadTooLarge, m.maxBytes)
	}
	return f.Close()
}
