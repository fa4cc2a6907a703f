package datasource

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
)

// AdapterInfo describes a registered adapter.
type AdapterInfo struct {
	Type        string   `json:"type"`
	DisplayName string   `json:"display_name"`
	Extensions  []string `json:"extensions"` // lower-case, with leading dot
}

// AdapterRegistration pairs adapter info with its opener.
type AdapterRegistration struct {
	Info AdapterInfo
	Open func(ctx context.Context, path string) (Source, error)
}

var (
	registryMu  sync.RWMutex
	registry    = make(map[string]AdapterRegistration)
	byExtension = make(map[string]string)
)

// Register is called by each adapter's init() function.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
	for _, ext := range reg.Info.Extensions {
		byExtension[strings.ToLower(ext)] = reg.Info.Type
	}
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// AdapterFor returns the registration that handles filename's extension.
func AdapterFor(filename string) (AdapterRegistration, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	registryMu.RLock()
	defer registryMu.RUnlock()

	if typ, ok := byExtension[ext]; ok {
		return registry[typ], nil
	}
	if ext == "" {
		return AdapterRegistration{}, fmt.Errorf("%w: file %q has no extension", apperrors.ErrUnsupportedFormat, filepath.Base(filename))
	}
	return AdapterRegistration{}, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, ext)
}

// Open opens the file at path with the adapter registered for its extension.
func Open(ctx context.Context, path string) (Source, error) {
	reg, err := AdapterFor(path)
	if err != nil {
		return nil, err
	}
	src, err := reg.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s source: %v", apperrors.ErrSchema, reg.Info.Type, err)
	}
	return src, nil
}
