package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

// MemoryStore is a process-local Store. Entries also expire after ttl
// (zero: never) and the least recently used entry is dropped once capacity
// (zero: unbounded) is reached.
type MemoryStore struct {
	items *ttlcache.Cache[string, *models.CacheEntry]
	clock clockwork.Clock

	// mu serialises read-modify-write of entries so a Touch never
	// resurrects an entry replaced by a concurrent Store.
	mu sync.Mutex
}

// NewMemoryStore creates a MemoryStore and starts its expiry loop.
func NewMemoryStore(ttl time.Duration, capacity uint64, clock clockwork.Clock) *MemoryStore {
	opts := []ttlcache.Option[string, *models.CacheEntry]{
		ttlcache.WithTTL[string, *models.CacheEntry](ttl),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, *models.CacheEntry](capacity))
	}
	items := ttlcache.New(opts...)
	go items.Start()

	return &MemoryStore{items: items, clock: clock}
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(ctx context.Context, key string) (*models.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.items.Get(key)
	if item == nil {
		return nil, nil
	}
	touched := *item.Value()
	touched.LastAccessed = s.clock.Now().UTC()
	s.items.Set(key, &touched, ttlcache.DefaultTTL)

	out := touched
	return &out, nil
}

// Store implements Store.
func (s *MemoryStore) Store(ctx context.Context, entry *models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entry
	s.items.Set(entry.Key, &stored, ttlcache.DefaultTTL)
	return nil
}

// Touch implements Store.
func (s *MemoryStore) Touch(ctx context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.items.Get(key)
	if item == nil {
		return nil
	}
	touched := *item.Value()
	touched.LastAccessed = at.UTC()
	s.items.Set(key, &touched, ttlcache.DefaultTTL)
	return nil
}

// Evict implements Store.
func (s *MemoryStore) Evict(ctx context.Context, cutoff time.Time, maxEntries int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*models.CacheEntry
	evicted := 0
	for key, item := range s.items.Items() {
		e := item.Value()
		if !cutoff.IsZero() && e.LastAccessed.Before(cutoff) {
			s.items.Delete(key)
			evicted++
			continue
		}
		kept = append(kept, e)
	}

	if maxEntries > 0 && len(kept) > maxEntries {
		sort.Slice(kept, func(i, j int) bool {
			if !kept[i].LastAccessed.Equal(kept[j].LastAccessed) {
				return kept[i].LastAccessed.After(kept[j].LastAccessed)
			}
			return kept[i].Key < kept[j].Key
		})
		for _, e := range kept[maxEntries:] {
			s.items.Delete(e.Key)
			evicted++
		}
	}
	return evicted, nil
}

// Purge implements Store.
func (s *MemoryStore) Purge(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.items.Len()
	s.items.DeleteAll()
	return n, nil
}

// Close stops the expiry loop.
func (s *MemoryStore) Close() error {
	s.items.Stop()
	return nil
}

// TieredStore answers repeated lookups from memory and falls through to a
// persistent Store.
type TieredStore struct {
	front  *MemoryStore
	back   Store
	logger *zap.Logger
}

// NewTieredStore puts front in front of back. Closing the TieredStore
// closes both.
func NewTieredStore(front *MemoryStore, back Store, logger *zap.Logger) *TieredStore {
	return &TieredStore{front: front, back: back, logger: logger.Named("cache.tiered")}
}

// Lookup implements Store.
func (t *TieredStore) Lookup(ctx context.Context, key string) (*models.CacheEntry, error) {
	if e, _ := t.front.Lookup(ctx, key); e != nil {
		if err := t.back.Touch(ctx, key, e.LastAccessed); err != nil {
			t.logger.Warn("Failed to update last access time", zap.Error(err))
		}
		return e, nil
	}

	e, err := t.back.Lookup(ctx, key)
	if err != nil || e == nil {
		return e, err
	}
	_ = t.front.Store(ctx, e)
	return e, nil
}

// Store implements Store.
func (t *TieredStore) Store(ctx context.Context, entry *models.CacheEntry) error {
	if err := t.back.Store(ctx, entry); err != nil {
		t.front.items.Delete(entry.Key)
		return err
	}
	return t.front.Store(ctx, entry)
}

// Touch implements Store.
func (t *TieredStore) Touch(ctx context.Context, key string, at time.Time) error {
	_ = t.front.Touch(ctx, key, at)
	return t.back.Touch(ctx, key, at)
}

// Evict implements Store. The front tier is cleared whenever the back
// tier loses entries, so it never serves an evicted answer.
func (t *TieredStore) Evict(ctx context.Context, cutoff time.Time, maxEntries int) (int, error) {
	n, err := t.back.Evict(ctx, cutoff, maxEntries)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		_, _ = t.front.Purge(ctx)
	}
	return n, nil
}

// Purge implements Store.
func (t *TieredStore) Purge(ctx context.Context) (int, error) {
	_, _ = t.front.Purge(ctx)
	return t.back.Purge(ctx)
}

// Close implements Store.
func (t *TieredStore) Close() error {
	_ = t.front.Close()
	return t.back.Close()
}
