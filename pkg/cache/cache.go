package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-ask/pkg/metrics"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

// Policy bounds the cache. Zero values disable the respective bound.
type Policy struct {
	MaxAge     time.Duration
	MaxEntries int
}

// Cache looks up and records answers by (question, schema). Every error it
// returns wraps apperrors.ErrCache.
type Cache struct {
	store  Store
	clock  clockwork.Clock
	logger *zap.Logger
}

// New creates a Cache over store.
func New(store Store, clock clockwork.Clock, logger *zap.Logger) *Cache {
	return &Cache{store: store, clock: clock, logger: logger.Named("cache")}
}

// Lookup returns the cached entry for question asked against schema, or nil.
// An entry recorded against different schema content counts as a miss.
func (c *Cache) Lookup(ctx context.Context, question, schema string) (*models.CacheEntry, error) {
	key := Fingerprint(question, schema)

	entry, err := c.store.Lookup(ctx, key)
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: lookup: %v", apperrors.ErrCache, err)
	}
	if entry == nil {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, nil
	}
	if entry.SchemaHash != SchemaHash(schema) {
		metrics.CacheLookupsTotal.WithLabelValues("stale").Inc()
		c.logger.Warn("Cache entry schema hash mismatch", zap.String("cache_key", key))
		return nil, nil
	}

	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return entry, nil
}

// Store records an answered bundle, replacing any previous entry for the
// same question and schema.
func (c *Cache) Store(ctx context.Context, question, schema string, bundle *models.ResultBundle) error {
	now := c.clock.Now().UTC()
	entry := &models.CacheEntry{
		Key:           Fingerprint(question, schema),
		Question:      question,
		SchemaHash:    SchemaHash(schema),
		SQL:           bundle.SQL,
		Summary:       bundle.Summary,
		Visualization: bundle.Visualization,
		FollowUps:     bundle.FollowUps,
		Results:       bundle.Results,
		Columns:       bundle.Columns,
		CreatedAt:     now,
		LastAccessed:  now,
	}

	if err := c.store.Store(ctx, entry); err != nil {
		metrics.CacheStoresTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: store: %v", apperrors.ErrCache, err)
	}
	metrics.CacheStoresTotal.WithLabelValues("success").Inc()
	return nil
}

// Evict applies policy and returns the number of entries removed.
func (c *Cache) Evict(ctx context.Context, policy Policy) (int, error) {
	var cutoff time.Time
	if policy.MaxAge > 0 {
		cutoff = c.clock.Now().Add(-policy.MaxAge)
	}

	n, err := c.store.Evict(ctx, cutoff, policy.MaxEntries)
	if err != nil {
		return 0, fmt.Errorf("%w: evict: %v", apperrors.ErrCache, err)
	}
	metrics.CacheEvictionsTotal.Add(float64(n))
	return n, nil
}

// Purge removes every entry.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	n, err := c.store.Purge(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: purge: %v", apperrors.ErrCache, err)
	}
	c.logger.Info("Purged cache", zap.Int("entries", n))
	return n, nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
