package cache

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Janitor applies an eviction policy on a fixed interval.
type Janitor struct {
	cache    *Cache
	policy   Policy
	interval time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger
}

// NewJanitor creates a Janitor. It does nothing until Run is called.
func NewJanitor(cache *Cache, policy Policy, interval time.Duration, clock clockwork.Clock, logger *zap.Logger) *Janitor {
	return &Janitor{
		cache:    cache,
		policy:   policy,
		interval: interval,
		clock:    clock,
		logger:   logger.Named("cache.janitor"),
	}
}

// Run evicts once immediately and then every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	j.sweep(ctx)

	ticker := j.clock.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	n, err := j.cache.Evict(ctx, j.policy)
	if err != nil {
		j.logger.Error("Cache eviction failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("Evicted cache entries", zap.Int("entries", n))
	}
}
