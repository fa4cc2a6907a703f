package main

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource/duckdb"
	_ "github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-ask/pkg/cache"
	"github.com/ekaya-inc/ekaya-ask/pkg/config"
	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/logging"
	"github.com/ekaya-inc/ekaya-ask/pkg/metrics"
	"github.com/ekaya-inc/ekaya-ask/pkg/services"
	"github.com/ekaya-inc/ekaya-ask/pkg/session"
)

// app holds the components shared by the commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	clock  clockwork.Clock

	cache        *cache.Cache
	orchestrator *services.Orchestrator
}

// newLogger builds the root logger from cfg.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	metrics.BuildInfo.WithLabelValues(cfg.Version).Set(1)
	return logger, nil
}

// newApp wires the cache, gateway and pipeline.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	clock := clockwork.NewRealClock()

	store, err := openCacheStore(ctx, cfg, clock, logger)
	if err != nil {
		return nil, err
	}
	c := cache.New(store, clock, logger)

	gateway, err := llm.NewGateway(cfg.GatewayConfig(), logger)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	executor := services.NewExecutor(cfg.Query.RowLimit, cfg.Query.Timeout, logger)
	return &app{
		cfg:          cfg,
		logger:       logger,
		clock:        clock,
		cache:        c,
		orchestrator: services.NewOrchestrator(gateway, c, executor, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Error("Failed to close query cache", zap.Error(err))
	}
}

// openCacheStore opens the configured cache backend, fronted by an
// in-memory tier when a memory capacity is set.
func openCacheStore(ctx context.Context, cfg *config.Config, clock clockwork.Clock, logger *zap.Logger) (cache.Store, error) {
	memory := func() *cache.MemoryStore {
		return cache.NewMemoryStore(cfg.Cache.MemoryTTL, cfg.Cache.MemoryCapacity, clock)
	}

	var (
		store cache.Store
		err   error
	)
	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		logger.Info("Using in-memory query cache")
		return memory(), nil
	case config.CacheBackendPostgres:
		pg := cfg.Cache.Postgres
		logger.Info("Using postgres query cache",
			zap.String("host", pg.Host),
			zap.Int("port", pg.Port),
			zap.String("database", pg.Database))
		store, err = cache.OpenPostgresStore(ctx, pg.PoolConfig(), clock, logger)
	default:
		logger.Info("Using sqlite query cache", zap.String("path", cfg.Cache.SQLitePath))
		store, err = cache.OpenSQLiteStore(cfg.Cache.SQLitePath, clock, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s query cache: %w", cfg.Cache.Backend, err)
	}

	if cfg.Cache.MemoryCapacity > 0 {
		return cache.NewTieredStore(memory(), store, logger), nil
	}
	return store, nil
}

// newSessionStore keeps chat histories for as long as a session cookie lives.
func newSessionStore(cfg *config.Config, clock clockwork.Clock) *session.Store {
	return session.NewStore(cfg.Session.MaxAge, cfg.Session.MaxMessages, clock)
}

// sessionSecret returns the configured cookie secret, or a random one that
// invalidates sessions on restart.
func sessionSecret(cfg *config.Config, logger *zap.Logger) ([]byte, error) {
	if cfg.Session.Secret != "" {
		return []byte(cfg.Session.Secret), nil
	}
	logger.Warn("SESSION_SECRET is not set; sessions will not survive a restart")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	return secret, nil
}

// openFile opens a dataset in place for the one-shot commands.
func openFile(ctx context.Context, path string) (datasource.Source, error) {
	if path == "" {
		return nil, fmt.Errorf("--file is required")
	}
	return datasource.Open(ctx, path)
}
