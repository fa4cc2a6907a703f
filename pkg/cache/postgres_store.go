package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/database"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

// PostgresStore keeps the cache in a shared PostgreSQL database, for
// deployments running several instances.
type PostgresStore struct {
	pool   *pgxpool.Pool
	clock  clockwork.Clock
	logger *zap.Logger
}

// OpenPostgresStore migrates the database at cfg.URL and connects a pool to it.
func OpenPostgresStore(ctx context.Context, cfg *database.PostgresConfig, clock clockwork.Clock, logger *zap.Logger) (*PostgresStore, error) {
	if err := database.MigratePostgres(cfg.URL, logger); err != nil {
		return nil, err
	}
	pool, err := database.NewPostgresPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewPostgresStore(pool, clock, logger), nil
}

// NewPostgresStore wraps a pool connected to a migrated database.
func NewPostgresStore(pool *pgxpool.Pool, clock clockwork.Clock, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, clock: clock, logger: logger.Named("cache.postgres")}
}

// Lookup implements Store.
func (s *PostgresStore) Lookup(ctx context.Context, key string) (*models.CacheEntry, error) {
	var r record
	err := s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM query_cache WHERE cache_key = $1`, key,
	).Scan(&r.Key, &r.Question, &r.SchemaHash, &r.SQL, &r.Summary,
		&r.Visualization, &r.FollowUps, &r.Results, &r.Columns,
		&r.CreatedAt, &r.LastAccessed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	entry, err := r.entry()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.Touch(ctx, key, now); err != nil {
		s.logger.Warn("Failed to update last access time", zap.Error(err))
	} else {
		entry.LastAccessed = time.Unix(0, now.UnixNano()).UTC()
	}
	return entry, nil
}

// Store implements Store.
func (s *PostgresStore) Store(ctx context.Context, entry *models.CacheEntry) error {
	r, err := toRecord(entry)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO query_cache (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (cache_key) DO UPDATE SET
			query = EXCLUDED.query,
			schema_hash = EXCLUDED.schema_hash,
			sql_query = EXCLUDED.sql_query,
			summary = EXCLUDED.summary,
			visualization_data = EXCLUDED.visualization_data,
			follow_up_questions = EXCLUDED.follow_up_questions,
			results = EXCLUDED.results,
			"columns" = EXCLUDED."columns",
			created_at = EXCLUDED.created_at,
			last_accessed = EXCLUDED.last_accessed`,
		r.Key, r.Question, r.SchemaHash, r.SQL, r.Summary,
		r.Visualization, r.FollowUps, r.Results, r.Columns,
		r.CreatedAt, r.LastAccessed)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Touch implements Store.
func (s *PostgresStore) Touch(ctx context.Context, key string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE query_cache SET last_accessed = $1 WHERE cache_key = $2`, at.UnixNano(), key)
	if err != nil {
		return fmt.Errorf("failed to touch cache entry: %w", err)
	}
	return nil
}

// Evict implements Store.
func (s *PostgresStore) Evict(ctx context.Context, cutoff time.Time, maxEntries int) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin eviction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	if !cutoff.IsZero() {
		tag, err := tx.Exec(ctx,
			`DELETE FROM query_cache WHERE last_accessed < $1`, cutoffNanos(cutoff))
		if err != nil {
			return 0, fmt.Errorf("failed to evict expired entries: %w", err)
		}
		total += tag.RowsAffected()
	}

	if maxEntries > 0 {
		tag, err := tx.Exec(ctx, `
			DELETE FROM query_cache WHERE cache_key NOT IN (
				SELECT cache_key FROM query_cache
				ORDER BY last_accessed DESC, cache_key
				LIMIT $1
			)`, maxEntries)
		if err != nil {
			return 0, fmt.Errorf("failed to evict surplus entries: %w", err)
		}
		total += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit eviction: %w", err)
	}
	return int(total), nil
}

// Purge implements Store.
func (s *PostgresStore) Purge(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM query_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
