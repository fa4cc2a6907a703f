package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/database"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

const entryColumns = `cache_key, query, schema_hash, sql_query, summary,
	visualization_data, follow_up_questions, results, "columns",
	created_at, last_accessed`

// SQLiteStore keeps the cache in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	clock  clockwork.Clock
	logger *zap.Logger
}

// OpenSQLiteStore migrates and opens the cache database at path.
func OpenSQLiteStore(path string, clock clockwork.Clock, logger *zap.Logger) (*SQLiteStore, error) {
	if err := database.MigrateSQLite(path, logger); err != nil {
		return nil, err
	}
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(db, clock, logger), nil
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(db *sql.DB, clock clockwork.Clock, logger *zap.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, clock: clock, logger: logger.Named("cache.sqlite")}
}

// Lookup implements Store.
func (s *SQLiteStore) Lookup(ctx context.Context, key string) (*models.CacheEntry, error) {
	var r record
	err := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM query_cache WHERE cache_key = ?`, key,
	).Scan(&r.Key, &r.Question, &r.SchemaHash, &r.SQL, &r.Summary,
		&r.Visualization, &r.FollowUps, &r.Results, &r.Columns,
		&r.CreatedAt, &r.LastAccessed)
	if errors.Is(err, sql.ErrNoRows) {
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
func (s *SQLiteStore) Store(ctx context.Context, entry *models.CacheEntry) error {
	r, err := toRecord(entry)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO query_cache (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			query = excluded.query,
			schema_hash = excluded.schema_hash,
			sql_query = excluded.sql_query,
			summary = excluded.summary,
			visualization_data = excluded.visualization_data,
			follow_up_questions = excluded.follow_up_questions,
			results = excluded.results,
			"columns" = excluded."columns",
			created_at = excluded.created_at,
			last_accessed = excluded.last_accessed`,
		r.Key, r.Question, r.SchemaHash, r.SQL, r.Summary,
		r.Visualization, r.FollowUps, r.Results, r.Columns,
		r.CreatedAt, r.LastAccessed)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Touch implements Store.
func (s *SQLiteStore) Touch(ctx context.Context, key string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE query_cache SET last_accessed = ? WHERE cache_key = ?`, at.UnixNano(), key)
	if err != nil {
		return fmt.Errorf("failed to touch cache entry: %w", err)
	}
	return nil
}

// Evict implements Store.
func (s *SQLiteStore) Evict(ctx context.Context, cutoff time.Time, maxEntries int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin eviction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	if !cutoff.IsZero() {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM query_cache WHERE last_accessed < ?`, cutoffNanos(cutoff))
		if err != nil {
			return 0, fmt.Errorf("failed to evict expired entries: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if maxEntries > 0 {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM query_cache WHERE cache_key NOT IN (
				SELECT cache_key FROM query_cache
				ORDER BY last_accessed DESC, cache_key
				LIMIT ?
			)`, maxEntries)
		if err != nil {
			return 0, fmt.Errorf("failed to evict surplus entries: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit eviction: %w", err)
	}
	return int(total), nil
}

// Purge implements Store.
func (s *SQLiteStore) Purge(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM query_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
