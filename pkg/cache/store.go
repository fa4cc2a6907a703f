// Package cache persists answered questions keyed by a fingerprint of the
// question and the schema it was asked against.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

// Store is a cache backend. Implementations are safe for concurrent use; a
// concurrent Lookup observes either the previous or the new entry, never a
// mix of both.
type Store interface {
	// Lookup returns the entry for key, or nil if absent, and records the
	// access. A failure to record the access is logged, not returned.
	Lookup(ctx context.Context, key string) (*models.CacheEntry, error)

	// Store inserts the entry or replaces the one with the same key.
	Store(ctx context.Context, entry *models.CacheEntry) error

	// Touch sets the last access time of key. Missing keys are ignored.
	Touch(ctx context.Context, key string, at time.Time) error

	// Evict deletes entries last accessed before cutoff (zero: no age bound),
	// then the least recently accessed entries beyond maxEntries (<= 0: no
	// count bound). It returns the number of entries deleted.
	Evict(ctx context.Context, cutoff time.Time, maxEntries int) (int, error)

	// Purge deletes every entry.
	Purge(ctx context.Context) (int, error)

	Close() error
}

// record is the column form of a CacheEntry shared by the SQL backends. JSON
// fields are nil when the entry field is nil.
type record struct {
	Key           string
	Question      string
	SchemaHash    string
	SQL           string
	Summary       string
	Visualization *string
	FollowUps     *string
	Results       *string
	Columns       *string
	CreatedAt     int64
	LastAccessed  int64
}

func toRecord(e *models.CacheEntry) (*record, error) {
	r := &record{
		Key:          e.Key,
		Question:     e.Question,
		SchemaHash:   e.SchemaHash,
		SQL:          e.SQL,
		Summary:      e.Summary,
		CreatedAt:    e.CreatedAt.UnixNano(),
		LastAccessed: e.LastAccessed.UnixNano(),
	}

	var err error
	if e.Visualization != nil {
		if r.Visualization, err = encodeJSON(e.Visualization); err != nil {
			return nil, fmt.Errorf("encode visualization: %w", err)
		}
	}
	if e.FollowUps != nil {
		if r.FollowUps, err = encodeJSON(e.FollowUps); err != nil {
			return nil, fmt.Errorf("encode follow-up questions: %w", err)
		}
	}
	if e.Results != nil {
		if r.Results, err = encodeJSON(e.Results); err != nil {
			return nil, fmt.Errorf("encode results: %w", err)
		}
	}
	if e.Columns != nil {
		if r.Columns, err = encodeJSON(e.Columns); err != nil {
			return nil, fmt.Errorf("encode columns: %w", err)
		}
	}
	return r, nil
}

func (r *record) entry() (*models.CacheEntry, error) {
	e := &models.CacheEntry{
		Key:          r.Key,
		Question:     r.Question,
		SchemaHash:   r.SchemaHash,
		SQL:          r.SQL,
		Summary:      r.Summary,
		CreatedAt:    time.Unix(0, r.CreatedAt).UTC(),
		LastAccessed: time.Unix(0, r.LastAccessed).UTC(),
	}

	if r.Visualization != nil {
		if err := json.Unmarshal([]byte(*r.Visualization), &e.Visualization); err != nil {
			return nil, fmt.Errorf("decode visualization: %w", err)
		}
	}
	if r.FollowUps != nil {
		if err := json.Unmarshal([]byte(*r.FollowUps), &e.FollowUps); err != nil {
			return nil, fmt.Errorf("decode follow-up questions: %w", err)
		}
	}
	if r.Results != nil {
		if err := json.Unmarshal([]byte(*r.Results), &e.Results); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
	}
	if r.Columns != nil {
		if err := json.Unmarshal([]byte(*r.Columns), &e.Columns); err != nil {
			return nil, fmt.Errorf("decode columns: %w", err)
		}
	}
	return e, nil
}

func encodeJSON(v any) (*string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func cutoffNanos(cutoff time.Time) int64 {
	if cutoff.IsZero() {
		return 0
	}
	return cutoff.UnixNano()
}
