package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

var epoch = time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)

type storeFactory func(t *testing.T, clock clockwork.Clock) Store

func sampleEntry(key string, at time.Time) *models.CacheEntry {
	rows := models.Rows{
		{"region": "north", "total": 1250.0, "orders": int64(12)},
		{"region": "south", "total": 980.5, "orders": int64(9)},
		{"region": "1234", "total": nil, "orders": int64(0)},
	}
	return &models.CacheEntry{
		Key:        key,
		Question:   "total sales by region",
		SchemaHash: SchemaHash("Table: sales\n  - region (TEXT)\n"),
		SQL:        "SELECT region, SUM(amount) AS total, COUNT(*) AS orders FROM sales GROUP BY region",
		Summary:    "North leads with 1,250 in sales.",
		Visualization: &models.VisualizationPayload{
			Data:               rows,
			Columns:            []string{"region", "total", "orders"},
			NumericColumns:     []string{"total", "orders"},
			CategoricalColumns: []string{"region"},
			DefaultSettings:    models.ChartSettings{ChartType: "bar", XCol: "region", YCol: "total"},
		},
		FollowUps:    []string{"Which region grew fastest?", "What is the average order?"},
		Results:      rows,
		Columns:      []string{"region", "total", "orders"},
		CreatedAt:    at,
		LastAccessed: at,
	}
}

func runStoreSuite(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("lookup after store returns equal entry", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(epoch)
		s := newStore(t, clock)

		want := sampleEntry("k1", epoch)
		require.NoError(t, s.Store(ctx, want))

		got, err := s.Lookup(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("miss", func(t *testing.T) {
		s := newStore(t, clockwork.NewFakeClockAt(epoch))
		got, err := s.Lookup(ctx, "absent")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("nil and empty fields are preserved", func(t *testing.T) {
		s := newStore(t, clockwork.NewFakeClockAt(epoch))

		want := &models.CacheEntry{
			Key:          "sparse",
			Question:     "q",
			SchemaHash:   "h",
			Summary:      "No results found for this query.",
			FollowUps:    []string{},
			Results:      models.Rows{},
			Columns:      nil,
			CreatedAt:    epoch,
			LastAccessed: epoch,
		}
		require.NoError(t, s.Store(ctx, want))

		got, err := s.Lookup(ctx, "sparse")
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.NotNil(t, got.FollowUps)
		assert.Nil(t, got.Columns)
		assert.Nil(t, got.Visualization)
	})

	t.Run("store replaces entry", func(t *testing.T) {
		s := newStore(t, clockwork.NewFakeClockAt(epoch))

		require.NoError(t, s.Store(ctx, sampleEntry("k", epoch)))

		replacement := sampleEntry("k", epoch)
		replacement.SQL = "SELECT 1"
		replacement.Summary = "replaced"
		replacement.Visualization = nil
		replacement.FollowUps = nil
		require.NoError(t, s.Store(ctx, replacement))

		got, err := s.Lookup(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, replacement, got)
	})

	t.Run("lookup records access", func(t *testing.T) {
		clock := clockwork.NewFakeClockAt(epoch)
		s := newStore(t, clock)

		require.NoError(t, s.Store(ctx, sampleEntry("k", epoch)))
		clock.Advance(time.Hour)

		got, err := s.Lookup(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, epoch, got.CreatedAt)
		assert.Equal(t, epoch.Add(time.Hour), got.LastAccessed)

		again, err := s.Lookup(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, epoch.Add(time.Hour), again.LastAccessed)
	})

	t.Run("evict by age", func(t *testing.T) {
		s := newStore(t, clockwork.NewFakeClockAt(epoch))

		require.NoError(t, s.Store(ctx, sampleEntry("old", epoch)))
		require.NoError(t, s.Store(ctx, sampleEntry("mid", epoch.Add(time.Hour))))
		require.NoError(t, s.Store(ctx, sampleEntry("new", epoch.Add(2*time.Hour))))

		n, err := s.Evict(ctx, epoch.Add(90*time.Minute), 0)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		assertPresent(t, s, "new")
		assertAbsent(t, s, "old", "mid")
	})

	t.Run("evict by count keeps most recently accessed", func(t *testing.T) {
		s := newStore(t, clockwork.NewFakeClockAt(epoch))

		require.NoError(t, s.Store(ctx, sampleEntry("a", epoch.Add(3*time.Minute))))
		require.NoError(t, s.Store(ctx, sampleEntry("b", epoch.Add(1*time.Minute))))
		require.NoError(t, s.Store(ctx, sampleEntry("c", epoch.Add(2*time.Minute))))
		require.NoError(t, s.Touch(ctx, "b", epoch.Add(10*time.Minute)))

		n, err := s.Evict(ctx, time.Time{}, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		assertPresent(t, s, "a", "b")
		assertAbsent(t, s, "c")
	})

	t.Run("evict without bounds is a no-op", func(t *testing.T) {
		s := newStore(t, clockwork.NewFakeClockAt(epoch))
		require.NoError(t, s.Store(ctx, sampleEntry("a", epoch)))

		n, err := s.Evict(ctx, time.Time{}, 0)
		require.NoError(t, err)
		assert.Zero(t, n)
		assertPresent(t, s, "a")
	})

	t.Run("purge", func(t *testing.T) {
		s := newStore(t, clockwork.NewFakeClockAt(epoch))
		for i := range 3 {
			require.NoError(t, s.Store(ctx, sampleEntry(fmt.Sprintf("k%d", i), epoch)))
		}

		n, err := s.Purge(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assertAbsent(t, s, "k0", "k1", "k2")
	})

	t.Run("concurrent writers and readers of one key", func(t *testing.T) {
		s := newStore(t, clockwork.NewFakeClockAt(epoch))

		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers*20)

		for w := range writers {
			wg.Add(2)
			go func() {
				defer wg.Done()
				for i := range 10 {
					e := sampleEntry("shared", epoch)
					e.SQL = fmt.Sprintf("SELECT %d", w*100+i)
					e.Summary = e.SQL
					if err := s.Store(ctx, e); err != nil {
						errs <- err
					}
				}
			}()
			go func() {
				defer wg.Done()
				for range 10 {
					got, err := s.Lookup(ctx, "shared")
					if err != nil {
						errs <- err
						continue
					}
					if got != nil && got.SQL != got.Summary {
						errs <- fmt.Errorf("torn entry: sql %q summary %q", got.SQL, got.Summary)
					}
				}
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Error(err)
		}

		got, err := s.Lookup(ctx, "shared")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, got.SQL, got.Summary)
	})
}

func assertPresent(t *testing.T, s Store, keys ...string) {
	t.Helper()
	for _, k := range keys {
		got, err := s.Lookup(context.Background(), k)
		require.NoError(t, err)
		assert.NotNil(t, got, "expected %s to be cached", k)
	}
}

func assertAbsent(t *testing.T, s Store, keys ...string) {
	t.Helper()
	for _, k := range keys {
		got, err := s.Lookup(context.Background(), k)
		require.NoError(t, err)
		assert.Nil(t, got, "expected %s to be evicted", k)
	}
}
