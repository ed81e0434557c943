package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gator/internal/models"
	"gator/internal/storage"
)

func fetchedAt(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

// memSelector applies Stalest over a fixed slice.
type memSelector struct {
	mu    sync.Mutex
	feeds []models.Feed
	err   error
}

func (m *memSelector) SelectStalestFeed(_ context.Context, exclude ...string) (models.Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Feed{}, m.err
	}

	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var candidates []models.Feed
	for _, f := range m.feeds {
		if !skip[f.ID] {
			candidates = append(candidates, f)
		}
	}
	f, ok := Stalest(candidates)
	if !ok {
		return models.Feed{}, storage.ErrNotFound
	}
	return f, nil
}

func TestStalest_Empty(t *testing.T) {
	_, ok := Stalest(nil)
	assert.False(t, ok)
}

func TestStalest_NullBeatsAnyTimestamp(t *testing.T) {
	now := time.Now()
	feeds := []models.Feed{
		{ID: "a", LastFetchedAt: fetchedAt(now.Add(-100 * 365 * 24 * time.Hour))},
		{ID: "b", LastFetchedAt: fetchedAt(now)},
		{ID: "c"},
		{ID: "d", LastFetchedAt: fetchedAt(time.Time{})},
	}

	got, ok := Stalest(feeds)
	require.True(t, ok)
	assert.Equal(t, "c", got.ID)
}

func TestStalest_MinimumTimestamp(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	feeds := []models.Feed{
		{ID: "a", LastFetchedAt: fetchedAt(base.Add(3 * time.Hour))},
		{ID: "b", LastFetchedAt: fetchedAt(base.Add(time.Hour))},
		{ID: "c", LastFetchedAt: fetchedAt(base.Add(2 * time.Hour))},
	}

	got, ok := Stalest(feeds)
	require.True(t, ok)
	assert.Equal(t, "b", got.ID)
}

func TestStalerThan_IsAStrictOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	feeds := []models.Feed{
		{ID: "e", LastFetchedAt: fetchedAt(base.Add(time.Hour)), CreatedAt: base},
		{ID: "b", CreatedAt: base.Add(time.Minute)},
		{ID: "d", LastFetchedAt: fetchedAt(base), CreatedAt: base},
		{ID: "a", CreatedAt: base},
		{ID: "c", LastFetchedAt: fetchedAt(base), CreatedAt: base},
	}

	sort.Slice(feeds, func(i, j int) bool { return feeds[i].StalerThan(feeds[j]) })

	var ids []string
	for _, f := range feeds {
		ids = append(ids, f.ID)
		assert.False(t, f.StalerThan(f))
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
}

func TestScheduler_NoFeeds(t *testing.T) {
	s := New(&memSelector{})

	_, release, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, release)
}

func TestScheduler_StoreError(t *testing.T) {
	s := New(&memSelector{err: errors.New("database is locked")})

	_, _, ok, err := s.Next(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestScheduler_LeasesAreExclusive(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sel := &memSelector{feeds: []models.Feed{
		{ID: "fresh", LastFetchedAt: fetchedAt(base.Add(time.Hour))},
		{ID: "never"},
		{ID: "stale", LastFetchedAt: fetchedAt(base)},
	}}
	s := New(sel)
	ctx := context.Background()

	first, releaseFirst, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "never", first.ID)

	second, releaseSecond, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "stale", second.ID)
	assert.Equal(t, 2, s.Leased())

	releaseFirst()
	releaseFirst()
	assert.Equal(t, 1, s.Leased())

	again, releaseAgain, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "never", again.ID)

	releaseSecond()
	releaseAgain()
	assert.Zero(t, s.Leased())
}

func TestScheduler_ConcurrentWorkersGetDistinctFeeds(t *testing.T) {
	var feeds []models.Feed
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		feeds = append(feeds, models.Feed{ID: id})
	}
	s := New(&memSelector{feeds: feeds})

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for i := 0; i < len(feeds); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, _, ok, err := s.Next(context.Background())
			if err != nil || !ok {
				return
			}
			mu.Lock()
			seen[f.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, len(feeds))
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}
