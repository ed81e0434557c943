// Package scheduler decides which feed is polled next.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gator/internal/models"
	"gator/internal/storage"
)

// Stalest returns the feed that should be polled first, or false when feeds is
// empty. It is the in-memory twin of the storage ordering.
func Stalest(feeds []models.Feed) (models.Feed, bool) {
	if len(feeds) == 0 {
		return models.Feed{}, false
	}
	best := feeds[0]
	for _, f := range feeds[1:] {
		if f.StalerThan(best) {
			best = f
		}
	}
	return best, true
}

// Selector is the storage query the Scheduler runs.
type Selector interface {
	SelectStalestFeed(ctx context.Context, exclude ...string) (models.Feed, error)
}

// Scheduler hands out feeds to concurrent workers. Selection is serialized and
// a feed is leased to one worker until it calls the returned release func, so
// workers in one process never poll the same feed at the same time.
type Scheduler struct {
	store Selector

	mu     sync.Mutex
	leased map[string]struct{}
}

func New(store Selector) *Scheduler {
	return &Scheduler{
		store:  store,
		leased: make(map[string]struct{}),
	}
}

// Next leases the stalest feed that no other worker holds. ok is false when
// there is nothing to poll; that is not an error.
func (s *Scheduler) Next(ctx context.Context) (feed models.Feed, release func(), ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exclude := make([]string, 0, len(s.leased))
	for id := range s.leased {
		exclude = append(exclude, id)
	}

	feed, err = s.store.SelectStalestFeed(ctx, exclude...)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Feed{}, nil, false, nil
	}
	if err != nil {
		return models.Feed{}, nil, false, fmt.Errorf("select stalest feed: %w", err)
	}

	s.leased[feed.ID] = struct{}{}
	var once sync.Once
	release = func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.leased, feed.ID)
			s.mu.Unlock()
		})
	}
	return feed, release, true, nil
}

// Leased reports how many feeds are currently held by workers.
func (s *Scheduler) Leased() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.leased)
}
