package storage

import (
	"context"
	"errors"
	"time"

	"gator/internal/database"
	"gator/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an insert collides with a unique key.
	ErrDuplicate = errors.New("already exists")
)

// Store is the slice of persistence the ingestion pipeline depends on.
type Store interface {
	// SelectStalestFeed returns the feed most in need of polling, skipping the
	// given ids. Never-fetched feeds come first. ErrNotFound means no feed is
	// available.
	SelectStalestFeed(ctx context.Context, exclude ...string) (models.Feed, error)
	// MarkFeedFetched sets last_fetched_at and updated_at to now. The
	// timestamp only ever moves forward.
	MarkFeedFetched(ctx context.Context, feedID string) (models.Feed, error)
	// InsertPost stores a post, returning ErrDuplicate if its URL is known.
	InsertPost(ctx context.Context, post *models.Post) (models.Post, error)
	ListFeeds(ctx context.Context) ([]models.Feed, error)
}

// Repository implements Store and the user/follow/post queries on top of sqlx.
type Repository struct {
	db  *database.DB
	now func() time.Time
}

var _ Store = (*Repository)(nil)

// NewRepository creates a new repository instance.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db, now: utcNow}
}

// utcNow truncates to microseconds, the precision both SQLite text timestamps
// and Postgres TIMESTAMP columns round-trip exactly.
func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
