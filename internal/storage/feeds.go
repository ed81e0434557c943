package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gator/internal/database"
	"gator/internal/models"
)

const feedColumns = `id, name, url, user_id, last_fetched_at, created_at, updated_at`

// CreateFeed inserts a feed. A URL that is already registered yields ErrDuplicate.
func (r *Repository) CreateFeed(ctx context.Context, feed *models.Feed) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO feeds (id, name, url, user_id, last_fetched_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		feed.ID, feed.Name, feed.URL, feed.UserID, feed.LastFetchedAt, feed.CreatedAt, feed.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("feed %s: %w", feed.URL, ErrDuplicate)
		}
		return fmt.Errorf("insert feed: %w", err)
	}
	return nil
}

// GetFeed returns the feed with the given id.
func (r *Repository) GetFeed(ctx context.Context, id string) (models.Feed, error) {
	return r.getFeed(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)
}

// GetFeedByURL returns the feed registered under url.
func (r *Repository) GetFeedByURL(ctx context.Context, url string) (models.Feed, error) {
	return r.getFeed(ctx, `SELECT `+feedColumns+` FROM feeds WHERE url = ?`, url)
}

func (r *Repository) getFeed(ctx context.Context, query string, args ...any) (models.Feed, error) {
	var feed models.Feed
	err := r.db.GetContext(ctx, &feed, r.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Feed{}, ErrNotFound
	}
	if err != nil {
		return models.Feed{}, fmt.Errorf("get feed: %w", err)
	}
	return feed, nil
}

// ListFeeds returns every feed, oldest first.
func (r *Repository) ListFeeds(ctx context.Context) ([]models.Feed, error) {
	feeds := []models.Feed{}
	err := r.db.SelectContext(ctx, &feeds, `SELECT `+feedColumns+` FROM feeds ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	return feeds, nil
}

// ListFeedsWithOwner returns every feed joined with the name of the user who added it.
func (r *Repository) ListFeedsWithOwner(ctx context.Context) ([]models.FeedWithOwner, error) {
	feeds := []models.FeedWithOwner{}
	err := r.db.SelectContext(ctx, &feeds, `
		SELECT f.id, f.name, f.url, f.user_id, f.last_fetched_at, f.created_at, f.updated_at,
		       u.name AS added_by
		FROM feeds f
		LEFT JOIN users u ON u.id = f.user_id
		ORDER BY f.created_at ASC, f.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	return feeds, nil
}

// SelectStalestFeed orders by last_fetched_at with NULLs first, matching
// models.Feed.StalerThan.
func (r *Repository) SelectStalestFeed(ctx context.Context, exclude ...string) (models.Feed, error) {
	query := `SELECT ` + feedColumns + ` FROM feeds`
	var args []any
	if len(exclude) > 0 {
		q, a, err := sqlx.In(query+` WHERE id NOT IN (?)`, exclude)
		if err != nil {
			return models.Feed{}, fmt.Errorf("build stalest feed query: %w", err)
		}
		query, args = q, a
	}
	query += ` ORDER BY last_fetched_at ASC NULLS FIRST, created_at ASC, id ASC LIMIT 1`

	return r.getFeed(ctx, query, args...)
}

// MarkFeedFetched stamps the feed as fetched now. The guard on the current
// value keeps last_fetched_at from moving backwards when writers race.
func (r *Repository) MarkFeedFetched(ctx context.Context, feedID string) (models.Feed, error) {
	now := r.now()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE feeds
		SET last_fetched_at = ?, updated_at = ?
		WHERE id = ? AND (last_fetched_at IS NULL OR last_fetched_at <= ?)`),
		now, now, feedID, now)
	if err != nil {
		return models.Feed{}, fmt.Errorf("mark feed fetched: %w", err)
	}
	return r.GetFeed(ctx, feedID)
}
