package storage

import (
	"context"
	"fmt"
	"time"

	"gator/internal/database"
	"gator/internal/models"
)

const postColumns = `id, title, url, description, published_at, feed_id, created_at, updated_at`

// InsertPost relies on the UNIQUE(url) constraint for deduplication; there is
// no existence check beforehand.
func (r *Repository) InsertPost(ctx context.Context, post *models.Post) (models.Post, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO posts (id, title, url, description, published_at, feed_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO NOTHING`),
		post.ID, post.Title, post.URL, post.Description, post.PublishedAt.UTC(), post.FeedID,
		post.CreatedAt, post.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.Post{}, fmt.Errorf("post %s: %w", post.URL, ErrDuplicate)
		}
		return models.Post{}, fmt.Errorf("insert post: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return models.Post{}, fmt.Errorf("insert post rows affected: %w", err)
	}
	if n == 0 {
		return models.Post{}, fmt.Errorf("post %s: %w", post.URL, ErrDuplicate)
	}
	return *post, nil
}

// ListPostsForUser returns the newest posts from feeds the user follows.
func (r *Repository) ListPostsForUser(ctx context.Context, userID string, limit int) ([]models.Post, error) {
	posts := []models.Post{}
	err := r.db.SelectContext(ctx, &posts, r.db.Rebind(`
		SELECT p.id, p.title, p.url, p.description, p.published_at, p.feed_id, p.created_at, p.updated_at
		FROM posts p
		JOIN feed_follows ff ON ff.feed_id = p.feed_id
		WHERE ff.user_id = ?
		ORDER BY p.published_at DESC, p.id ASC
		LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts for user: %w", err)
	}
	return posts, nil
}

// ListPostsByFeed returns every post of a feed, newest first.
func (r *Repository) ListPostsByFeed(ctx context.Context, feedID string) ([]models.Post, error) {
	posts := []models.Post{}
	err := r.db.SelectContext(ctx, &posts, r.db.Rebind(`SELECT `+postColumns+`
		FROM posts WHERE feed_id = ? ORDER BY published_at DESC, id ASC`), feedID)
	if err != nil {
		return nil, fmt.Errorf("list posts by feed: %w", err)
	}
	return posts, nil
}

// FetchPosts retrieves posts created after since, or after the (timestamp, id)
// cursor of a previous page. Exactly one of the two must be given.
func (r *Repository) FetchPosts(ctx context.Context, limit int, since *time.Time, cursorTimestamp *time.Time, cursorID *string) ([]models.Post, error) {
	var query string
	var args []any

	// We must order consistently for cursor pagination to work.
	const baseQuery = `SELECT ` + postColumns + ` FROM posts `
	const orderBy = ` ORDER BY created_at ASC, id ASC LIMIT ?`

	if cursorTimestamp != nil && cursorID != nil {
		query = baseQuery + `WHERE (created_at > ?) OR (created_at = ? AND id > ?)` + orderBy
		args = append(args, cursorTimestamp.UTC(), cursorTimestamp.UTC(), *cursorID, limit)
	} else if since != nil {
		query = baseQuery + `WHERE created_at > ?` + orderBy
		args = append(args, since.UTC(), limit)
	} else {
		return nil, fmt.Errorf("either 'since' or cursor parameters must be provided")
	}

	posts := []models.Post{}
	if err := r.db.SelectContext(ctx, &posts, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return posts, nil
}
