package storage

import (
	"context"
	"fmt"

	"gator/internal/database"
	"gator/internal/models"
)

const followedFeedQuery = `
	SELECT ff.id AS follow_id, f.id AS feed_id, f.name AS feed_name, f.url AS feed_url, u.name AS user_name
	FROM feed_follows ff
	JOIN feeds f ON f.id = ff.feed_id
	JOIN users u ON u.id = ff.user_id`

// CreateFeedFollow records that a user follows a feed and returns the joined row.
func (r *Repository) CreateFeedFollow(ctx context.Context, follow *models.FeedFollow) (models.FollowedFeed, error) {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO feed_follows (id, user_id, feed_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		follow.ID, follow.UserID, follow.FeedID, follow.CreatedAt, follow.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.FollowedFeed{}, fmt.Errorf("follow: %w", ErrDuplicate)
		}
		return models.FollowedFeed{}, fmt.Errorf("insert feed follow: %w", err)
	}

	var out models.FollowedFeed
	if err := r.db.GetContext(ctx, &out, r.db.Rebind(followedFeedQuery+` WHERE ff.id = ?`), follow.ID); err != nil {
		return models.FollowedFeed{}, fmt.Errorf("get feed follow: %w", err)
	}
	return out, nil
}

// ListFollowsForUser returns the feeds a user follows, by feed name.
func (r *Repository) ListFollowsForUser(ctx context.Context, userID string) ([]models.FollowedFeed, error) {
	follows := []models.FollowedFeed{}
	err := r.db.SelectContext(ctx, &follows, r.db.Rebind(followedFeedQuery+`
		WHERE ff.user_id = ? ORDER BY f.name ASC`), userID)
	if err != nil {
		return nil, fmt.Errorf("list feed follows: %w", err)
	}
	return follows, nil
}

// DeleteFeedFollow removes the user's follow of the feed at url.
func (r *Repository) DeleteFeedFollow(ctx context.Context, userID, url string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM feed_follows
		WHERE user_id = ? AND feed_id IN (SELECT id FROM feeds WHERE url = ?)`), userID, url)
	if err != nil {
		return fmt.Errorf("delete feed follow: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete feed follow rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
