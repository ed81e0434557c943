package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Post represents a row in the 'posts' table
type Post struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	URL         string         `db:"url" json:"url"`
	Description sql.NullString `db:"description" json:"description"`
	PublishedAt time.Time      `db:"published_at" json:"published_at"`
	FeedID      string         `db:"feed_id" json:"feed_id"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// NewPost creates a new Post with a fresh id and default timestamps
func NewPost(feedID string) *Post {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &Post{
		ID:        uuid.NewString(),
		FeedID:    feedID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
