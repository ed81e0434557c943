package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a row in the 'users' table
type User struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func NewUser(name string) *User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &User{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FeedFollow links a user to a feed they follow
type FeedFollow struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	FeedID    string    `db:"feed_id" json:"feed_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func NewFeedFollow(userID, feedID string) *FeedFollow {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &FeedFollow{
		ID:        uuid.NewString(),
		UserID:    userID,
		FeedID:    feedID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FollowedFeed is a follow row joined with its feed and user names
type FollowedFeed struct {
	FollowID string `db:"follow_id" json:"follow_id"`
	FeedID   string `db:"feed_id" json:"feed_id"`
	FeedName string `db:"feed_name" json:"feed_name"`
	FeedURL  string `db:"feed_url" json:"feed_url"`
	UserName string `db:"user_name" json:"user_name"`
}
