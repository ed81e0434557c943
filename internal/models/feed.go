package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Feed represents a row in the 'feeds' table
type Feed struct {
	ID            string       `db:"id" json:"id"`
	Name          string       `db:"name" json:"name"`
	URL           string       `db:"url" json:"url"`
	UserID        string       `db:"user_id" json:"user_id"`
	LastFetchedAt sql.NullTime `db:"last_fetched_at" json:"last_fetched_at"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// NewFeed creates a new Feed with a fresh id that has never been fetched.
func NewFeed(name, url, userID string) *Feed {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &Feed{
		ID:        uuid.NewString(),
		Name:      name,
		URL:       url,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StalerThan reports whether f should be polled before other.
// A feed that was never fetched sorts before any fetched feed; otherwise the
// older last_fetched_at wins. Ties fall back to creation time, then id.
func (f Feed) StalerThan(other Feed) bool {
	switch {
	case !f.LastFetchedAt.Valid && other.LastFetchedAt.Valid:
		return true
	case f.LastFetchedAt.Valid && !other.LastFetchedAt.Valid:
		return false
	case f.LastFetchedAt.Valid && !f.LastFetchedAt.Time.Equal(other.LastFetchedAt.Time):
		return f.LastFetchedAt.Time.Before(other.LastFetchedAt.Time)
	}

	if !f.CreatedAt.Equal(other.CreatedAt) {
		return f.CreatedAt.Before(other.CreatedAt)
	}
	return f.ID < other.ID
}

// FeedWithOwner is a feed joined with the name of the user who added it.
type FeedWithOwner struct {
	Feed
	AddedBy sql.NullString `db:"added_by" json:"added_by"`
}
