package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gator/internal/database"
	"gator/internal/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "gator.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func createUser(t *testing.T, r *Repository, name string) models.User {
	t.Helper()
	u := models.NewUser(name)
	require.NoError(t, r.CreateUser(context.Background(), u))
	return *u
}

func createFeed(t *testing.T, r *Repository, user models.User, name, url string, lastFetched *time.Time) models.Feed {
	t.Helper()
	f := models.NewFeed(name, url, user.ID)
	if lastFetched != nil {
		f.LastFetchedAt = sql.NullTime{Time: lastFetched.UTC(), Valid: true}
	}
	require.NoError(t, r.CreateFeed(context.Background(), f))
	return *f
}

func TestSelectStalestFeed_Empty(t *testing.T) {
	r := newTestRepo(t)

	_, err := r.SelectStalestFeed(context.Background())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSelectStalestFeed_NeverFetchedFirst(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, r, "lane")

	ancient := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	createFeed(t, r, u, "old", "https://example.com/old.xml", &ancient)
	fresh := createFeed(t, r, u, "new", "https://example.com/new.xml", nil)

	got, err := r.SelectStalestFeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)
	assert.False(t, got.LastFetchedAt.Valid)
}

func TestSelectStalestFeed_OldestTimestamp(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, r, "lane")

	now := time.Now().UTC().Truncate(time.Second)
	hourAgo, dayAgo, minuteAgo := now.Add(-time.Hour), now.Add(-24*time.Hour), now.Add(-time.Minute)
	createFeed(t, r, u, "a", "https://example.com/a.xml", &hourAgo)
	oldest := createFeed(t, r, u, "b", "https://example.com/b.xml", &dayAgo)
	createFeed(t, r, u, "c", "https://example.com/c.xml", &minuteAgo)

	got, err := r.SelectStalestFeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, oldest.ID, got.ID)
	assert.True(t, dayAgo.Equal(got.LastFetchedAt.Time))

	next, err := r.SelectStalestFeed(ctx, oldest.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", next.Name)

	_, err = r.SelectStalestFeed(ctx, oldest.ID, next.ID, "missing")
	require.NoError(t, err)
}

func TestMarkFeedFetched(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, r, "lane")
	feed := createFeed(t, r, u, "blog", "https://example.com/feed.xml", nil)

	stamp := time.Date(2026, 10, 16, 12, 0, 0, 123456000, time.UTC)
	r.now = func() time.Time { return stamp }

	got, err := r.MarkFeedFetched(ctx, feed.ID)
	require.NoError(t, err)
	require.True(t, got.LastFetchedAt.Valid)
	assert.True(t, stamp.Equal(got.LastFetchedAt.Time))
	assert.True(t, stamp.Equal(got.UpdatedAt))

	// An earlier clock must not move the marker backwards.
	r.now = func() time.Time { return stamp.Add(-time.Hour) }
	got, err = r.MarkFeedFetched(ctx, feed.ID)
	require.NoError(t, err)
	assert.True(t, stamp.Equal(got.LastFetchedAt.Time))

	_, err = r.MarkFeedFetched(ctx, "no-such-feed")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInsertPost_Duplicate(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, r, "lane")
	feed := createFeed(t, r, u, "blog", "https://example.com/feed.xml", nil)

	p := models.NewPost(feed.ID)
	p.Title = "Hello"
	p.URL = "https://example.com/hello"
	p.PublishedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := r.InsertPost(ctx, p)
	require.NoError(t, err)

	again := models.NewPost(feed.ID)
	again.Title = "Hello again"
	again.URL = p.URL
	again.PublishedAt = p.PublishedAt
	_, err = r.InsertPost(ctx, again)
	assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

	posts, err := r.ListPostsByFeed(ctx, feed.ID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Hello", posts[0].Title)
	assert.False(t, posts[0].Description.Valid)
}

func TestCreateFeed_DuplicateURL(t *testing.T) {
	r := newTestRepo(t)
	u := createUser(t, r, "lane")
	createFeed(t, r, u, "one", "https://example.com/feed.xml", nil)

	err := r.CreateFeed(context.Background(), models.NewFeed("two", "https://example.com/feed.xml", u.ID))
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestUsers(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	createUser(t, r, "kahya")
	lane := createUser(t, r, "lane")

	err := r.CreateUser(ctx, models.NewUser("lane"))
	assert.True(t, errors.Is(err, ErrDuplicate))

	got, err := r.GetUserByName(ctx, "lane")
	require.NoError(t, err)
	assert.Equal(t, lane.ID, got.ID)

	_, err = r.GetUserByName(ctx, "nobody")
	assert.True(t, errors.Is(err, ErrNotFound))

	users, err := r.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "kahya", users[0].Name)
}

func TestDeleteAllUsers_Cascades(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, r, "lane")
	createFeed(t, r, u, "blog", "https://example.com/feed.xml", nil)

	n, err := r.DeleteAllUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	feeds, err := r.ListFeeds(ctx)
	require.NoError(t, err)
	assert.Empty(t, feeds)
}

func TestFeedFollows(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	lane := createUser(t, r, "lane")
	kahya := createUser(t, r, "kahya")
	feed := createFeed(t, r, lane, "blog", "https://example.com/feed.xml", nil)

	follow, err := r.CreateFeedFollow(ctx, models.NewFeedFollow(kahya.ID, feed.ID))
	require.NoError(t, err)
	assert.Equal(t, "blog", follow.FeedName)
	assert.Equal(t, "kahya", follow.UserName)

	_, err = r.CreateFeedFollow(ctx, models.NewFeedFollow(kahya.ID, feed.ID))
	assert.True(t, errors.Is(err, ErrDuplicate))

	follows, err := r.ListFollowsForUser(ctx, kahya.ID)
	require.NoError(t, err)
	require.Len(t, follows, 1)
	assert.Equal(t, feed.URL, follows[0].FeedURL)

	p := models.NewPost(feed.ID)
	p.Title, p.URL, p.PublishedAt = "Post", "https://example.com/p", time.Now().UTC()
	_, err = r.InsertPost(ctx, p)
	require.NoError(t, err)

	posts, err := r.ListPostsForUser(ctx, kahya.ID, 10)
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	posts, err = r.ListPostsForUser(ctx, lane.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, posts)

	require.NoError(t, r.DeleteFeedFollow(ctx, kahya.ID, feed.URL))
	assert.True(t, errors.Is(r.DeleteFeedFollow(ctx, kahya.ID, feed.URL), ErrNotFound))

	owners, err := r.ListFeedsWithOwner(ctx)
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, "lane", owners[0].AddedBy.String)
}

func TestFetchPosts_Pagination(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := createUser(t, r, "lane")
	feed := createFeed(t, r, u, "blog", "https://example.com/feed.xml", nil)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, url := range []string{"https://x/1", "https://x/2", "https://x/3"} {
		p := models.NewPost(feed.ID)
		p.Title, p.URL, p.PublishedAt = url, url, base
		p.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		p.UpdatedAt = p.CreatedAt
		_, err := r.InsertPost(ctx, p)
		require.NoError(t, err)
	}

	since := base.Add(-time.Second)
	page, err := r.FetchPosts(ctx, 2, &since, nil, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "https://x/1", page[0].URL)

	last := page[1]
	page, err = r.FetchPosts(ctx, 2, nil, &last.CreatedAt, &last.ID)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "https://x/3", page[0].URL)

	_, err = r.FetchPosts(ctx, 2, nil, nil, nil)
	assert.Error(t, err)
}
