package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gator/internal/database"
	"gator/internal/models"
	"gator/internal/rss"
	"gator/internal/storage"
)

// MockFetcher is a mock implementation of the Fetcher interface
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

// MockStore is a mock implementation of the Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) InsertPost(ctx context.Context, post *models.Post) (models.Post, error) {
	args := m.Called(ctx, post)
	return args.Get(0).(models.Post), args.Error(1)
}

func (m *MockStore) MarkFeedFetched(ctx context.Context, feedID string) (models.Feed, error) {
	args := m.Called(ctx, feedID)
	return args.Get(0).(models.Feed), args.Error(1)
}

const feedXML = `<rss version="2.0"><channel>
  <title>Blog</title><link>https://blog.example.com</link><description>Posts</description>
  <item><title>One</title><link>https://blog.example.com/1</link><description>first</description><pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate></item>
  <item><title>Two</title><link>https://blog.example.com/2</link><description>second</description><pubDate>Tue, 03 Jan 2006 15:04:05 -0700</pubDate></item>
  <item><title>No date</title><link>https://blog.example.com/3</link><description>third</description></item>
</channel></rss>`

func testFeed() models.Feed {
	return models.Feed{ID: "feed-1", Name: "Blog", URL: "https://blog.example.com/feed.xml"}
}

func postURL(url string) interface{} {
	return mock.MatchedBy(func(p *models.Post) bool { return p.URL == url })
}

func TestIngest_Success(t *testing.T) {
	fetcher := new(MockFetcher)
	store := new(MockStore)
	feed := testFeed()

	fetched := feed
	fetched.LastFetchedAt.Valid = true
	fetched.LastFetchedAt.Time = time.Now()

	fetcher.On("Fetch", mock.Anything, feed.URL).Return([]byte(feedXML), nil)
	store.On("InsertPost", mock.Anything, postURL("https://blog.example.com/1")).Return(models.Post{}, nil)
	store.On("InsertPost", mock.Anything, postURL("https://blog.example.com/2")).Return(models.Post{}, nil)
	store.On("MarkFeedFetched", mock.Anything, feed.ID).Return(fetched, nil)

	res, err := NewWorker(fetcher, store, zerolog.Nop()).Ingest(context.Background(), feed)
	require.NoError(t, err)

	assert.Equal(t, StageFetched, res.Stage)
	assert.Equal(t, 2, res.Items)
	assert.Equal(t, 2, res.Inserted)
	assert.Zero(t, res.Duplicates)
	assert.True(t, res.Feed.LastFetchedAt.Valid)
	fetcher.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestIngest_DuplicateStillMarksFetched(t *testing.T) {
	fetcher := new(MockFetcher)
	store := new(MockStore)
	feed := testFeed()

	fetcher.On("Fetch", mock.Anything, feed.URL).Return([]byte(feedXML), nil)
	store.On("InsertPost", mock.Anything, postURL("https://blog.example.com/1")).
		Return(models.Post{}, fmt.Errorf("post: %w", storage.ErrDuplicate))
	store.On("InsertPost", mock.Anything, postURL("https://blog.example.com/2")).Return(models.Post{}, nil)
	store.On("MarkFeedFetched", mock.Anything, feed.ID).Return(feed, nil)

	res, err := NewWorker(fetcher, store, zerolog.Nop()).Ingest(context.Background(), feed)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Duplicates)
	store.AssertCalled(t, "MarkFeedFetched", mock.Anything, feed.ID)
}

func TestIngest_FetchErrorLeavesFeedUntouched(t *testing.T) {
	fetcher := new(MockFetcher)
	store := new(MockStore)
	feed := testFeed()

	fetcher.On("Fetch", mock.Anything, feed.URL).
		Return(nil, &rss.FetchError{URL: feed.URL, StatusCode: http.StatusInternalServerError})

	res, err := NewWorker(fetcher, store, zerolog.Nop()).Ingest(context.Background(), feed)
	require.Error(t, err)

	var fetchErr *rss.FetchError
	assert.True(t, errors.As(err, &fetchErr))
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, StageFetching, res.Stage)
	store.AssertNotCalled(t, "InsertPost", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "MarkFeedFetched", mock.Anything, mock.Anything)
}

func TestIngest_MalformedFeedLeavesFeedUntouched(t *testing.T) {
	fetcher := new(MockFetcher)
	store := new(MockStore)
	feed := testFeed()

	fetcher.On("Fetch", mock.Anything, feed.URL).Return([]byte(`<rss><nochannel/></rss>`), nil)

	res, err := NewWorker(fetcher, store, zerolog.Nop()).Ingest(context.Background(), feed)
	assert.True(t, errors.Is(err, rss.ErrMalformedFeed))
	assert.Equal(t, StageParsing, res.Stage)
	store.AssertNotCalled(t, "InsertPost", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "MarkFeedFetched", mock.Anything, mock.Anything)
}

func TestIngest_StorageErrorAborts(t *testing.T) {
	fetcher := new(MockFetcher)
	store := new(MockStore)
	feed := testFeed()

	fetcher.On("Fetch", mock.Anything, feed.URL).Return([]byte(feedXML), nil)
	store.On("InsertPost", mock.Anything, mock.Anything).Return(models.Post{}, errors.New("disk I/O error"))

	res, err := NewWorker(fetcher, store, zerolog.Nop()).Ingest(context.Background(), feed)
	assert.True(t, errors.Is(err, ErrStorage))
	assert.Equal(t, StagePersisting, res.Stage)
	store.AssertNumberOfCalls(t, "InsertPost", 1)
	store.AssertNotCalled(t, "MarkFeedFetched", mock.Anything, mock.Anything)
}

func TestIngest_MarkFetchedErrorIsStorageError(t *testing.T) {
	fetcher := new(MockFetcher)
	store := new(MockStore)
	feed := testFeed()

	fetcher.On("Fetch", mock.Anything, feed.URL).Return([]byte(feedXML), nil)
	store.On("InsertPost", mock.Anything, mock.Anything).Return(models.Post{}, nil)
	store.On("MarkFeedFetched", mock.Anything, feed.ID).Return(models.Feed{}, errors.New("database is locked"))

	res, err := NewWorker(fetcher, store, zerolog.Nop()).Ingest(context.Background(), feed)
	assert.True(t, errors.Is(err, ErrStorage))
	assert.Equal(t, 2, res.Inserted)
	assert.NotEqual(t, StageFetched, res.Stage)
}

func TestIngest_SkipsUnusableItems(t *testing.T) {
	fetcher := new(MockFetcher)
	store := new(MockStore)
	feed := testFeed()

	payload := `<rss><channel><title>t</title><link>l</link><description>d</description>
		<item><title>bad date</title><link>https://x/1</link><description>d</description><pubDate>someday</pubDate></item>
		<item><title>blank link</title><link>  </link><description>d</description><pubDate>2024-01-02</pubDate></item>
		<item><title>good</title><link>https://x/3</link><description></description><pubDate>2024-01-02</pubDate></item>
	</channel></rss>`

	fetcher.On("Fetch", mock.Anything, feed.URL).Return([]byte(payload), nil)
	store.On("InsertPost", mock.Anything, mock.MatchedBy(func(p *models.Post) bool {
		return p.URL == "https://x/3" && !p.Description.Valid && p.PublishedAt.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	})).Return(models.Post{}, nil)
	store.On("MarkFeedFetched", mock.Anything, feed.ID).Return(feed, nil)

	res, err := NewWorker(fetcher, store, zerolog.Nop()).Ingest(context.Background(), feed)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Items)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Inserted)
}

func TestIngest_CancelledBeforePersisting(t *testing.T) {
	fetcher := new(MockFetcher)
	store := new(MockStore)
	feed := testFeed()

	ctx, cancel := context.WithCancel(context.Background())
	fetcher.On("Fetch", mock.Anything, feed.URL).Run(func(mock.Arguments) { cancel() }).Return([]byte(feedXML), nil)

	_, err := NewWorker(fetcher, store, zerolog.Nop()).Ingest(ctx, feed)
	assert.True(t, errors.Is(err, context.Canceled))
	store.AssertNotCalled(t, "InsertPost", mock.Anything, mock.Anything)
}

func TestIngest_IdempotentAgainstSQLite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feedXML))
	}))
	defer srv.Close()

	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "gator.db")))
	require.NoError(t, err)
	defer db.Close()
	repo := storage.NewRepository(db)
	ctx := context.Background()

	user := models.NewUser("lane")
	require.NoError(t, repo.CreateUser(ctx, user))
	feed := models.NewFeed("Blog", srv.URL, user.ID)
	require.NoError(t, repo.CreateFeed(ctx, feed))

	worker := NewWorker(rss.NewFetcher(rss.FetcherConfig{}), repo, zerolog.Nop())

	first, err := worker.Ingest(ctx, *feed)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)
	require.True(t, first.Feed.LastFetchedAt.Valid)

	second, err := worker.Ingest(ctx, first.Feed)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 2, second.Duplicates)
	assert.False(t, second.Feed.LastFetchedAt.Time.Before(first.Feed.LastFetchedAt.Time))

	posts, err := repo.ListPostsByFeed(ctx, feed.ID)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "https://blog.example.com/2", posts[0].URL)
}
