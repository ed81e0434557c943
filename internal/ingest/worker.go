// Package ingest runs one fetch-parse-persist cycle for a single feed.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"gator/internal/models"
	"gator/internal/rss"
	"gator/internal/storage"
)

// ErrStorage wraps any persistence failure other than a duplicate post.
var ErrStorage = errors.New("storage failure")

// Stage is the point a cycle reached.
type Stage int

const (
	StageSelected Stage = iota
	StageFetching
	StageParsing
	StagePersisting
	StageFetched
)

func (s Stage) String() string {
	switch s {
	case StageSelected:
		return "selected"
	case StageFetching:
		return "fetching"
	case StageParsing:
		return "parsing"
	case StagePersisting:
		return "persisting"
	case StageFetched:
		return "fetched"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Fetcher returns the raw payload behind a feed URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Store is what a cycle writes to.
type Store interface {
	InsertPost(ctx context.Context, post *models.Post) (models.Post, error)
	MarkFeedFetched(ctx context.Context, feedID string) (models.Feed, error)
}

// Result summarizes one cycle. On failure Stage is where it stopped.
type Result struct {
	Feed       models.Feed
	Stage      Stage
	Items      int // valid items in the parsed document
	Inserted   int
	Duplicates int
	Skipped    int // items with an unusable link or pubDate
}

// Worker executes ingestion cycles. It is safe for concurrent use.
type Worker struct {
	fetcher Fetcher
	store   Store
	logger  zerolog.Logger
}

func NewWorker(fetcher Fetcher, store Store, logger zerolog.Logger) *Worker {
	return &Worker{fetcher: fetcher, store: store, logger: logger}
}

// Ingest fetches the feed, parses it and inserts each new post. The feed is
// marked fetched only once every item has been attempted; a fetch, parse or
// storage failure leaves last_fetched_at untouched.
func (w *Worker) Ingest(ctx context.Context, feed models.Feed) (Result, error) {
	res := Result{Feed: feed, Stage: StageFetching}
	logger := w.logger.With().Str("feed_id", feed.ID).Str("url", feed.URL).Logger()

	body, err := w.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		return res, fmt.Errorf("fetch feed %q: %w", feed.Name, err)
	}

	res.Stage = StageParsing
	doc, err := rss.Parse(body)
	if err != nil {
		return res, fmt.Errorf("parse feed %q: %w", feed.Name, err)
	}
	res.Items = len(doc.Items)

	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.Stage = StagePersisting
	for _, item := range doc.Items {
		post, ok := w.newPost(logger, feed, item)
		if !ok {
			res.Skipped++
			continue
		}

		_, err := w.store.InsertPost(ctx, post)
		switch {
		case err == nil:
			res.Inserted++
		case errors.Is(err, storage.ErrDuplicate):
			res.Duplicates++
			logger.Debug().Str("post_url", post.URL).Msg("Post already ingested")
		default:
			return res, fmt.Errorf("%w: insert post %s: %w", ErrStorage, post.URL, err)
		}
	}

	updated, err := w.store.MarkFeedFetched(ctx, feed.ID)
	if err != nil {
		return res, fmt.Errorf("%w: mark feed fetched: %w", ErrStorage, err)
	}
	res.Feed = updated
	res.Stage = StageFetched

	return res, nil
}

// newPost maps an item to a post. Items whose link is blank or whose pubDate
// cannot be parsed are dropped, the same way the parser drops incomplete items.
func (w *Worker) newPost(logger zerolog.Logger, feed models.Feed, item rss.Item) (*models.Post, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		logger.Debug().Str("title", item.Title).Msg("Skipping item with empty link")
		return nil, false
	}

	published, err := rss.ParseDate(item.PubDate)
	if err != nil {
		logger.Debug().Err(err).Str("post_url", link).Msg("Skipping item with unparsable pubDate")
		return nil, false
	}

	post := models.NewPost(feed.ID)
	post.Title = item.Title
	post.URL = link
	post.PublishedAt = published
	if item.Description != "" {
		post.Description = sql.NullString{String: item.Description, Valid: true}
	}
	return post, true
}
