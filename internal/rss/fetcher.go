package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// UserAgent identifies the aggregator to feed servers.
const UserAgent = "gator/1.0"

const (
	defaultRequestTimeout = 15 * time.Second
	defaultMaxBodyBytes   = 10 << 20 // 10MB
)

// FetcherConfig holds settings for a Fetcher
type FetcherConfig struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64

	// Client overrides the HTTP client; RequestTimeout is ignored when set.
	Client *http.Client
	Logger zerolog.Logger
}

// Fetcher retrieves feed payloads over HTTP. It makes exactly one attempt per call.
type Fetcher struct {
	client       *http.Client
	maxBodyBytes int64
	logger       zerolog.Logger
}

// NewFetcher creates a Fetcher, filling unset fields with defaults.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}

	return &Fetcher{
		client:       client,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       cfg.Logger,
	}
}

// Fetch issues a GET for url and returns the response body.
// Transport failures and non-2xx answers are reported as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("body exceeds %d bytes", f.maxBodyBytes)}
	}

	f.logger.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Fetched feed")

	return body, nil
}

// FetchFeed fetches url and parses the payload into a Document.
func (f *Fetcher) FetchFeed(ctx context.Context, url string) (*Document, error) {
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return Parse(body)
}
