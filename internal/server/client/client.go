// Package client reads posts from a running gator API server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gator/internal/server/api"
)

const (
	postsEndpoint  = "/v1/posts"
	requestTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// StatusError is returned when the server answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned non-200 status: %d - Body: %s", e.StatusCode, e.Body)
}

// Client is a small consumer of the posts API.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
}

// New creates a client for the server at baseURL. apiKey may be empty.
func New(baseURL, apiKey string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base API URL: %w", err)
	}
	return &Client{
		baseURL:    u,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}, nil
}

// Page fetches one page. A non-empty cursor takes precedence over since.
func (c *Client) Page(ctx context.Context, since time.Time, cursor string, limit int) (api.Response, error) {
	var page api.Response

	reqURL, err := c.buildRequestURL(since, cursor, limit)
	if err != nil {
		return page, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return page, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return page, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return page, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return page, fmt.Errorf("failed to decode JSON response: %w", err)
	}
	return page, nil
}

// PostsSince walks every page after since and returns all posts in
// ingestion order.
func (c *Client) PostsSince(ctx context.Context, since time.Time, limit int) ([]api.PostView, error) {
	var all []api.PostView
	cursor := ""
	for {
		page, err := c.Page(ctx, since, cursor, limit)
		if err != nil {
			return all, err
		}
		all = append(all, page.Items...)

		if page.NextCursor == nil || *page.NextCursor == "" {
			return all, nil
		}
		cursor = *page.NextCursor
	}
}

func (c *Client) buildRequestURL(since time.Time, cursor string, limit int) (string, error) {
	endpointURL, err := c.baseURL.Parse(postsEndpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint path: %w", err)
	}

	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	switch {
	case cursor != "":
		query.Set("cursor", cursor)
	case !since.IsZero():
		query.Set("since", since.UTC().Format(time.RFC3339))
	default:
		return "", fmt.Errorf("neither cursor nor since timestamp provided")
	}

	endpointURL.RawQuery = query.Encode()
	return endpointURL.String(), nil
}
