package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"

	"gator/internal/models"
	"gator/internal/server/pagination"
)

const defaultLimit = 100
const maxLimit = 1000
const iso8601Format = time.RFC3339

// PostRepository defines operations for reading ingested posts.
type PostRepository interface {
	FetchPosts(ctx context.Context, limit int, since *time.Time, cursorTimestamp *time.Time, cursorID *string) ([]models.Post, error)
}

// PostView is the JSON shape of a post.
type PostView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description *string   `json:"description"`
	PublishedAt time.Time `json:"published_at"`
	FeedID      string    `json:"feed_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Response structure for the posts endpoint
type Response struct {
	Items      []PostView `json:"items"`
	NextCursor *string    `json:"next_cursor,omitempty"`
}

func newPostView(p models.Post) PostView {
	v := PostView{
		ID:          p.ID,
		Title:       p.Title,
		URL:         p.URL,
		PublishedAt: p.PublishedAt,
		FeedID:      p.FeedID,
		CreatedAt:   p.CreatedAt,
	}
	if p.Description.Valid {
		v.Description = &p.Description.String
	}
	return v
}

// PostsHandler serves pages of posts ordered by ingestion time.
type PostsHandler struct {
	repo PostRepository
}

// NewPostsHandler creates a new handler instance.
func NewPostsHandler(repo PostRepository) *PostsHandler {
	return &PostsHandler{
		repo: repo,
	}
}

// GetPosts handles GET /v1/posts?since=<RFC3339>|cursor=<opaque>&limit=<n>.
func (h *PostsHandler) GetPosts(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	log.Debug().Msg("Processing posts request")

	if r.Method != http.MethodGet {
		log.Warn().Str("method", r.Method).Msg("Method not allowed")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	limitStr := query.Get("limit")
	sinceStr := query.Get("since")
	cursorStr := query.Get("cursor")

	limit := defaultLimit
	if limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit <= 0 || parsedLimit > maxLimit {
			log.Warn().Err(err).Str("limit", limitStr).Msg("Invalid 'limit' parameter value")
			http.Error(w, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxLimit), http.StatusBadRequest)
			return
		}
		limit = parsedLimit
	}

	var since *time.Time
	var cursorTimestamp *time.Time
	var cursorID *string

	if cursorStr != "" {
		ts, id, err := pagination.DecodeCursor(cursorStr)
		if err != nil {
			log.Warn().Err(err).Str("cursor", cursorStr).Msg("Invalid 'cursor' parameter")
			http.Error(w, "Invalid 'cursor' parameter", http.StatusBadRequest)
			return
		}
		cursorTimestamp = &ts
		cursorID = &id
	} else if sinceStr != "" {
		parsedSince, err := time.Parse(iso8601Format, sinceStr)
		if err != nil {
			log.Warn().Err(err).Str("since", sinceStr).Msg("Invalid 'since' parameter format")
			http.Error(w, "Invalid 'since' parameter: use RFC3339 format (e.g., 2025-03-28T15:00:00Z)", http.StatusBadRequest)
			return
		}
		utcSince := parsedSince.UTC()
		since = &utcSince
	} else {
		log.Warn().Msg("Missing required parameter: 'since' or 'cursor'")
		http.Error(w, "Missing required parameter: 'since' or 'cursor'", http.StatusBadRequest)
		return
	}

	items, err := h.repo.FetchPosts(r.Context(), limit+1, since, cursorTimestamp, cursorID) // Fetch one extra
	if err != nil {
		log.Error().Err(err).Str("cursor", cursorStr).Msg("Error fetching posts from repository")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var nextCursor *string
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		cursor := pagination.EncodeCursor(last.CreatedAt, last.ID)
		nextCursor = &cursor
	}

	views := make([]PostView, 0, len(items))
	for _, p := range items {
		views = append(views, newPostView(p))
	}

	jsonBytes, err := json.Marshal(Response{Items: views, NextCursor: nextCursor})
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(jsonBytes); err != nil {
		log.Error().Err(err).Msg("Error writing JSON response body to client")
	}
	log.Debug().Int("bytes_written", len(jsonBytes)).Msg("Response completed")
}
