package importfeeds

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"gator/internal/models"
	"gator/internal/storage"
)

// Repository is the storage the importer writes to.
type Repository interface {
	CreateFeed(ctx context.Context, feed *models.Feed) error
	GetFeedByURL(ctx context.Context, url string) (models.Feed, error)
	CreateFeedFollow(ctx context.Context, follow *models.FeedFollow) (models.FollowedFeed, error)
}

// Downloader fetches remote CSV files.
type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Importer handles the feed import process
type Importer struct {
	repo       Repository
	downloader Downloader
}

// Summary reports the outcome of an import.
type Summary struct {
	Total    int
	Created  int
	Followed int
	Errors   []string
}

// NewImporter creates a new feed importer
func NewImporter(repo Repository, downloader Downloader) *Importer {
	return &Importer{repo: repo, downloader: downloader}
}

// ImportFeeds reads a name,url CSV from a local path or an http(s) URL and
// registers each feed for user, who also follows it. Feeds that already exist
// are followed instead of created. Row problems are collected, not fatal.
func (i *Importer) ImportFeeds(ctx context.Context, source string, user models.User) (*Summary, error) {
	log.Info().Str("source", source).Str("user", user.Name).Msg("Starting feed import")

	csvData, err := i.getCSVData(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to get CSV data: %w", err)
	}
	if c, ok := csvData.(io.Closer); ok {
		defer c.Close()
	}

	summary, err := i.parseAndImportFeeds(ctx, csvData, user)
	if err != nil {
		return nil, fmt.Errorf("failed to import feeds: %w", err)
	}

	log.Info().
		Int("total", summary.Total).
		Int("created", summary.Created).
		Int("followed", summary.Followed).
		Int("errors", len(summary.Errors)).
		Msg("Import summary")
	return summary, nil
}

func (i *Importer) getCSVData(ctx context.Context, source string) (io.Reader, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if i.downloader == nil {
			return nil, fmt.Errorf("no downloader configured for %s", source)
		}
		log.Info().Str("url", source).Msg("Downloading CSV from remote source")
		data, err := i.downloader.Fetch(ctx, source)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}

	log.Info().Str("path", source).Msg("Using local CSV file")
	return os.Open(source)
}

func (i *Importer) parseAndImportFeeds(ctx context.Context, csvData io.Reader, user models.User) (*Summary, error) {
	reader := csv.NewReader(csvData)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, err
	}

	log.Debug().Strs("header", header).Msg("CSV header read")

	nameIdx := findColumnIndex(header, "name")
	urlIdx := findColumnIndex(header, "url")
	if urlIdx < 0 {
		return nil, fmt.Errorf("required column 'url' not found in CSV header")
	}

	summary := &Summary{}
	lineCount := 1 // Header was already read

	for {
		lineCount++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Int("line", lineCount).Msg("Error reading CSV line")
			summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: %v", lineCount, err))
			continue
		}

		if len(record) == 0 || (len(record) == 1 && record[0] == "") {
			log.Debug().Int("line", lineCount).Msg("Skipping empty row")
			continue
		}
		summary.Total++

		url := safeGetValue(record, urlIdx)
		if url == "" {
			log.Warn().Int("line", lineCount).Msg("Skipping row with empty URL")
			summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: empty URL", lineCount))
			continue
		}
		name := safeGetValue(record, nameIdx)
		if name == "" {
			name = url
		}

		logger := log.With().Int("line", lineCount).Str("url", url).Logger()

		feed := models.NewFeed(name, url, user.ID)
		err = i.repo.CreateFeed(ctx, feed)
		switch {
		case err == nil:
			summary.Created++
		case errors.Is(err, storage.ErrDuplicate):
			existing, getErr := i.repo.GetFeedByURL(ctx, url)
			if getErr != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: %v", lineCount, getErr))
				continue
			}
			logger.Debug().Msg("Feed already registered, following it")
			feed = &existing
		default:
			logger.Error().Err(err).Msg("Failed to insert feed")
			summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: %v", lineCount, err))
			continue
		}

		_, err = i.repo.CreateFeedFollow(ctx, models.NewFeedFollow(user.ID, feed.ID))
		switch {
		case err == nil:
			summary.Followed++
		case errors.Is(err, storage.ErrDuplicate):
			logger.Debug().Msg("Already following feed")
			summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: duplicate URL: %s", lineCount, url))
		default:
			logger.Error().Err(err).Msg("Failed to follow feed")
			summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: %v", lineCount, err))
		}
	}

	return summary, nil
}

func findColumnIndex(header []string, columnName string) int {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), columnName) {
			return i
		}
	}
	return -1
}

// safeGetValue returns the trimmed value at index, or "" when out of bounds.
func safeGetValue(record []string, index int) string {
	if index >= 0 && index < len(record) {
		return strings.TrimSpace(record[index])
	}
	return ""
}
