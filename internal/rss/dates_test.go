package rss

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC)

	for _, value := range []string{
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"2006-01-02T15:04:05-07:00",
		"  2006-01-02T22:04:05Z ",
	} {
		got, err := ParseDate(value)
		require.NoError(t, err, value)
		assert.True(t, want.Equal(got), "%s: got %s", value, got)
		assert.Equal(t, time.UTC, got.Location())
	}
}

func TestParseDate_NamedZones(t *testing.T) {
	for value, want := range map[string]time.Time{
		"Mon, 02 Jan 2006 15:04:05 EST": time.Date(2006, 1, 2, 20, 4, 5, 0, time.UTC),
		"Mon, 02 Jan 2006 15:04:05 PDT": time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC),
		"Mon, 2 Jan 2006 15:04:05 CDT":  time.Date(2006, 1, 2, 20, 4, 5, 0, time.UTC),
		"02 Jan 2006 15:04:05 MST":      time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC),
		"02 Jan 06 15:04 PST":           time.Date(2006, 1, 2, 23, 4, 0, 0, time.UTC),
		"Mon, 02 Jan 2006 15:04:05 GMT": time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC),
	} {
		got, err := ParseDate(value)
		require.NoError(t, err, value)
		assert.True(t, want.Equal(got), "%s: got %s, want %s", value, got, want)
		assert.Equal(t, time.UTC, got.Location())
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, value := range []string{"", "yesterday", "32/13/2006"} {
		_, err := ParseDate(value)
		assert.True(t, errors.Is(err, ErrMalformedFeed), value)
	}
}
