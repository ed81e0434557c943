package rss

import (
	"errors"
	"fmt"
)

// ErrMalformedFeed is returned when a payload cannot be turned into a Document.
var ErrMalformedFeed = errors.New("malformed feed")

// FetchError reports a failed feed request, either at the transport level or
// because the server answered with a non-2xx status.
type FetchError struct {
	URL        string
	StatusCode int // zero when the request never got a response
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedFeed, fmt.Sprintf(format, args...))
}
