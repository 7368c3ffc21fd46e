package feed

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAuth          = errors.New("vimeo authentication failed")
	ErrMissingSource = errors.New("album or folder id is required")
	ErrNoProvider    = errors.New("roku provider name is required")
	ErrNoBucket      = errors.New("s3 bucket is required")
	ErrNoWebhook     = errors.New("webhook url is not configured")
)

// APIError is a non-2xx response from the Vimeo API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return "vimeo api: " + e.Message
	}
	return fmt.Sprintf("vimeo api returned %d: %s", e.StatusCode, e.Message)
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("vimeo rate limit exceeded, retry after %s", e.RetryAfter)
}
