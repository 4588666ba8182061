package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a document or chunk does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedMedia is returned when no extractor is registered
	// for a document's declared media type.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// ErrDimensionMismatch is returned by stores when a chunk vector's
	// length differs from the configured embedding dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// RetryableError indicates a transient failure that can be retried.
// RetryAfter, when positive, carries the wait the failing service asked
// for; zero means the caller picks its own backoff.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
