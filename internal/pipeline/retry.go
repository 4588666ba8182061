package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/studydesk/studydesk/internal/domain"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *domain.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns the wait before retrying attempt n (0-indexed). A
// Retry-After carried by the error takes precedence; otherwise
// exponential with jitter, capped at 30 seconds.
func Backoff(attempt int, err error) time.Duration {
	var retryErr *domain.RetryableError
	if errors.As(err, &retryErr) && retryErr.RetryAfter > 0 {
		return retryErr.RetryAfter
	}

	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}
