package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"docvar/internal/extract"
)

// MaxRetries bounds LLM query attempts per variable.
const MaxRetries = 3

const maxBackoff = 30 * time.Second

// IsRetryable reports whether err carries a transient service failure.
func IsRetryable(err error) bool {
	var rerr *extract.RetryableError
	return errors.As(err, &rerr)
}

// Backoff returns the wait before retry attempt n (0-indexed): exponential
// seconds with up to 50% jitter, capped at 30s.
func Backoff(attempt int) time.Duration {
	d := time.Second << uint(attempt)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d + rand.N(d/2)
}
