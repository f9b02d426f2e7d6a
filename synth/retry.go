package synth

import (
	"math/rand/v2"
	"time"

	"github.com/ByLCY/scribe/generator"
)

// MaxRetries bounds generation attempts per word.
const MaxRetries = 3

// RetryBaseDelay is the backoff before the second attempt; it doubles per
// attempt up to RetryMaxDelay.
var (
	RetryBaseDelay = time.Second
	RetryMaxDelay  = 30 * time.Second
)

// IsRetryable checks if a generation error is worth retrying.
func IsRetryable(err error) bool {
	return generator.IsRetryable(err)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := RetryBaseDelay << uint(attempt)
	if base > RetryMaxDelay || base <= 0 {
		base = RetryMaxDelay
	}
	jitter := time.Duration(0)
	if half := int64(base) / 2; half > 0 {
		jitter = time.Duration(rand.Int64N(half))
	}
	return base + jitter
}
