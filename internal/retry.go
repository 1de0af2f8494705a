package internal

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"time"
)

// Retry policy applied uniformly at the network-call boundary: token
// exchange, discovery and price fetches all funnel through it.
const (
	maxAttempts   = 6
	backoffBase   = 1.6
	backoffJitter = 500 * time.Millisecond
)

func isRetryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// retryDelay computes the wait before the given (1-based) attempt is retried.
// A parseable Retry-After header wins over the exponential backoff.
func retryDelay(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.ParseFloat(retryAfter, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	backoff := time.Duration(math.Pow(backoffBase, float64(attempt-1)) * float64(time.Second))
	jitter := time.Duration(rand.Int63n(int64(backoffJitter)))
	return backoff + jitter
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
