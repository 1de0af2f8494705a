package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, isRetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 501} {
		assert.False(t, isRetryableStatus(code), "status %d", code)
	}
}

func TestRetryDelayBackoff(t *testing.T) {
	// Exponential with base 1.6, plus up to 500ms of jitter.
	first := retryDelay(1, "")
	assert.GreaterOrEqual(t, first, 1*time.Second)
	assert.Less(t, first, 1*time.Second+backoffJitter)

	fourth := retryDelay(4, "")
	assert.GreaterOrEqual(t, fourth, time.Duration(1.6*1.6*1.6*float64(time.Second)))
	assert.Less(t, fourth, time.Duration(1.6*1.6*1.6*float64(time.Second))+backoffJitter)
}

func TestRetryDelayHonoursRetryAfter(t *testing.T) {
	assert.Equal(t, 7*time.Second, retryDelay(1, "7"))
	assert.Equal(t, 1500*time.Millisecond, retryDelay(5, "1.5"))

	// Garbage or negative headers fall back to the backoff schedule.
	garbage := retryDelay(1, "tomorrow")
	assert.GreaterOrEqual(t, garbage, 1*time.Second)
	negative := retryDelay(1, "-3")
	assert.GreaterOrEqual(t, negative, 1*time.Second)
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepCtx(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
