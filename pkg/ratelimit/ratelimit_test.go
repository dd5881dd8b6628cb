package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiofrance/imgtag/pkg/ratelimit"
)

func TestChannelRateLimiterBoundsConcurrency(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewChannelRateLimiter(2)

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := limiter.Acquire(context.Background()); err != nil {
				return
			}
			defer limiter.Release()

			current := running.Add(1)
			for {
				old := peak.Load()
				if current <= old || peak.CompareAndSwap(old, current) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Positive(t, peak.Load())
}

func TestChannelRateLimiterAcquireCanceled(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.NewChannelRateLimiter(0)
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	limiter.Release()
	require.NoError(t, limiter.Acquire(context.Background()))
}
