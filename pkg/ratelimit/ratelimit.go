package ratelimit

import "context"

// RateLimiter bounds how many uploads run at the same time.
type RateLimiter interface {
	// Acquire waits until a slot is available, or ctx is done.
	Acquire(ctx context.Context) error
	// Release frees the slot taken by a successful Acquire.
	Release()
}

// ChannelRateLimiter is an implementation of RateLimiter based on a buffered channel.
type ChannelRateLimiter struct {
	limiter chan struct{}
}

// NewChannelRateLimiter returns a ChannelRateLimiter allowing concurrency slots.
// A concurrency lower than 1 is treated as 1.
func NewChannelRateLimiter(concurrency int) *ChannelRateLimiter {
	if concurrency < 1 {
		concurrency = 1
	}

	return &ChannelRateLimiter{
		limiter: make(chan struct{}, concurrency),
	}
}

func (r *ChannelRateLimiter) Acquire(ctx context.Context) error {
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *ChannelRateLimiter) Release() {
	<-r.limiter
}
