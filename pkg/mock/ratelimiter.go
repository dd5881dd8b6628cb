package mock

import (
	"context"
	"sync/atomic"
)

// RateLimiter never limits. When Block is set, Acquire waits for ctx to be done instead.
type RateLimiter struct {
	Block bool

	acquired atomic.Int32
}

func (r *RateLimiter) Acquire(ctx context.Context) error {
	if r.Block {
		<-ctx.Done()
		return ctx.Err()
	}
	r.acquired.Add(1)

	return nil
}

func (r *RateLimiter) Release() {}

// Acquired returns how many Acquire calls succeeded.
func (r *RateLimiter) Acquired() int {
	return int(r.acquired.Load())
}
