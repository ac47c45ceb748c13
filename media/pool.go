package media

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent CPU-bound pipeline work so decode, scoring, and
// encoding never monopolize the process while other sessions are served.
// Slots are acquired per pipeline step; acquisition blocks (or fails with the
// context's error) when the pool is saturated.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a worker pool with the given number of slots.
// A non-positive size defaults to the number of usable CPUs.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Run executes fn while holding one pool slot.
func (p *Pool) Run(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
