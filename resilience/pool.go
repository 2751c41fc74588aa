package resilience

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// ConnectionPool bounds concurrent access to a limited resource (the
// analytical store's handles) with a weighted semaphore — the idiomatic Go
// answer to §5's "max N concurrent handles, semaphore-bounded" requirement.
// It does not own the handles themselves, only admission.
type ConnectionPool struct {
	sem *semaphore.Weighted
	max int64
}

func NewConnectionPool(maxConcurrent int) *ConnectionPool {
	return &ConnectionPool{
		sem: semaphore.NewWeighted(int64(maxConcurrent)),
		max: int64(maxConcurrent),
	}
}

// Acquire blocks until a slot is free or ctx is cancelled.
func (p *ConnectionPool) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

// Release returns a slot to the pool.
func (p *ConnectionPool) Release() {
	p.sem.Release(1)
}

// Do runs fn while holding one slot.
func (p *ConnectionPool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.Acquire(ctx); err != nil {
		return err
	}
	defer p.Release()
	return fn(ctx)
}

// DrainAndClose waits for in-flight work by acquiring every slot, which
// blocks until all holders release or ctx is done. It closes no handles (the
// pool owns none), and the acquired slots are not released afterwards.
func (p *ConnectionPool) DrainAndClose(ctx context.Context) error {
	return p.sem.Acquire(ctx, p.max)
}
