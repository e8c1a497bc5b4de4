package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many synthesis or scan units of work run at once so the
// orchestration layer never saturates on external calls. Each unit is
// dispatched to one slot and awaited; no unit spawns further concurrent
// sub-tasks.
type Pool struct {
	sem *semaphore.Weighted
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = 4
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Do runs fn in a worker slot, blocking while the pool is full.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}
