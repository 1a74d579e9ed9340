package resource

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of goroutines a parallel loop may add.
//
// When every slot is taken the calling goroutine runs the task itself, so a
// task that starts a nested ParallelFor on the same pool always makes progress.
type Pool struct {
	size int
	sem  *semaphore.Weighted
}

// NewPool creates a pool with size workers. size <= 0 means GOMAXPROCS.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{size: size, sem: semaphore.NewWeighted(int64(size))}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// ParallelFor calls fn for every i in [0, n) and blocks until all calls have
// returned. The first error cancels the remaining tasks and is returned.
func (p *Pool) ParallelFor(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return ctx.Err()
	}
	if n == 1 || p.size == 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(cctx)

	var inlineErr error
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		if p.sem.TryAcquire(1) {
			g.Go(func() error {
				defer p.sem.Release(1)
				return fn(gctx, i)
			})
			continue
		}
		if err := fn(gctx, i); err != nil {
			inlineErr = err
			cancel()
			break
		}
	}

	werr := g.Wait()
	if inlineErr != nil {
		return inlineErr
	}
	if werr != nil {
		return werr
	}
	return ctx.Err()
}

// ParallelRange splits [0, n) into contiguous chunks of at least minChunk
// items and calls fn once per chunk.
func (p *Pool) ParallelRange(ctx context.Context, n, minChunk int, fn func(ctx context.Context, lo, hi int) error) error {
	if n <= 0 {
		return ctx.Err()
	}
	if minChunk < 1 {
		minChunk = 1
	}

	chunks := p.size * 4
	size := (n + chunks - 1) / chunks
	if size < minChunk {
		size = minChunk
	}
	count := (n + size - 1) / size

	return p.ParallelFor(ctx, count, func(ctx context.Context, c int) error {
		lo := c * size
		hi := min(lo+size, n)
		return fn(ctx, lo, hi)
	})
}
