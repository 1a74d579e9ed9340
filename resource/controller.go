// Package resource owns the shared execution resources of the indexes:
// worker pools for build and search, memory accounting and IO throttling.
//
// A Controller is an explicit handle. Indexes receive it at creation time and
// never consult process-wide state, so two indexes with different controllers
// run on independent pools.
package resource

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimit is returned for a reservation larger than the whole limit.
var ErrMemoryLimit = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// BuildThreads is the number of workers used by Build.
	// If 0, defaults to GOMAXPROCS.
	BuildThreads int

	// SearchThreads is the number of workers used by Search.
	// If 0, defaults to GOMAXPROCS.
	SearchThreads int

	// MemoryLimitBytes is the hard limit for index-owned vector memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// IOLimitBytesPerSec is the maximum throughput for Dump and Load.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages the resources shared by a set of indexes.
type Controller struct {
	cfg Config

	build  atomic.Pointer[Pool]
	search atomic.Pointer[Pool]

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// IO
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	c.build.Store(NewPool(cfg.BuildThreads))
	c.search.Store(NewPool(cfg.SearchThreads))

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Default returns a controller sized to GOMAXPROCS with no limits.
func Default() *Controller {
	return NewController(Config{})
}

// BuildPool returns the pool used by Build calls.
func (c *Controller) BuildPool() *Pool {
	if c == nil {
		return NewPool(0)
	}
	return c.build.Load()
}

// SearchPool returns the pool used by Search calls.
func (c *Controller) SearchPool() *Pool {
	if c == nil {
		return NewPool(0)
	}
	return c.search.Load()
}

// SetBuildThreadPool replaces the build pool with one of n workers.
// Calls already running keep the pool they started with.
func (c *Controller) SetBuildThreadPool(n int) {
	c.build.Store(NewPool(n))
}

// SetSearchThreadPool replaces the search pool with one of n workers.
// Calls already running keep the pool they started with.
func (c *Controller) SetSearchThreadPool(n int) {
	c.search.Store(NewPool(n))
}

// AcquireMemory attempts to reserve memory.
// If a hard limit is configured and usage would exceed it,
// this blocks until memory is available or ctx is canceled.
// A request larger than the limit itself fails with ErrMemoryLimit.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil && bytes > c.cfg.MemoryLimitBytes {
		return fmt.Errorf("%w: %d bytes requested, limit %d", ErrMemoryLimit, bytes, c.cfg.MemoryLimitBytes)
	}

	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory attempts to reserve memory without blocking.
// Returns true if acquired, false if limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && bytes > c.cfg.MemoryLimitBytes {
		return false
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > burst {
		if err := c.ioLimiter.WaitN(ctx, burst); err != nil {
			return err
		}
		bytes -= burst
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}
