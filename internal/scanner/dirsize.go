package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fenilsonani/reclaim/internal/cache"
	"github.com/fenilsonani/reclaim/internal/walker"
)

const (
	dirSizeCacheTTL  = 5 * time.Minute
	dirSizeCacheSize = 10000
)

// ErrDirSizeTimeout is returned when a size walk exceeds its own deadline.
var ErrDirSizeTimeout = errors.New("directory size timed out")

// DirSizer computes directory sizes off the caller's goroutine under a
// per-call timeout. Results are cached by canonical path and concurrent
// requests for one path share a single walk.
type DirSizer struct {
	cache   *cache.TTL[string, int64]
	group   singleflight.Group
	timeout time.Duration
	size    func(ctx context.Context, path string) (int64, error)
}

// NewDirSizer creates a DirSizer. A zero timeout selects DefaultDirSizeTime.
func NewDirSizer(timeout time.Duration) *DirSizer {
	if timeout <= 0 {
		timeout = DefaultDirSizeTime
	}
	return &DirSizer{
		cache:   cache.New[string, int64](dirSizeCacheTTL, dirSizeCacheSize),
		timeout: timeout,
		size:    walker.DirSize,
	}
}

// Size returns the size of path. A timed-out walk is not cached.
func (d *DirSizer) Size(ctx context.Context, path string) (int64, error) {
	if v, ok := d.cache.Get(path); ok {
		return v, nil
	}

	ch := d.group.DoChan(path, func() (interface{}, error) {
		wctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		n, err := d.size(wctx, path)
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return n, fmt.Errorf("%s: %w", path, ErrDirSizeTimeout)
			}
			return n, err
		}
		d.cache.Set(path, n)
		return n, nil
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		n, _ := res.Val.(int64)
		return n, res.Err
	}
}

// Invalidate drops every cached size.
func (d *DirSizer) Invalidate() {
	d.cache.Clear()
}

// Stats exposes cache counters.
func (d *DirSizer) Stats() cache.Stats {
	return d.cache.Stats()
}
