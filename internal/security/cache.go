package security

import (
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/fenilsonani/reclaim/internal/cache"
)

type cacheKey struct {
	hash uint64
	ctx  Context
}

type cachedResult struct {
	canonical string
	err       error
}

// ValidateCached wraps ValidateEntry with a short-lived result cache. It is
// meant for scan-time candidate filtering only; destructive callers must
// call ValidateEntry directly so the check happens at time of use.
func (pv *PathValidator) ValidateCached(path string, ctx Context) (string, error) {
	key := cacheKey{hash: xxhash.Sum64String(filepath.Clean(path)), ctx: ctx}
	if r, ok := pv.cache.Get(key); ok {
		return r.canonical, r.err
	}

	canonical, err := pv.ValidateEntry(path, ctx)
	pv.cache.Set(key, cachedResult{canonical: canonical, err: err})
	return canonical, err
}

// CacheStats exposes validation cache counters.
func (pv *PathValidator) CacheStats() cache.Stats {
	return pv.cache.Stats()
}

// ClearCache drops every cached validation result.
func (pv *PathValidator) ClearCache() {
	pv.cache.Clear()
}
