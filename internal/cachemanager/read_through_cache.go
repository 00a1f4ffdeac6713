package cachemanager

import (
	"time"
)

// ReadThroughCache computes values with fn on a miss and stores successful results.
type ReadThroughCache[K ~string, V any, I any] struct {
	cache   CacheManager[K, V]
	fn      func(input I) (V, error)
	sliding bool
}

// NewReadThroughCache wraps cache. With sliding set, every hit extends the
// entry's TTL, so frequently used keys stay cached.
func NewReadThroughCache[K ~string, V any, I any](
	cache CacheManager[K, V],
	fn func(input I) (V, error),
	sliding bool,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{
		cache:   cache,
		fn:      fn,
		sliding: sliding,
	}
}

// Get returns the cached value for key or computes it from input. Errors are not cached.
func (r *ReadThroughCache[K, V, I]) Get(key K, input I, ttl time.Duration) (V, error) {
	var (
		value V
		ok    bool
	)
	if r.sliding {
		value, ok = r.cache.GetWithRefresh(key, ttl)
	} else {
		value, ok = r.cache.Get(key)
	}
	if ok {
		return value, nil
	}

	value, err := r.fn(input)
	if err != nil {
		return value, err
	}

	r.cache.Set(key, value, ttl)

	return value, nil
}
