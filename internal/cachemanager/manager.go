// Package cachemanager provides typed in-memory caches with expiry.
package cachemanager

import (
	"time"
)

// CacheManager is a typed key/value cache with per-entry TTLs.
type CacheManager[K ~string, V any] interface {
	Get(key K) (V, bool)
	GetWithRefresh(key K, ttl time.Duration) (V, bool)
	Set(key K, value V, ttl time.Duration)
}
