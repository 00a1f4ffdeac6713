package cachemanager

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/aipq/internal/metrics"
)

func TestNewInMemoryCacheManager(t *testing.T) {
	require.NotPanics(t, func() {
		NewInMemoryCacheManager[string, string]("test", DefaultExpiration, DefaultCleanupInterval)
	})
}

type exampleStruct struct {
	ID   int
	Name string
}

func TestNewInMemoryCacheManager_GetExistingValue_StructType(t *testing.T) {
	cache := NewInMemoryCacheManager[string, exampleStruct]("filters", DefaultExpiration, DefaultCleanupInterval)
	example := exampleStruct{
		Name: "apple",
	}
	cache.Set("ex:1", example, DefaultExpiration)

	got, ok := cache.Get("ex:1")
	require.True(t, ok)
	require.Equal(t, example, got)
}

func TestNewInMemoryCacheManager_GetExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("filters", DefaultExpiration, DefaultCleanupInterval)
	cache.Set("food", "apple", DefaultExpiration)

	got, ok := cache.Get("food")
	require.True(t, ok)
	require.Equal(t, "apple", got)
}

func TestNewInMemoryCacheManager_GetWithNoExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("filters", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get("food")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestNewInMemoryCacheManager_GetWithExistingInvalidValueType(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("filters", DefaultExpiration, DefaultCleanupInterval)

	cache.cache.Set("food", 123, DefaultExpiration)

	got, ok := cache.Get("food")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestNewInMemoryCacheManager_GetWithRefresh_WithNoExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("filters", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.GetWithRefresh("food", time.Minute*60)
	require.False(t, ok)
	require.Equal(t, "", got)
}

func TestNewInMemoryCacheManager_GetWithRefresh_WithExistingValue(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("filters", DefaultExpiration, DefaultCleanupInterval)
	cache.Set("food", "apple", DefaultExpiration)

	got, ok := cache.GetWithRefresh("food", time.Minute*60)
	require.True(t, ok)
	require.Equal(t, "apple", got)
}

type filterText string

func TestNewInMemoryCacheManager_NamedKeyType(t *testing.T) {
	cache := NewInMemoryCacheManager[filterText, int]("filters", DefaultExpiration, DefaultCleanupInterval)
	cache.Set("a = 1", 3, DefaultExpiration)

	got, ok := cache.Get("a = 1")
	require.True(t, ok)
	require.Equal(t, 3, got)
	_, ok = cache.Get(filterText("b = 2"))
	require.False(t, ok)
}

func TestNewInMemoryCacheManager_GetWithRefresh_ExtendsExpiry(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("filters", DefaultExpiration, DefaultCleanupInterval)
	cache.Set("food", "apple", 200*time.Millisecond)

	_, ok := cache.GetWithRefresh("food", time.Hour)
	require.True(t, ok)

	time.Sleep(400 * time.Millisecond)
	got, ok := cache.Get("food")
	require.True(t, ok)
	require.Equal(t, "apple", got)
}

func TestNewInMemoryCacheManager_Expiry(t *testing.T) {
	cache := NewInMemoryCacheManager[string, string]("filters", DefaultExpiration, DefaultCleanupInterval)
	cache.Set("food", "apple", time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := cache.Get("food")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestNewInMemoryCacheManager_CountsLookups(t *testing.T) {
	cache := NewInMemoryCacheManager[string, int]("lookups-test", DefaultExpiration, DefaultCleanupInterval)
	hits := metrics.CacheLookups.WithLabelValues("lookups-test", metrics.CacheHit)
	misses := metrics.CacheLookups.WithLabelValues("lookups-test", metrics.CacheMiss)

	cache.Set("a", 1, DefaultExpiration)
	cache.cache.Set("bad", "not an int", DefaultExpiration)

	_, _ = cache.Get("a")
	_, _ = cache.Get("b")
	_, _ = cache.Get("bad")
	_, _ = cache.GetWithRefresh("a", time.Minute)
	_, _ = cache.GetWithRefresh("c", time.Minute)

	require.Equal(t, 2.0, testutil.ToFloat64(hits))
	require.Equal(t, 3.0, testutil.ToFloat64(misses))
}
