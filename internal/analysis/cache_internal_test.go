package analysis

import (
	"testing"
	"time"
)

func TestResultCacheGetSet(t *testing.T) {
	cache := newResultCache(2)
	if cache == nil {
		t.Fatalf("expected cache instance")
	}

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	cache.set("key", Result{Summary: "value", Relevance: 0.4}, now.Add(time.Hour), now)

	result, ok := cache.get("key", now)
	if !ok {
		t.Fatalf("expected cached result to be present")
	}

	if result.Summary != "value" || result.Relevance != 0.4 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestResultCacheExpiresEntries(t *testing.T) {
	cache := newResultCache(2)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	cache.set("key", Result{Summary: "value"}, now.Add(time.Minute), now)

	if _, ok := cache.get("key", now.Add(2*time.Minute)); ok {
		t.Fatalf("expected cache entry to expire")
	}

	if len(cache.entries) != 0 {
		t.Fatalf("expected expired cache entry to be removed")
	}
}

func TestResultCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache := newResultCache(2)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	expiresAt := now.Add(time.Hour)

	cache.set("a", Result{Summary: "summary-a"}, expiresAt, now)
	cache.set("b", Result{Summary: "summary-b"}, expiresAt, now)

	if _, ok := cache.get("a", now); !ok {
		t.Fatalf("expected entry a to exist before eviction check")
	}

	cache.set("c", Result{Summary: "summary-c"}, expiresAt, now)

	if _, ok := cache.get("a", now); !ok {
		t.Fatalf("expected entry a to remain after evicting least recently used")
	}

	if _, ok := cache.get("b", now); ok {
		t.Fatalf("expected entry b to be evicted")
	}

	if _, ok := cache.get("c", now); !ok {
		t.Fatalf("expected entry c to be cached")
	}
}

func TestCacheKeyTracksContent(t *testing.T) {
	base := Input{URL: "https://example.com/1", Title: "title", Body: "body"}
	changed := base
	changed.Body = "edited body"

	if cacheKey(base) != cacheKey(base) {
		t.Fatalf("expected stable key")
	}

	if cacheKey(base) == cacheKey(changed) {
		t.Fatalf("expected edited content to change the key")
	}
}

func TestNilResultCacheIsDisabled(t *testing.T) {
	var cache *resultCache
	now := time.Now()

	cache.set("key", Result{Summary: "value"}, now.Add(time.Hour), now)

	if _, ok := cache.get("key", now); ok {
		t.Fatalf("expected nil cache to miss")
	}
}
