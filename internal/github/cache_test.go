package github

import (
	"testing"
	"time"
)

func TestResponseCacheExpiry(t *testing.T) {
	current := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	cache := NewResponseCache(time.Minute)
	cache.now = func() time.Time { return current }

	cache.Set("key", []byte("payload"))
	if body, ok := cache.Get("key"); !ok || string(body) != "payload" {
		t.Fatalf("Get = %q, %v; want payload, true", body, ok)
	}

	current = current.Add(61 * time.Second)
	if _, ok := cache.Get("key"); ok {
		t.Error("expected entry to expire after ttl")
	}
}

func TestResponseCacheDisabled(t *testing.T) {
	cache := NewResponseCache(0)
	cache.Set("key", []byte("payload"))
	if _, ok := cache.Get("key"); ok {
		t.Error("zero ttl cache should never return entries")
	}

	var nilCache *ResponseCache
	nilCache.Set("key", []byte("payload"))
	if _, ok := nilCache.Get("key"); ok {
		t.Error("nil cache should be a no-op")
	}
}

func TestResponseCacheInvalidateAll(t *testing.T) {
	cache := NewResponseCache(time.Hour)
	cache.Set("a", []byte("1"))
	cache.Set("b", []byte("2"))

	cache.InvalidateAll()

	if _, ok := cache.Get("a"); ok {
		t.Error("entry a should be gone after InvalidateAll")
	}
	if _, ok := cache.Get("b"); ok {
		t.Error("entry b should be gone after InvalidateAll")
	}
}
