package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type cachedUser struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	IsActive bool     `json:"is_active"`
}

func TestMemoryCache_GetSet(t *testing.T) {
	cache := NewMemoryCache[cachedUser]()
	ctx := context.Background()

	want := cachedUser{ID: "u1", Email: "alice@example.com", Roles: []string{"admin"}, IsActive: true}
	if err := cache.Set(ctx, "user:u1", want, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := cache.Get(ctx, "user:u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Email != want.Email || len(got.Roles) != 1 {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	if _, err := cache.Get(ctx, "user:missing"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache := NewMemoryCache[bool]()
	ctx := context.Background()

	if err := cache.Set(ctx, "revoked:jti", true, 50*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := cache.Get(ctx, "revoked:jti"); err != nil {
		t.Fatalf("Get failed before expiration: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := cache.Get(ctx, "revoked:jti"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after expiration, got %v", err)
	}
}

func TestMemoryCache_MGetMSet(t *testing.T) {
	cache := NewMemoryCache[int64]()
	ctx := context.Background()

	err := cache.MSet(ctx, map[string]int64{"total": 10, "active": 7}, time.Minute)
	if err != nil {
		t.Fatalf("MSet failed: %v", err)
	}

	result, err := cache.MGet(ctx, []string{"total", "active", "verified"})
	if err != nil {
		t.Fatalf("MGet failed: %v", err)
	}
	if len(result) != 2 || result["total"] != 10 || result["active"] != 7 {
		t.Errorf("Unexpected MGet result: %v", result)
	}
}

func TestMemoryCache_DeleteAndClose(t *testing.T) {
	cache := NewMemoryCache[string]()
	ctx := context.Background()

	_ = cache.Set(ctx, "a", "1", time.Minute)
	_ = cache.Set(ctx, "b", "2", time.Minute)

	if err := cache.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := cache.Get(ctx, "a"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Expected ErrCacheMiss after delete, got %v", err)
	}

	if err := cache.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if cache.Len() != 0 {
		t.Errorf("Expected cache to be cleared after Close, got %d items", cache.Len())
	}
	if err := cache.Health(ctx); err != nil {
		t.Errorf("Health check should always succeed for memory cache, got: %v", err)
	}
}

func TestMemoryCache_PurgesExpiredItems(t *testing.T) {
	cache := NewMemoryCache[bool]()
	ctx := context.Background()

	for i := range purgeInterval - 1 {
		_ = cache.Set(ctx, fmt.Sprintf("old-%d", i), true, time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)

	// This write triggers the sweep
	_ = cache.Set(ctx, "fresh", true, time.Minute)

	if cache.Len() != 1 {
		t.Errorf("Expected only the fresh item after purge, got %d items", cache.Len())
	}
}

func TestMemoryCache_GetWithFetch(t *testing.T) {
	c := NewMemoryCache[cachedUser]()
	ctx := context.Background()

	var fetchCount atomic.Int64
	fetch := func(ctx context.Context, key string) (cachedUser, error) {
		fetchCount.Add(1)
		return cachedUser{ID: key, Email: key + "@example.com"}, nil
	}

	for range 3 {
		user, err := c.GetWithFetch(ctx, "u2", time.Minute, fetch)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Email != "u2@example.com" {
			t.Errorf("unexpected user: %+v", user)
		}
	}
	if fetchCount.Load() != 1 {
		t.Errorf("expected fetch called once, got %d", fetchCount.Load())
	}

	expectedErr := errors.New("db down")
	_, err := c.GetWithFetch(ctx, "u3", time.Minute, func(context.Context, string) (cachedUser, error) {
		return cachedUser{}, expectedErr
	})
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected fetch error, got %v", err)
	}
	if _, err := c.Get(ctx, "u3"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("failed fetch must not populate cache, got %v", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache[int64]()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range 100 {
				_ = c.Set(ctx, "counter", int64(n*1000+j), time.Minute)
				_, _ = c.Get(ctx, "counter")
			}
		}(i)
	}
	wg.Wait()

	if _, err := c.Get(ctx, "counter"); err != nil {
		t.Errorf("Cache corrupted after concurrent access: %v", err)
	}
}

func TestCodec(t *testing.T) {
	raw, err := encode(cachedUser{ID: "u1", Roles: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	user, err := decode[cachedUser](raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if user.ID != "u1" || len(user.Roles) != 2 {
		t.Errorf("unexpected decoded value: %+v", user)
	}

	if _, err := decode[cachedUser]("{not json"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
	if _, err := encode(make(chan int)); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
}
