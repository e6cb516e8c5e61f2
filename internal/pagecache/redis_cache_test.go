package pagecache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	cache, err := New("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return cache, s
}

func TestSetAndGet(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	payload := []byte(`{"title":"Hotel Aurora"}`)

	if err := cache.Set(ctx, "hotel-aurora", payload); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, hit, err := cache.Get(ctx, "hotel-aurora")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: %s", got)
	}
}

func TestGetMiss(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	_, hit, err := cache.Get(context.Background(), "nothing-here")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Fatal("expected miss for unknown slug")
	}
}

func TestExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()
	cache, err := New("redis://"+s.Addr(), 10*time.Second)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()
	if err := cache.Set(ctx, "lobby", []byte("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	s.FastForward(11 * time.Second)

	_, hit, err := cache.Get(ctx, "lobby")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Fatal("expected entry to expire")
	}
}

func TestInvalidate(t *testing.T) {
	cache, s := setupTestCache(t)
	defer cache.Close()
	defer s.Close()

	ctx := context.Background()
	if err := cache.Set(ctx, "spa", []byte("x")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := cache.Invalidate(ctx, "spa"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, hit, _ := cache.Get(ctx, "spa"); hit {
		t.Fatal("expected entry gone after invalidate")
	}

	// Invalidating an absent key is not an error.
	if err := cache.Invalidate(ctx, "spa"); err != nil {
		t.Fatalf("Invalidate of missing key failed: %v", err)
	}
}
