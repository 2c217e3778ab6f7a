package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*SessionCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, "sf"), mr
}

func TestMarkRevokedFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	first, err := c.MarkRevoked(ctx, "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("MarkRevoked error: %v", err)
	}
	if !first {
		t.Fatal("expected first revocation to report first=true")
	}

	again, err := c.MarkRevoked(ctx, "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("MarkRevoked error: %v", err)
	}
	if again {
		t.Fatal("expected repeat revocation to report first=false")
	}

	revoked, err := c.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if !revoked {
		t.Fatal("expected jti-1 to be revoked")
	}
}

func TestMarkRevokedConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	const workers = 16
	start := make(chan struct{})
	results := make(chan bool, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			first, err := c.MarkRevoked(ctx, "jti-race", time.Hour)
			if err != nil {
				t.Errorf("MarkRevoked error: %v", err)
				return
			}
			results <- first
		}()
	}

	close(start)
	wg.Wait()
	close(results)

	winners := 0
	for first := range results {
		if first {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestRevocationExpiresWithToken(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	if _, err := c.MarkRevoked(ctx, "jti-ttl", time.Minute); err != nil {
		t.Fatalf("MarkRevoked error: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	revoked, err := c.IsRevoked(ctx, "jti-ttl")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if revoked {
		t.Fatal("expected marker to expire with the token's lifetime")
	}
}

func TestMarkRevokedNonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	first, err := c.MarkRevoked(ctx, "jti-dead", 0)
	if err != nil {
		t.Fatalf("MarkRevoked error: %v", err)
	}
	if first {
		t.Fatal("expected already-expired token to never win rotation")
	}
}

func TestRoleCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	entry := RoleEntry{Role: "moderator", Banned: false}
	if err := c.CacheRole(ctx, "user-1", entry, time.Minute); err != nil {
		t.Fatalf("CacheRole error: %v", err)
	}

	got, found, err := c.GetRole(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetRole error: %v", err)
	}
	if !found {
		t.Fatal("expected role cache hit")
	}
	if got != entry {
		t.Fatalf("entry mismatch: want %+v, got %+v", entry, got)
	}

	mr.FastForward(2 * time.Minute)

	if _, found, err := c.GetRole(ctx, "user-1"); err != nil || found {
		t.Fatalf("expected expired entry to miss, found=%v err=%v", found, err)
	}
}

func TestRoleCacheBannedFlag(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	if err := c.CacheRole(ctx, "user-2", RoleEntry{Role: "user", Banned: true}, time.Minute); err != nil {
		t.Fatalf("CacheRole error: %v", err)
	}

	got, found, err := c.GetRole(ctx, "user-2")
	if err != nil || !found {
		t.Fatalf("GetRole found=%v err=%v", found, err)
	}
	if !got.Banned {
		t.Fatal("expected banned flag to survive the round trip")
	}
}

func TestInvalidateRole(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	if err := c.CacheRole(ctx, "user-3", RoleEntry{Role: "administrator"}, time.Hour); err != nil {
		t.Fatalf("CacheRole error: %v", err)
	}
	if err := c.InvalidateRole(ctx, "user-3"); err != nil {
		t.Fatalf("InvalidateRole error: %v", err)
	}

	if _, found, err := c.GetRole(ctx, "user-3"); err != nil || found {
		t.Fatalf("expected invalidated entry to miss, found=%v err=%v", found, err)
	}
}

func TestCorruptRoleEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	if err := mr.Set("sf:rl:user-4", "garbage-without-separator"); err != nil {
		t.Fatalf("seed error: %v", err)
	}

	_, found, err := c.GetRole(ctx, "user-4")
	if err != nil {
		t.Fatalf("GetRole error: %v", err)
	}
	if found {
		t.Fatal("expected corrupt entry to read as a miss")
	}
	if mr.Exists("sf:rl:user-4") {
		t.Fatal("expected corrupt entry to be deleted")
	}
}

func TestUnavailableCacheSurfacesSentinel(t *testing.T) {
	ctx := context.Background()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := New(rdb, "sf")

	// Kill the backend; every operation must wrap ErrUnavailable.
	mr.Close()
	_ = rdb.Close()

	if _, err := c.IsRevoked(ctx, "jti-x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("IsRevoked: expected ErrUnavailable, got %v", err)
	}
	if _, err := c.MarkRevoked(ctx, "jti-x", time.Hour); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("MarkRevoked: expected ErrUnavailable, got %v", err)
	}
	if _, _, err := c.GetRole(ctx, "user-x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("GetRole: expected ErrUnavailable, got %v", err)
	}
	if err := c.CacheRole(ctx, "user-x", RoleEntry{Role: "user"}, time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("CacheRole: expected ErrUnavailable, got %v", err)
	}
}
