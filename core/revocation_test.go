package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryRevocationList(t *testing.T) {
	ctx := context.Background()
	list := NewMemoryRevocationList()

	revoked, err := list.IsRevoked(ctx, "tok-1")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if revoked {
		t.Fatal("unknown token reported revoked")
	}

	exp := time.Now().Add(time.Hour)
	if err := list.Revoke(ctx, "tok-1", exp); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	revoked, err = list.IsRevoked(ctx, "tok-1")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if !revoked {
		t.Fatal("revoked token not reported revoked")
	}

	// Idempotent: revoking again changes nothing observable.
	if err := list.Revoke(ctx, "tok-1", exp); err != nil {
		t.Fatalf("second Revoke error: %v", err)
	}
	if list.Len() != 1 {
		t.Fatalf("Len = %d after double revoke, want 1", list.Len())
	}
}

func TestMemoryRevocationListSweep(t *testing.T) {
	ctx := context.Background()
	list := NewMemoryRevocationList()
	now := time.Now()

	_ = list.Revoke(ctx, "expired", now.Add(-time.Minute))
	_ = list.Revoke(ctx, "live", now.Add(time.Hour))

	if removed := list.Sweep(now); removed != 1 {
		t.Fatalf("Sweep removed %d entries, want 1", removed)
	}
	if revoked, _ := list.IsRevoked(ctx, "live"); !revoked {
		t.Fatal("sweep dropped a live revocation")
	}
	if revoked, _ := list.IsRevoked(ctx, "expired"); revoked {
		t.Fatal("sweep kept an expired revocation")
	}
}

func TestMemoryRevocationListConcurrent(t *testing.T) {
	ctx := context.Background()
	list := NewMemoryRevocationList()
	exp := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = list.Revoke(ctx, "shared", exp)
		}()
		go func() {
			defer wg.Done()
			_, _ = list.IsRevoked(ctx, "shared")
		}()
	}
	wg.Wait()

	if revoked, _ := list.IsRevoked(ctx, "shared"); !revoked {
		t.Fatal("token not revoked after concurrent revokes")
	}
	if list.Len() != 1 {
		t.Fatalf("Len = %d, want 1", list.Len())
	}
}

func TestRedisRevocationList(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	list := NewRedisRevocationList(client)

	if err := list.Revoke(ctx, "tok-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	revoked, err := list.IsRevoked(ctx, "tok-1")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if !revoked {
		t.Fatal("revoked token not reported revoked")
	}

	// Idempotent re-revoke.
	if err := list.Revoke(ctx, "tok-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("second Revoke error: %v", err)
	}

	// The entry evicts itself once the token would have expired anyway.
	mr.FastForward(2 * time.Minute)
	revoked, err = list.IsRevoked(ctx, "tok-1")
	if err != nil {
		t.Fatalf("IsRevoked error: %v", err)
	}
	if revoked {
		t.Fatal("entry survived past token expiry")
	}
}

func TestRedisRevocationListExpiredTokenNoop(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	list := NewRedisRevocationList(client)

	// Revoking an already-expired token stores nothing.
	if err := list.Revoke(ctx, "stale", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if revoked, _ := list.IsRevoked(ctx, "stale"); revoked {
		t.Fatal("expired token should not be tracked")
	}
}
