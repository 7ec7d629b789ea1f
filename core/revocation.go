package core

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList records tokens that were invalidated before their natural
// expiry (logout). Revoke is idempotent. Implementations must be safe for
// concurrent use: a token visible as revoked to one caller must be visible
// to all subsequent callers.
type RevocationList interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// MemoryRevocationList is a mutex-guarded in-process revocation set.
// Entries carry the token's expiry so Sweep can discard tokens that no
// longer need explicit tracking (an expired token fails validation anyway).
type MemoryRevocationList struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (l *MemoryRevocationList) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[token]; !ok {
		l.entries[token] = expiresAt
	}
	return nil
}

func (l *MemoryRevocationList) IsRevoked(_ context.Context, token string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[token]
	return ok, nil
}

// Sweep removes entries whose expiry has passed and returns how many were dropped.
func (l *MemoryRevocationList) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for token, expiresAt := range l.entries {
		if !expiresAt.After(now) {
			delete(l.entries, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked revocations.
func (l *MemoryRevocationList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// StartSweeper runs Sweep on the given interval until ctx is cancelled.
func (l *MemoryRevocationList) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.Sweep(now)
			}
		}
	}()
}

const revocationKeyPrefix = "revoked_token:"

// RedisRevocationList stores revocations as redis keys expiring with the
// token, so eviction needs no sweeper and revocations are shared across
// API instances.
type RedisRevocationList struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client, now: time.Now}
}

func (l *RedisRevocationList) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(l.now())
	if ttl <= 0 {
		// Already expired; validation rejects it without our help.
		return nil
	}
	return l.client.Set(ctx, revocationKeyPrefix+token, "1", ttl).Err()
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := l.client.Exists(ctx, revocationKeyPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
