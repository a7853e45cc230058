package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList invalidates tokens before they expire, keyed by jti.
type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// InMemoryRevocationList is a single-process RevocationList.
type InMemoryRevocationList struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewInMemoryRevocationList creates an empty list.
func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{entries: make(map[string]time.Time), now: time.Now}
}

func (l *InMemoryRevocationList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, exp := range l.entries {
		if !now.Before(exp) {
			delete(l.entries, k)
		}
	}
	l.entries[jti] = now.Add(ttl)
	return nil
}

func (l *InMemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.entries[jti]
	if !ok {
		return false, nil
	}
	if !l.now().Before(exp) {
		delete(l.entries, jti)
		return false, nil
	}
	return true, nil
}

// RedisRevocationList shares revocations between service instances.
type RedisRevocationList struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisRevocationList uses an existing Redis client.
func NewRedisRevocationList(client redis.Cmdable) *RedisRevocationList {
	return &RedisRevocationList{client: client, keyPrefix: "erp:token:revoked:"}
}

func (l *RedisRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, l.keyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := l.client.Exists(ctx, l.keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// RevokeToken revokes claims for the rest of their lifetime.
func RevokeToken(ctx context.Context, list RevocationList, claims *Claims) error {
	ttl := claims.RemainingTTL(time.Now())
	if ttl == 0 {
		return nil
	}
	return list.Revoke(ctx, claims.ID, ttl)
}

var (
	_ RevocationList = (*InMemoryRevocationList)(nil)
	_ RevocationList = (*RedisRevocationList)(nil)
)
