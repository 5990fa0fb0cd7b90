package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist remembers revoked access token ids until they expire.
type Blacklist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NewInMemoryBlacklist returns a process-local Blacklist.
func NewInMemoryBlacklist() *InMemoryBlacklist {
	return &InMemoryBlacklist{entries: make(map[string]time.Time), now: time.Now}
}

// InMemoryBlacklist is used when no Redis address is configured.
type InMemoryBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func (b *InMemoryBlacklist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	for id, exp := range b.entries {
		if now.After(exp) {
			delete(b.entries, id)
		}
	}
	if until.After(now) {
		b.entries[tokenID] = until
	}
	return nil
}

func (b *InMemoryBlacklist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	exp, ok := b.entries[tokenID]
	if !ok {
		return false, nil
	}
	if b.now().After(exp) {
		delete(b.entries, tokenID)
		return false, nil
	}
	return true, nil
}

const redisBlacklistPrefix = "vidtube:revoked:"

// RedisBlacklist shares revocations between API replicas. Keys expire with
// the token they revoke.
type RedisBlacklist struct {
	rdb redis.UniversalClient
	now func() time.Time
}

// RedisConfig selects the Redis instance holding revocations.
type RedisConfig struct {
	Addr     string
	DB       int
	Password string
}

// NewRedisClient builds the client and verifies it responds.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// NewRedisBlacklist wraps an existing client.
func NewRedisBlacklist(rdb redis.UniversalClient) *RedisBlacklist {
	return &RedisBlacklist{rdb: rdb, now: time.Now}
}

func (b *RedisBlacklist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return nil
	}
	ttl := until.Sub(b.now())
	if ttl <= 0 {
		return nil
	}
	if err := b.rdb.Set(ctx, redisBlacklistPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	err := b.rdb.Get(ctx, redisBlacklistPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup revoked token: %w", err)
	}
	return true, nil
}
