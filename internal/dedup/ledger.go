package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger is the fingerprint membership contract. Record is an atomic
// check-and-set: it returns true when the fingerprint was newly recorded
// and false when it was already present, so two concurrent recorders of
// the same fingerprint cannot both win.
type Ledger interface {
	Seen(ctx context.Context, fingerprint string) (bool, error)
	Record(ctx context.Context, fingerprint string) (bool, error)
}

const redisKeyPrefix = "dedup:fp:"

// RedisLedger stores fingerprints as SETNX keys. A zero TTL keeps them
// forever, matching the store's append-only lifecycle.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, ttl: ttl}
}

func (l *RedisLedger) Seen(ctx context.Context, fingerprint string) (bool, error) {
	n, err := l.client.Exists(ctx, redisKeyPrefix+fingerprint).Result()
	if err != nil {
		return false, fmt.Errorf("ledger seen: %w", err)
	}
	return n > 0, nil
}

func (l *RedisLedger) Record(ctx context.Context, fingerprint string) (bool, error) {
	ok, err := l.client.SetNX(ctx, redisKeyPrefix+fingerprint, "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("ledger record: %w", err)
	}
	return ok, nil
}

// MemoryLedger is the in-process ledger used by tests and the
// dependency-free development mode.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]struct{})}
}

func (l *MemoryLedger) Seen(ctx context.Context, fingerprint string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[fingerprint]
	return ok, nil
}

func (l *MemoryLedger) Record(ctx context.Context, fingerprint string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[fingerprint]; ok {
		return false, nil
	}
	l.seen[fingerprint] = struct{}{}
	return true, nil
}
