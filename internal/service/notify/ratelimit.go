package notify

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store keeps the last successful send time per channel.
type Store interface {
	LastSent(ctx context.Context, channel string) (time.Time, error)
	MarkSent(ctx context.Context, channel string, at time.Time) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{last: make(map[string]time.Time)}
}

func (m *MemoryStore) LastSent(_ context.Context, channel string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last[channel], nil
}

func (m *MemoryStore) MarkSent(_ context.Context, channel string, at time.Time) error {
	m.mu.Lock()
	m.last[channel] = at
	m.mu.Unlock()
	return nil
}

// RedisStore shares rate-limit state between processes notifying the same channel.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore stores keys as <prefix><channel>:last_sent. Keys expire after
// ttl, which should be at least the longest channel interval.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(channel string) string {
	return r.prefix + channel + ":last_sent"
}

func (r *RedisStore) LastSent(ctx context.Context, channel string) (time.Time, error) {
	val, err := r.client.Get(ctx, r.key(channel)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, nanos), nil
}

func (r *RedisStore) MarkSent(ctx context.Context, channel string, at time.Time) error {
	return r.client.Set(ctx, r.key(channel), strconv.FormatInt(at.UnixNano(), 10), r.ttl).Err()
}
