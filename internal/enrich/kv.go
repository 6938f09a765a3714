// Package enrich fills per-provider signals from external collaborators:
// the provider's own website, social platforms, and government registries.
// Every collaborator is an interface with a no-op implementation, so a
// scan can run with any subset of channels switched off.
package enrich

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss means the key is not in the cache.
var ErrCacheMiss = errors.New("cache miss")

// KVStore abstracts the registry-lookup cache so tests can swap Redis out.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKV is the go-redis backed KVStore.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps an existing Redis client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// Get implements KVStore.
func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

// Set implements KVStore.
func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// MemoryKV is an in-process KVStore with TTL. The fallback when no Redis
// is configured, and the cache used in tests.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]memoryKVItem
}

type memoryKVItem struct {
	value   string
	expires time.Time // zero = no ttl
}

// NewMemoryKV returns an empty in-process cache.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]memoryKVItem)}
}

// Get implements KVStore.
func (m *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.data[key]
	if !ok {
		return "", ErrCacheMiss
	}
	if !item.expires.IsZero() && time.Now().After(item.expires) {
		delete(m.data, key)
		return "", ErrCacheMiss
	}
	return item.value, nil
}

// Set implements KVStore.
func (m *MemoryKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	m.data[key] = memoryKVItem{value: value, expires: exp}
	return nil
}
