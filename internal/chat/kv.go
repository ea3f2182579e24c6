package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound is returned by KVStore.Get for missing keys.
var ErrKeyNotFound = errors.New("key not found")

// KVStore is the durable string key-value storage backing the quota
// counter. Injected so tests can substitute an in-memory stub.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// RedisKV implements KVStore on Redis.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps a Redis client.
func NewRedisKV(client *redis.Client) *RedisKV {
	if client == nil {
		panic("chat: redis client cannot be nil")
	}
	return &RedisKV{client: client}
}

func (s *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("chat: kv get failed: %w", err)
	}
	return val, nil
}

func (s *RedisKV) Set(ctx context.Context, key, value string) error {
	// Quota keys are self-expiring via the reset-date check, so no TTL.
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("chat: kv set failed: %w", err)
	}
	return nil
}

// MemoryKV is a map-backed KVStore for tests.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (s *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return val, nil
}

func (s *MemoryKV) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}
