package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// Store persists the status record. Put replaces the whole record.
type Store interface {
	Put(ctx context.Context, fields map[string]string, ttl time.Duration) error
	Fetch(ctx context.Context) (map[string]string, error)
}

// MemoryStore keeps the record in process memory. It serves single-process
// deployments and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	clock     clockwork.Clock
	data      map[string]string
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{clock: clock}
}

func (s *MemoryStore) Put(_ context.Context, fields map[string]string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]string, len(fields))
	for k, v := range fields {
		s.data[k] = v
	}
	s.expiresAt = s.clock.Now().Add(ttl)
	return nil
}

func (s *MemoryStore) Fetch(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil || !s.clock.Now().Before(s.expiresAt) {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

// RedisStore keeps the record in a Redis hash shared with the web
// application.
type RedisStore struct {
	client redis.Cmdable
	key    string
}

// NewRedisStore creates a store writing the hash at key.
func NewRedisStore(client redis.Cmdable, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Put replaces the hash and its expiry atomically.
func (s *RedisStore) Put(ctx context.Context, fields map[string]string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.HSet(ctx, s.key, fields)
		pipe.Expire(ctx, s.key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write status hash %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Fetch(ctx context.Context) (map[string]string, error) {
	data, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read status hash %s: %w", s.key, err)
	}
	return data, nil
}
