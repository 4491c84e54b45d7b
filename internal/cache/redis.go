package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"time"

	"github.com/redis/go-redis/v9"

	"authgate/internal/domain"
)

// RedisStore memoizes decisions in Redis so cached results survive process
// restarts and are shared across resolver instances. Era and identity
// versions still live in-process; a restarted instance starts at era 0
// with an empty version registry and simply computes fresh keys.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (domain.Decision, bool, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Decision{}, false, nil
	}
	if err != nil {
		return domain.Decision{}, false, fmt.Errorf("cache get: %w", err)
	}

	decision, ok := decodeDecision(payload)
	if !ok {
		// A corrupt entry behaves like a miss, not a backend failure; the
		// caller recomputes and overwrites it. Drop it so it cannot linger
		// past its next read.
		s.client.Del(ctx, key)
		return domain.Decision{}, false, nil
	}
	return decision, true, nil
}

func decodeDecision(payload []byte) (domain.Decision, bool) {
	var decision domain.Decision
	if err := json.Unmarshal(payload, &decision); err != nil {
		return domain.Decision{}, false
	}
	return decision, true
}

func (s *RedisStore) Set(ctx context.Context, key string, decision domain.Decision, ttl time.Duration) error {
	payload, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}
