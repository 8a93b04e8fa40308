package prefstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/gridcore/model"
)

// RedisStore is a Redis-backed Store. Records live under "gridprefs:{key}".
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore creates a Redis store. A zero ttl keeps records forever.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(key string) string {
	return "gridprefs:" + key
}

// Load reads and decodes the record for key.
func (s *RedisStore) Load(ctx context.Context, key string) (model.PersistedState, bool, error) {
	raw, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.PersistedState{}, false, nil
	}
	if err != nil {
		return model.PersistedState{}, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var st model.PersistedState
	if err := json.Unmarshal(raw, &st); err != nil {
		return model.PersistedState{}, false, fmt.Errorf("unmarshal preferences %q: %w", key, err)
	}
	return st, true, nil
}

// Save writes the record for key, refreshing its TTL.
func (s *RedisStore) Save(ctx context.Context, key string, state model.PersistedState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Delete removes the record for key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}
