package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "idempotency:http:"
	statusProcessing     = "processing"
	statusSuccess        = "success"
)

type redisIdempotencyState struct {
	Status   string          `json:"status"`
	Response *CachedResponse `json:"response,omitempty"`
}

// RedisIdempotencyStore shares idempotency keys across service replicas.
type RedisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) key(k string) string {
	return idempotencyKeyPrefix + k
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string) (*CachedResponse, error) {
	k := s.key(key)

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		data, err := s.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			raw, _ := json.Marshal(redisIdempotencyState{Status: statusProcessing})
			_, err := s.client.SetArgs(ctx, k, raw, redis.SetArgs{Mode: "NX", TTL: s.ttl}).Result()
			if errors.Is(err, redis.Nil) {
				// Lost the NX race, read the winner's state.
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("redis set: %w", err)
			}
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("redis get: %w", err)
		}

		var state redisIdempotencyState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("redis unmarshal: %w", err)
		}

		switch state.Status {
		case statusSuccess:
			return state.Response, nil
		case statusProcessing:
			return nil, ErrKeyInFlight
		default:
			if err := s.client.Del(ctx, k).Err(); err != nil {
				return nil, fmt.Errorf("redis del: %w", err)
			}
		}
	}
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, response *CachedResponse) error {
	response.CreatedAt = time.Now()
	raw, err := json.Marshal(redisIdempotencyState{Status: statusSuccess, Response: response})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(key), raw, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Stop is a no-op; the Redis client is closed with the other store clients.
func (s *RedisIdempotencyStore) Stop() {}
