package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keys ceremony state by (principal, flow) in an external cache so
// that any instance behind a load balancer can redeem a challenge issued by
// another. Expiry is enforced by the cache TTL; no sweep goroutine is needed.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store backed by the given redis client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClient connects to redis with short timeouts.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
}

func redisKey(principal int64, flow Flow) string {
	return fmt.Sprintf("challenge:%s:%d", flow, principal)
}

// Issue overwrites any live entry and resets its TTL.
func (s *RedisStore) Issue(ctx context.Context, principal int64, flow Flow, data []byte) error {
	if err := s.client.Set(ctx, redisKey(principal, flow), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("challenge: redis set: %w", err)
	}
	return nil
}

// Get returns the live challenge without consuming it.
func (s *RedisStore) Get(ctx context.Context, principal int64, flow Flow) ([]byte, error) {
	data, err := s.client.Get(ctx, redisKey(principal, flow)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("challenge: redis get: %w", err)
	}
	return data, nil
}

// Consume removes and returns the live challenge in one round trip, so two
// concurrent consumers cannot both succeed.
func (s *RedisStore) Consume(ctx context.Context, principal int64, flow Flow) ([]byte, error) {
	data, err := s.client.GetDel(ctx, redisKey(principal, flow)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("challenge: redis getdel: %w", err)
	}
	return data, nil
}

// Close releases the client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
