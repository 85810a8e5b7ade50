package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// rateLimitKeyPrefix namespaces fixed-window counters
const rateLimitKeyPrefix = "yeti:ratelimit:"

// RedisStore holds counters shared between API replicas
type RedisStore struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewRedisStore creates a Redis-backed counter store
func NewRedisStore(addr, password string, db int, logger *zap.SugaredLogger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})

	return &RedisStore{
		client: client,
		logger: logger,
	}
}

// Ping tests the Redis connection
func (rs *RedisStore) Ping(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

// IncrWindow increments the counter for key in the current fixed window and
// returns the new count. The window starts on the first hit and the key
// expires when it ends.
//
// The counter is created with its TTL (SET NX EX) and incremented inside one
// MULTI/EXEC, so a key never exists without an expiry. INCR keeps the TTL.
func (rs *RedisStore) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	redisKey := rateLimitKeyPrefix + key

	var incr *redis.IntCmd
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, redisKey, 0, window)
		incr = pipe.Incr(ctx, redisKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return incr.Val(), nil
}
