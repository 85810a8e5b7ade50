package bootstrap

import (
	"context"
	"fmt"

	"yeti/config"
	"yeti/storage"

	"go.uber.org/zap"
)

// Storage holds the connected backends and the per-collection stores.
type Storage struct {
	MongoDB *storage.MongoDB
	Groups  *storage.GroupStorage
	Users   *storage.UserStorage
	TTPs    *storage.TTPStorage

	// Redis is nil unless shared rate limiting is enabled
	Redis *storage.RedisStore
}

// indexer is implemented by every collection store
type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// InitStorage connects to MongoDB, creates the collection stores and ensures
// their indexes. Redis is connected only when api.rate_limit.redis.enabled is set.
func InitStorage(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*Storage, error) {
	mongoDB, err := storage.NewMongoDB(
		cfg.MongoDB.URI,
		cfg.MongoDB.Database,
		cfg.MongoDB.MaxPoolSize,
		cfg.MongoDB.Timeout,
		sugar,
	)
	if err != nil {
		sugar.Error(ClassifyConnectionError(err, "MongoDB", redactURI(cfg.MongoDB.URI)))
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	s := &Storage{
		MongoDB: mongoDB,
		Groups:  storage.NewGroupStorage(mongoDB),
		Users:   storage.NewUserStorage(mongoDB),
		TTPs:    storage.NewTTPStorage(mongoDB),
	}

	stores := map[string]indexer{"groups": s.Groups, "users": s.Users, "ttps": s.TTPs}
	for name, store := range stores {
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = mongoDB.Close(context.Background())
			return nil, fmt.Errorf("failed to ensure %s indexes: %w", name, err)
		}
	}
	sugar.Info("MongoDB indexes ensured")

	if redisCfg := cfg.API.RateLimit.Redis; redisCfg.Enabled {
		redisStore := storage.NewRedisStore(redisCfg.Addr, redisCfg.Password, redisCfg.DB, sugar)
		if err := redisStore.Ping(ctx); err != nil {
			sugar.Error(ClassifyConnectionError(err, "Redis", redisCfg.Addr))
			_ = redisStore.Close()
			_ = mongoDB.Close(context.Background())
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		s.Redis = redisStore
		sugar.Infow("Shared rate limiting enabled", "redis_addr", redisCfg.Addr)
	}

	return s, nil
}

// Close releases Redis and MongoDB connections.
func (s *Storage) Close(ctx context.Context) error {
	var firstErr error
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close Redis: %w", err)
		}
	}
	if s.MongoDB != nil {
		if err := s.MongoDB.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close MongoDB: %w", err)
		}
	}
	return firstErr
}
