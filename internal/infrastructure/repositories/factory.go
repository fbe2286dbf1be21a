package repositories

import (
	"context"

	"streamcast/internal/core/ports"
	"streamcast/internal/infrastructure/reliability"
	"streamcast/internal/infrastructure/repositories/memory"
	redisrepo "streamcast/internal/infrastructure/repositories/redis"
	"streamcast/pkg/circuitbreaker"
	"streamcast/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StoreFactory creates the recording store, preferring Redis and
// falling back to the in-memory backend when Redis is disabled or
// unreachable at startup.
type StoreFactory struct {
	useRedis    bool
	redisClient *redis.Client
	chunkSize   int
	logger      *zap.SugaredLogger
}

func NewStoreFactory(cfg *config.Config, logger *zap.SugaredLogger) (*StoreFactory, error) {
	factory := &StoreFactory{
		useRedis:  cfg.Redis.Enabled,
		chunkSize: cfg.Store.ChunkSize,
		logger:    logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory store",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis recording store")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory recording store")
	}

	return factory, nil
}

// CreateRecordingStore creates the configured recording store. The Redis
// backend is guarded by a circuit breaker so a flapping Redis degrades
// into fast 503s instead of hung handlers.
func (f *StoreFactory) CreateRecordingStore() ports.RecordingStore {
	if f.useRedis && f.redisClient != nil {
		store := redisrepo.NewRedisRecordingStore(f.redisClient, f.chunkSize)
		return reliability.NewResilientStore(store, circuitbreaker.DefaultConfig(), f.logger)
	}
	return memory.NewMemoryRecordingStore(f.chunkSize)
}

// Close closes the Redis connection if one was opened.
func (f *StoreFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks backing store reachability.
func (f *StoreFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
