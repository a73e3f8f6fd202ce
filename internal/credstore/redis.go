package credstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-client/internal/config"
)

// Redis backs the credential store with a go-redis client. Connection
// problems degrade to an empty store rather than failing callers.
type Redis struct {
	client    *redis.Client
	namespace string
	logger    *zap.Logger
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{client: client, namespace: cfg.Namespace, logger: logger}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	value, err := r.client.Get(ctx, r.namespaced(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("credential read failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return value, true
}

func (r *Redis) Set(ctx context.Context, key, value string) {
	if err := r.client.Set(ctx, r.namespaced(key), value, 0).Err(); err != nil {
		r.logger.Warn("credential write failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *Redis) Remove(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.namespaced(key)).Err(); err != nil {
		r.logger.Warn("credential delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) namespaced(key string) string {
	if r.namespace == "" {
		return key
	}
	return r.namespace + ":" + key
}
