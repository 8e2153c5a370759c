// Package cache provides the Redis access layer shared by every replica.
package cache

import (
	"context"
	"fmt"
	"time"

	"naskah/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Cache struct {
	client *redis.Client
}

// Options maps the REDIS_* settings onto a client configuration.
func Options(cfg *config.Config) (*redis.Options, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if cfg.RedisPoolSize > 0 {
		opt.PoolSize = cfg.RedisPoolSize
	}
	if cfg.RedisMinIdleConns > 0 {
		opt.MinIdleConns = cfg.RedisMinIdleConns
	}
	return opt, nil
}

// New connects to cfg.RedisURL, retrying the first ping up to
// cfg.RedisRetries times before giving up.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Cache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opt, err := Options(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	attempts := max(cfg.RedisRetries, 1)
	for attempt := 1; ; attempt++ {
		if err = client.Ping(ctx).Err(); err == nil {
			log.Info("Successfully connected to Redis", zap.String("addr", opt.Addr), zap.Int("pool_size", opt.PoolSize))
			return &Cache{client: client}, nil
		}
		if attempt >= attempts || ctx.Err() != nil {
			break
		}
		log.Info("Redis connection failed, retrying", zap.Int("attempt", attempt), zap.Duration("delay", cfg.RedisRetryDelay), zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(cfg.RedisRetryDelay):
		}
	}
	_ = client.Close()
	return nil, fmt.Errorf("ping redis at %s: %w", opt.Addr, err)
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client.
func (c *Cache) Client() *redis.Client {
	return c.client
}
