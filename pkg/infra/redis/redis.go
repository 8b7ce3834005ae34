package redis_wrapper

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisConfig struct {
	ConnectionURL       string `yaml:"connection_url"`
	PoolSize            int    `yaml:"pool_size"`
	DialTimeoutSeconds  int    `yaml:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `yaml:"idle_timeout_seconds"`
}

// Enabled reports whether a connection url was configured.
func (c *RedisConfig) Enabled() bool {
	return c != nil && c.ConnectionURL != ""
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// InitRedis builds a client from config and pings it once. Zero timeouts
// keep the go-redis defaults.
func InitRedis(ctx context.Context, redisCfg *RedisConfig) (*redis.Client, error) {
	if !redisCfg.Enabled() {
		return nil, fmt.Errorf("redis: no connection url configured")
	}

	opts, err := redis.ParseURL(redisCfg.ConnectionURL)
	if err != nil {
		zap.S().Debugf("parse redis url fail: %+v", err)
		return nil, err
	}

	if redisCfg.PoolSize > 0 {
		opts.PoolSize = redisCfg.PoolSize
	}
	if redisCfg.DialTimeoutSeconds > 0 {
		opts.DialTimeout = seconds(redisCfg.DialTimeoutSeconds)
	}
	if redisCfg.ReadTimeoutSeconds > 0 {
		opts.ReadTimeout = seconds(redisCfg.ReadTimeoutSeconds)
	}
	if redisCfg.WriteTimeoutSeconds > 0 {
		opts.WriteTimeout = seconds(redisCfg.WriteTimeoutSeconds)
	}
	if redisCfg.IdleTimeoutSeconds > 0 {
		opts.ConnMaxIdleTime = seconds(redisCfg.IdleTimeoutSeconds)
	}

	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	zap.S().Debugw("connect to redis successful", "addr", opts.Addr, "db", opts.DB)
	return redisClient, nil
}
