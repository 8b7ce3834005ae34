package gasprice

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedOracle shares one upstream answer across processes for ttl.
// Redis trouble degrades to calling upstream directly.
type CachedOracle struct {
	upstream Oracle
	client   redis.UniversalClient
	key      string
	ttl      time.Duration
	logger   *zap.Logger
}

func NewCachedOracle(upstream Oracle, client redis.UniversalClient, network string, ttl time.Duration, logger *zap.Logger) *CachedOracle {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.L()
	}
	return &CachedOracle{
		upstream: upstream,
		client:   client,
		key:      "gasprice:" + network,
		ttl:      ttl,
		logger:   logger,
	}
}

func (c *CachedOracle) Prices(ctx context.Context) (Prices, error) {
	if p, ok := c.get(ctx); ok {
		return p, nil
	}

	p, err := c.upstream.Prices(ctx)
	if err != nil {
		return Prices{}, err
	}
	c.set(ctx, p)
	return p, nil
}

func (c *CachedOracle) get(ctx context.Context) (Prices, bool) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("gas price cache read failed", zap.String("key", c.key), zap.Error(err))
		}
		return Prices{}, false
	}

	var p Prices
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("gas price cache entry unreadable", zap.String("key", c.key), zap.Error(err))
		return Prices{}, false
	}
	return p, true
}

func (c *CachedOracle) set(ctx context.Context, p Prices) {
	data, err := json.Marshal(p)
	if err != nil {
		c.logger.Warn("gas price encode failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("gas price cache write failed", zap.String("key", c.key), zap.Error(err))
	}
}

// New builds the HTTP oracle and, when a redis client is given, puts the
// shared cache in front of it.
func New(cfg Config, client redis.UniversalClient, network string, logger *zap.Logger) (Oracle, error) {
	cfg = cfg.withDefaults()
	upstream, err := NewHTTPOracle(cfg)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return upstream, nil
	}
	return NewCachedOracle(upstream, client, network, cfg.CacheTTL, logger), nil
}
