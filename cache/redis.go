package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/aegis/cache/serializer"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/connector"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/xerrors"
)

type redisCache struct {
	client     *redis.Client
	serializer serializer.Serializer
	prefix     string
	logger     clog.Logger
	meter      metrics.Meter
}

// newRedis 创建 Redis 缓存实例
func newRedis(conn connector.RedisConnector, cfg *Config, o *options) (Cache, error) {
	if conn == nil {
		return nil, xerrors.New("cache: redis connector is nil")
	}
	if cfg == nil {
		return nil, ErrConfigNil
	}

	s, err := serializer.New(cfg.Serializer)
	if err != nil {
		return nil, err
	}

	return &redisCache{
		client:     conn.GetClient(),
		serializer: s,
		prefix:     cfg.Prefix,
		logger:     o.logger,
		meter:      o.meter,
	}, nil
}

func (c *redisCache) getKey(key string) string {
	return c.prefix + key
}

func (c *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := c.serializer.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.getKey(key), data, ttl).Err()
}

func (c *redisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, c.getKey(key)).Bytes()
	if err != nil {
		if xerrors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return c.serializer.Unmarshal(data, dest)
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.getKey(key)).Err()
}

func (c *redisCache) Has(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.getKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := c.client.Expire(ctx, c.getKey(key), ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrCacheMiss
	}
	return nil
}

// Close 不关闭底层客户端，连接归 Connector 所有
func (c *redisCache) Close() error {
	return nil
}
