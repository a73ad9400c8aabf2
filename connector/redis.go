package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/xerrors"
)

// redisConnector RedisConnector 的默认实现
type redisConnector struct {
	cfg    *RedisConfig
	logger clog.Logger

	mu        sync.Mutex
	client    *redis.Client
	connected bool
	closed    bool
	healthy   atomic.Bool
}

// NewRedis 创建 Redis 连接器。
//
// 仅做配置校验，不会建立连接；连接在 Connect() 时才真正发生。
func NewRedis(cfg *RedisConfig, opts ...Option) (RedisConnector, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrap(err, "connector: invalid redis config")
	}

	o := applyOptions(opts...)
	return &redisConnector{
		cfg:    cfg,
		logger: o.logger.With(clog.String("backend", "redis"), clog.String("name", cfg.Name)),
	}, nil
}

// Connect 建立连接并做一次 Ping 探活。幂等。
func (c *redisConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrAlreadyClosed
	}
	if c.connected {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         c.cfg.Addr,
		Password:     c.cfg.Password,
		DB:           c.cfg.DB,
		PoolSize:     c.cfg.PoolSize,
		MinIdleConns: c.cfg.MinIdleConns,
		DialTimeout:  c.cfg.DialTimeout,
		ReadTimeout:  c.cfg.ReadTimeout,
		WriteTimeout: c.cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return xerrors.Wrapf(err, "connector: redis connect %s failed", c.cfg.Addr)
	}

	c.client = client
	c.connected = true
	c.healthy.Store(true)
	c.logger.Info("redis connected", clog.String("addr", c.cfg.Addr))
	return nil
}

// Close 关闭连接。幂等。
func (c *redisConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.connected = false
	c.healthy.Store(false)

	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		if err != nil {
			return xerrors.Wrap(err, "connector: redis close failed")
		}
	}
	c.logger.Info("redis connection closed")
	return nil
}

// HealthCheck 执行 Ping 并刷新健康状态缓存
func (c *redisConnector) HealthCheck(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		c.healthy.Store(false)
		return ErrNotConnected
	}

	if err := client.Ping(ctx).Err(); err != nil {
		c.healthy.Store(false)
		return xerrors.Wrap(err, "connector: redis health check failed")
	}
	c.healthy.Store(true)
	return nil
}

// IsHealthy 返回缓存的健康状态
func (c *redisConnector) IsHealthy() bool {
	return c.healthy.Load()
}

// Name 返回连接实例名称
func (c *redisConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回底层 *redis.Client
func (c *redisConnector) GetClient() *redis.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}
