// Package cache 提供统一的键值缓存抽象。
//
// 这是 recovery 组件 cache 策略的存储后端：操作失败且重试耗尽后，
// recovery 会尝试以 CacheKey 从这里读取最近一次成功的结果。
//
// 支持两种模式：
//   - standalone：基于 otter 的本地内存缓存，零外部依赖
//   - distributed：基于 Redis 的分布式缓存，支持 json/msgpack 序列化
//
// 基本使用：
//
//	// 本地模式
//	c, _ := cache.NewStandalone(&cache.StandaloneConfig{Capacity: 10000})
//
//	// 分布式模式
//	redisConn, _ := connector.NewRedis(redisCfg)
//	c, _ := cache.New(&cache.Config{Prefix: "aegis:", Serializer: "msgpack"},
//	    cache.WithRedisConnector(redisConn), cache.WithLogger(logger))
//
//	err := c.Set(ctx, "user:1001", user, time.Hour)
//	var cached User
//	err = c.Get(ctx, "user:1001", &cached)
package cache

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/connector"
	"github.com/ceyewan/aegis/xerrors"
)

// Cache 定义键值缓存的核心能力。所有方法并发安全。
type Cache interface {
	// Set 写入键值，ttl <= 0 表示不过期
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Get 读取键值到 dest。未命中返回 ErrCacheMiss。
	Get(ctx context.Context, key string, dest any) error

	// Delete 删除键。键不存在不算错误。
	Delete(ctx context.Context, key string) error

	// Has 判断键是否存在
	Has(ctx context.Context, key string) (bool, error)

	// Expire 重设键的过期时间。键不存在返回 ErrCacheMiss。
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Close 释放资源
	Close() error
}

// New 根据配置创建缓存实例。
//
// Mode 为 "standalone" 时创建本地内存缓存；为 "distributed" 或空时
// 创建 Redis 缓存，此时必须通过 WithRedisConnector 注入连接器。
func New(cfg *Config, opts ...Option) (Cache, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	o := applyOptions(opts...)

	switch cfg.Mode {
	case "standalone":
		return newStandalone(cfg.Standalone, o)
	case "distributed", "":
		if o.redisConn == nil {
			return nil, xerrors.New("cache: redis connector is required for distributed mode, use WithRedisConnector")
		}
		return newRedis(o.redisConn, cfg, o)
	default:
		return nil, xerrors.Newf("cache: unknown mode %q", cfg.Mode)
	}
}

// NewStandalone 创建单机内存缓存实例
func NewStandalone(cfg *StandaloneConfig, opts ...Option) (Cache, error) {
	return newStandalone(cfg, applyOptions(opts...))
}

// NewWithRedis 创建 Redis 缓存实例
func NewWithRedis(conn connector.RedisConnector, cfg *Config, opts ...Option) (Cache, error) {
	return newRedis(conn, cfg, applyOptions(opts...))
}
