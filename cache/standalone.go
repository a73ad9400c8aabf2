package cache

import (
	"context"
	"reflect"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/xerrors"
)

// defaultTTL 未指定 TTL 时的默认过期时间（100 年，近似永久）
const defaultTTL = 24 * 365 * 100 * time.Hour

type standaloneCache struct {
	cache  *otter.Cache[string, any]
	logger clog.Logger
	meter  metrics.Meter
}

// newStandalone 创建单机内存缓存实例
func newStandalone(cfg *StandaloneConfig, o *options) (Cache, error) {
	if cfg == nil {
		cfg = &StandaloneConfig{}
	}
	cfg.setDefaults()

	// 写入过期策略与 Redis TTL 语义一致：从写入开始计时，读取不重置。
	// 单键 TTL 在 Set 时通过 SetExpiresAfter 覆盖。
	c, err := otter.New(&otter.Options[string, any]{
		MaximumSize:      cfg.Capacity,
		StatsRecorder:    stats.NewCounter(),
		ExpiryCalculator: otter.ExpiryWriting[string, any](defaultTTL),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "cache: failed to build otter cache")
	}

	return &standaloneCache{
		cache:  c,
		logger: o.logger,
		meter:  o.meter,
	}, nil
}

func (c *standaloneCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	c.cache.Set(key, value)
	if ttl > 0 {
		c.cache.SetExpiresAfter(key, ttl)
	}
	return nil
}

func (c *standaloneCache) Get(_ context.Context, key string, dest any) error {
	val, ok := c.cache.GetIfPresent(key)
	if !ok {
		return ErrCacheMiss
	}
	return assignValue(val, dest)
}

func (c *standaloneCache) Delete(_ context.Context, key string) error {
	c.cache.Invalidate(key)
	return nil
}

func (c *standaloneCache) Has(_ context.Context, key string) (bool, error) {
	_, ok := c.cache.GetIfPresent(key)
	return ok, nil
}

func (c *standaloneCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	if _, ok := c.cache.GetIfPresent(key); !ok {
		return ErrCacheMiss
	}
	c.cache.SetExpiresAfter(key, ttl)
	return nil
}

func (c *standaloneCache) Close() error {
	c.cache.StopAllGoroutines()
	return nil
}

// assignValue 将缓存值赋给 dest 指向的位置。
//
// 本地缓存存储原始对象，这里做的是基于反射的浅赋值：缓存的对象若
// 含有指针/映射/切片，dest 会与缓存共享底层数据。调用方应将取出的
// 对象视为只读，或在修改前自行深拷贝。
func assignValue(val any, dest any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return ErrInvalidDest
	}
	dv = dv.Elem()

	sv := reflect.ValueOf(val)
	if !sv.IsValid() {
		dv.Set(reflect.Zero(dv.Type()))
		return nil
	}

	if sv.Type().AssignableTo(dv.Type()) {
		dv.Set(sv)
		return nil
	}

	return xerrors.Newf("cache: cannot assign %T to %s", val, dv.Type())
}
