// Package recovery 提供操作级的错误恢复引擎。
//
// recovery 按操作类别维护恢复策略：有界重试 + 指数退避 + 抖动，
// 重试耗尽后按策略类型做最终处置（fallback/cache/degrade/re-raise）。
// 带端点标识的操作每次尝试都经由熔断器执行，熔断拒绝会立即中止
// 剩余重试，避免对已知故障的端点继续施压。
//
// ## 基本使用
//
//	mgr, _ := recovery.New(nil,
//		recovery.WithLogger(logger),
//		recovery.WithBreaker(brk),
//		recovery.WithCache(c))
//
//	_ = mgr.RegisterStrategy("feed-refresh", recovery.Strategy{
//		Kind:        recovery.KindCache,
//		MaxAttempts: 2,
//		CacheKey:    "feed:latest",
//	})
//
//	result, err := mgr.Execute(ctx, recovery.Operation{
//		Class:    "feed-refresh",
//		Endpoint: "/v1/feed",
//		Do: func(ctx context.Context) (any, error) {
//			return client.FetchFeed(ctx)
//		},
//	})
package recovery

import (
	"context"
	"time"
)

// Kind 恢复策略类型
type Kind string

const (
	// KindRetry 重试耗尽后重新抛出最后一次错误
	KindRetry Kind = "retry"
	// KindFallback 重试耗尽后执行调用方提供的降级动作
	KindFallback Kind = "fallback"
	// KindCache 重试耗尽后从缓存读取最近一次成功结果
	KindCache Kind = "cache"
	// KindDegrade 重试耗尽后返回占位值，从不抛错
	KindDegrade Kind = "degrade"
)

// 默认重试策略参数
const (
	defaultMaxAttempts = 3
	defaultMultiplier  = 2.0
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 10 * time.Second
)

// Strategy 恢复策略。按操作类别注册一次，调用时可用覆盖项合并。
type Strategy struct {
	// Kind 策略类型（默认：KindRetry）
	Kind Kind

	// MaxAttempts 最大尝试次数，含首次调用（默认：3）
	MaxAttempts int

	// BackoffMultiplier 退避倍率（默认：2）
	BackoffMultiplier float64

	// BaseDelay 首次退避时长（默认：500ms）
	BaseDelay time.Duration

	// MaxDelay 退避时长上限，含抖动（默认：10s）
	MaxDelay time.Duration

	// Fallback KindFallback 的降级动作
	Fallback func(ctx context.Context) (any, error)

	// CacheKey KindCache 的缓存键
	CacheKey string

	// Placeholder KindDegrade 返回的占位值
	Placeholder any
}

// Operation 一次受恢复保护的操作
type Operation struct {
	// Class 操作类别标识，用于查找注册的策略
	Class string

	// Endpoint 端点标识。非空时每次尝试都经由熔断器执行，
	// 熔断拒绝立即中止剩余重试。
	Endpoint string

	// Do 实际执行的操作
	Do func(ctx context.Context) (any, error)
}

// Manager 错误恢复管理器。所有方法并发安全。
type Manager interface {
	// Execute 以恢复策略执行操作。
	//
	// override 非 nil 时，其非零字段覆盖注册的策略。
	Execute(ctx context.Context, op Operation, override *Strategy) (any, error)

	// RegisterStrategy 按操作类别注册恢复策略，重复注册覆盖旧值
	RegisterStrategy(classID string, s Strategy) error
}

// Config 恢复引擎配置，字段为空时使用内置默认值
type Config struct {
	// MaxAttempts 未注册策略时的默认尝试次数（默认：3）
	MaxAttempts int `mapstructure:"max_attempts"`

	// BackoffMultiplier 默认退避倍率（默认：2）
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`

	// BaseDelay 默认首次退避时长（默认：500ms）
	BaseDelay time.Duration `mapstructure:"base_delay"`

	// MaxDelay 默认退避上限（默认：10s）
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = defaultMultiplier
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
}

// New 创建恢复管理器。cfg 为 nil 时使用全部默认值。
func New(cfg *Config, opts ...Option) (Manager, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	return newManager(cfg, applyOptions(opts...)), nil
}
