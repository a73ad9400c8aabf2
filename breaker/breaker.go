// Package breaker 提供按端点粒度的熔断器组件，负责故障隔离与自动恢复。
//
// breaker 是 Aegis 弹性层的核心组件，它提供了：
// - 按端点独立的 CLOSED/OPEN/HALF_OPEN 状态机
// - 连续失败计数触发熔断，半开探测自动恢复
// - 每端点的健康统计（成功率、平均响应时间）
// - 不活跃端点的后台清理，限制长生命周期进程的内存占用
// - gRPC 客户端拦截器无侵入集成
//
// ## 基本使用
//
//	brk, _ := breaker.New(&breaker.Config{
//		FailureThreshold: 5,
//		RecoveryTimeout:  60 * time.Second,
//		HalfOpenMaxCalls: 3,
//	}, breaker.WithLogger(logger))
//	defer brk.Close()
//
//	result, err := brk.Execute(ctx, "/v1/users", func() (any, error) {
//		return client.FetchUsers(ctx)
//	})
//
// ## gRPC 集成
//
//	conn, _ := grpc.NewClient(
//		"localhost:9001",
//		grpc.WithUnaryInterceptor(brk.UnaryClientInterceptor()),
//	)
package breaker

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

// Breaker 熔断器核心接口。所有方法并发安全。
type Breaker interface {
	// Execute 以熔断保护执行 fn。
	//
	// 端点处于 OPEN 且未到恢复时间时，立即返回 ErrCircuitOpen，
	// fn 不会被调用，也不计为一次新失败；HALF_OPEN 下超出探测
	// 配额的调用立即返回 ErrTooManyProbes。
	Execute(ctx context.Context, endpointID string, fn func() (any, error)) (any, error)

	// Status 返回指定端点的熔断状态快照。端点从未使用过时返回
	// 初始 CLOSED 快照。
	Status(endpointID string) Status

	// HealthMetrics 返回所有已知端点的健康快照
	HealthMetrics() map[string]Health

	// Reset 将指定端点强制恢复到初始 CLOSED 状态
	Reset(endpointID string) error

	// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器
	UnaryClientInterceptor(opts ...InterceptorOption) grpc.UnaryClientInterceptor

	// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器
	StreamClientInterceptor(opts ...InterceptorOption) grpc.StreamClientInterceptor

	// Close 停止后台清理并释放资源。幂等。
	Close() error
}

// State 熔断器状态
type State int

const (
	// StateClosed 闭合状态（正常）
	StateClosed State = iota
	// StateHalfOpen 半开状态（探测恢复）
	StateHalfOpen
	// StateOpen 打开状态（熔断中）
	StateOpen
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Status 单个端点的熔断状态快照
type Status struct {
	Endpoint        string    `json:"endpoint"`
	State           State     `json:"state"`
	FailureCount    int       `json:"failure_count"`
	LastFailureTime time.Time `json:"last_failure_time,omitzero"`
	NextAttemptTime time.Time `json:"next_attempt_time,omitzero"`
	HalfOpenCalls   int       `json:"half_open_calls"`
}

// Health 单个端点的健康快照。
//
// IsHealthy 在生成快照时计算：有观测记录且成功率 ≥ 0.8。
type Health struct {
	SuccessCount        int64         `json:"success_count"`
	FailureCount        int64         `json:"failure_count"`
	LastSuccess         time.Time     `json:"last_success,omitzero"`
	LastFailure         time.Time     `json:"last_failure,omitzero"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	IsHealthy           bool          `json:"is_healthy"`
}

// healthyRatio 判定健康所需的最低成功率
const healthyRatio = 0.8

// Config 熔断器配置
type Config struct {
	// FailureThreshold 触发熔断的连续失败次数（默认：5）
	FailureThreshold int `mapstructure:"failure_threshold"`

	// RecoveryTimeout 打开状态持续时间（默认：60s）
	// 超时后的下一次调用进入半开状态探测
	RecoveryTimeout time.Duration `mapstructure:"recovery_timeout"`

	// HalfOpenMaxCalls 半开状态下允许通过的最大探测数（默认：3）
	HalfOpenMaxCalls int `mapstructure:"half_open_max_calls"`

	// MonitoringWindow 端点不活跃判定窗口（默认：5m）
	// 最近活动早于此窗口的端点会被后台清理移除
	MonitoringWindow time.Duration `mapstructure:"monitoring_window"`

	// SweepInterval 后台清理周期（默认：1m）
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 60 * time.Second
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 3
	}
	if c.MonitoringWindow <= 0 {
		c.MonitoringWindow = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
}

// New 创建熔断器实例并启动后台清理。
//
// 使用示例:
//
//	brk, _ := breaker.New(&breaker.Config{
//		FailureThreshold: 5,
//		RecoveryTimeout:  30 * time.Second,
//	}, breaker.WithLogger(logger), breaker.WithSink(s))
//	defer brk.Close()
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	cfg.setDefaults()

	o := applyOptions(opts...)
	return newBreaker(cfg, o), nil
}
