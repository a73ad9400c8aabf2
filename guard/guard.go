// Package guard 是 Aegis 的弹性门面，组合降级、恢复与熔断三个组件。
//
// 每个操作先经过准入控制（类别对应的能力开关当前是否可用），再受
// 当前质量档位的并发上限与请求超时约束，最后交给 recovery 按策略
// 执行。档位切换时并发上限随之调整。
//
// ## 基本使用
//
//	g, _ := guard.New(degradeMgr, recoveryMgr,
//		guard.WithBreaker(brk),
//		guard.WithSource(src),
//		guard.WithLogger(logger))
//	defer g.Close()
//
//	result, err := g.Execute(ctx, guard.Operation{
//		Class:    "feed-refresh",
//		Category: degrade.FeatureRealTimeUpdates,
//		Endpoint: "/v1/feed",
//		Do: func(ctx context.Context) (any, error) {
//			return client.FetchFeed(ctx)
//		},
//	})
package guard

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/degrade"
	"github.com/ceyewan/aegis/netstate"
	"github.com/ceyewan/aegis/recovery"

	"github.com/gin-gonic/gin"
)

// Operation 一次受门面保护的操作
type Operation struct {
	// Class 操作类别标识，用于查找 recovery 的注册策略
	Class string

	// Category 操作所属能力类别。非空时做准入检查：对应能力在
	// 当前档位被禁用的操作立即拒绝，不触碰网络与恢复引擎。
	// 为空表示核心操作，始终放行。
	Category degrade.Feature

	// Endpoint 端点标识，透传给 recovery 做熔断委托
	Endpoint string

	// Do 实际执行的操作
	Do func(ctx context.Context) (any, error)

	// Strategy 调用级策略覆盖项，可为 nil
	Strategy *recovery.Strategy
}

// SystemStatus 系统状态聚合快照，一次读取供诊断使用
type SystemStatus struct {
	Profile         string                    `json:"profile"`
	Features        degrade.Features          `json:"features"`
	Circuits        map[string]breaker.Status `json:"circuits"`
	Health          map[string]breaker.Health `json:"health"`
	Network         netstate.State            `json:"network"`
	Recommendations []string                  `json:"recommendations"`
	Timestamp       time.Time                 `json:"timestamp"`
}

// Guard 弹性门面。所有方法并发安全。
type Guard interface {
	// Execute 执行受保护的操作。
	//
	// 准入失败返回 ErrFeatureDisabled；并发槽位在当前档位的请求
	// 超时内不可得时返回超时错误。
	Execute(ctx context.Context, op Operation) (any, error)

	// Status 返回系统状态聚合快照
	Status() SystemStatus

	// Middleware 返回 gin 中间件：指定类别被禁用时以 503 拒绝请求
	Middleware(category degrade.Feature) gin.HandlerFunc

	// StatusHandler 返回以 JSON 输出 Status() 的 gin 处理器
	StatusHandler() gin.HandlerFunc

	// Close 取消档位订阅并释放资源。幂等。
	Close() error
}

// New 创建弹性门面。
//
// degradeMgr 提供准入与限额，recoveryMgr 执行操作；熔断器与遥测源
// 通过选项注入，仅用于丰富 Status() 快照。
func New(degradeMgr degrade.Manager, recoveryMgr recovery.Manager, opts ...Option) (Guard, error) {
	if degradeMgr == nil {
		return nil, ErrNilDegradeManager
	}
	if recoveryMgr == nil {
		return nil, ErrNilRecoveryManager
	}
	return newGuard(degradeMgr, recoveryMgr, applyOptions(opts...)), nil
}
