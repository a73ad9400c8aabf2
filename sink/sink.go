// Package sink 定义故障遥测上报的统一出口。
//
// breaker 的每次熔断失败、recovery 的每次重试与最终失败，都会在错误
// 被重新抛出或转换为降级值之前上报到 Sink。上报是单向的：核心组件
// 不消费 Sink 的任何返回值，上报失败也不影响调用方看到的结果。
package sink

import (
	"context"
)

// Context 描述一次故障上报的来源信息。
type Context struct {
	// OperationClass 操作类别标识，如 "api-call"、"sync-push"
	OperationClass string

	// Component 上报来源组件，如 "breaker"、"recovery"
	Component string

	// Endpoint 关联端点（可为空）
	Endpoint string

	// Attempt 失败发生时的尝试序号（从 1 开始，0 表示不适用）
	Attempt int

	// AdditionalData 附加上下文，如熔断状态、健康统计
	AdditionalData map[string]any
}

// Sink 接收故障上报。实现必须是并发安全的，且不得阻塞调用方过久。
type Sink interface {
	Report(ctx context.Context, err error, sctx Context)
}
