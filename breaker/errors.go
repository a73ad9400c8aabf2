package breaker

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("breaker: config is nil")

	// ErrEndpointEmpty 端点标识为空
	ErrEndpointEmpty = xerrors.New("breaker: endpoint is empty")

	// ErrCircuitOpen 熔断器处于打开状态，调用被快速拒绝。
	// 被拒绝的调用不会触发被包装的操作，也不计为一次新失败。
	ErrCircuitOpen = xerrors.New("breaker: circuit is open")

	// ErrTooManyProbes 半开状态下探测配额已用尽
	ErrTooManyProbes = xerrors.New("breaker: too many half-open probes")

	// ErrBreakerClosed 熔断器已被 Close
	ErrBreakerClosed = xerrors.New("breaker: breaker is closed")
)
