package recovery

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrClassEmpty 操作类别标识为空
	ErrClassEmpty = xerrors.New("recovery: operation class is empty")

	// ErrNilOperation 操作函数为空
	ErrNilOperation = xerrors.New("recovery: operation Do is nil")

	// ErrNoFallback 策略类型为 fallback 但未提供降级动作
	ErrNoFallback = xerrors.New("recovery: fallback strategy without fallback action")

	// ErrNoCacheKey 策略类型为 cache 但未提供缓存键
	ErrNoCacheKey = xerrors.New("recovery: cache strategy without cache key")
)
