package cache

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("cache: config is nil")

	// ErrCacheMiss 键不存在或已过期。
	// recovery 组件的 cache 策略依赖此哨兵错误判断缓存未命中。
	ErrCacheMiss = xerrors.New("cache: miss")

	// ErrInvalidDest dest 必须是非 nil 指针
	ErrInvalidDest = xerrors.New("cache: dest must be a non-nil pointer")
)
