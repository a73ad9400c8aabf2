package connector

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("connector: config is nil")

	// ErrNotConnected 尚未建立连接
	ErrNotConnected = xerrors.New("connector: not connected, call Connect first")

	// ErrAlreadyClosed 连接器已关闭
	ErrAlreadyClosed = xerrors.New("connector: already closed")
)
