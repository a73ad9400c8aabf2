package degrade

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrDuplicateProfile 档位名重复
	ErrDuplicateProfile = xerrors.New("degrade: duplicate profile name")

	// ErrUnknownProfile 档位名不在目录中
	ErrUnknownProfile = xerrors.New("degrade: unknown profile")
)
