package guard

import "github.com/ceyewan/aegis/xerrors"

// 错误定义
var (
	// ErrNilDegradeManager 缺少降级管理器
	ErrNilDegradeManager = xerrors.New("guard: degrade manager is nil")

	// ErrNilRecoveryManager 缺少恢复管理器
	ErrNilRecoveryManager = xerrors.New("guard: recovery manager is nil")

	// ErrFeatureDisabled 操作类别对应的能力在当前档位被禁用。
	// 准入错误，从不重试，也不会触碰网络。
	ErrFeatureDisabled = xerrors.New("guard: feature disabled by current quality profile")

	// ErrGuardClosed 门面已关闭
	ErrGuardClosed = xerrors.New("guard: guard is closed")
)
