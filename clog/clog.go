// Package clog 为 Aegis 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象接口，不暴露底层实现（slog）
//   - 支持层级命名空间，标识组件来源
//   - 零外部依赖（仅依赖 Go 标准库）
//   - 采用函数式选项模式，符合 Aegis 组件标准
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "console",
//	    Output: "stdout",
//	})
//	logger.Info("operation admitted", clog.String("endpoint", "api/users"))
//
// 创建子 Logger：
//
//	brkLogger := logger.WithNamespace("breaker")
//	brkLogger.Warn("circuit opened", clog.String("endpoint", "api/users"))
package clog

import "fmt"

// New 创建一个新的 Logger 实例
//
// config - 日志配置，如果为 nil 会使用默认配置
// opts   - 函数式选项列表，用于命名空间等配置
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig("aegis")
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opt := applyOptions(opts...)

	return newLogger(config, opt)
}
