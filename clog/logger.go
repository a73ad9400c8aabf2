package clog

// Logger 日志接口，提供结构化日志记录功能
//
// 支持四个日志级别：Debug、Info、Warn、Error。
// 通过 With 和 WithNamespace 可以派生带预设字段或命名空间的子 Logger。
type Logger interface {
	// 基础日志级别方法
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger
	//
	// 预设的字段会出现在该子 Logger 的所有日志中。
	With(fields ...Field) Logger

	// WithNamespace 创建一个扩展命名空间的子 Logger
	//
	// 命名空间会追加到现有命名空间后面，以 "." 连接，
	// 作为日志中的 namespace 字段输出。
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整日志级别
	//
	// 同一 Config 派生出的所有子 Logger 共享级别。
	SetLevel(level Level)
}
