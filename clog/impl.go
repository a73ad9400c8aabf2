package clog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NamespaceKey 是日志中命名空间的字段名，用于标识组件来源
const NamespaceKey = "namespace"

// loggerImpl 是 Logger 接口的具体实现
type loggerImpl struct {
	sl        *slog.Logger
	level     *slog.LevelVar // 同一棵 Logger 树共享
	namespace []string
}

// newLogger 创建 Logger 实例（内部使用）
func newLogger(config *Config, opt *options) (Logger, error) {
	w, err := resolveOutput(config.Output, opt.writer)
	if err != nil {
		return nil, err
	}

	levelVar := &slog.LevelVar{}
	parsed, _ := ParseLevel(config.Level)
	levelVar.Set(parsed.toSlogLevel())

	handlerOpts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return &loggerImpl{
		sl:        slog.New(handler),
		level:     levelVar,
		namespace: opt.namespaceParts,
	}, nil
}

// resolveOutput 解析输出目标（内部使用）
func resolveOutput(output string, override io.Writer) (io.Writer, error) {
	if override != nil {
		return override, nil
	}
	switch output {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log output %s: %w", output, err)
		}
		return f, nil
	}
}

func (l *loggerImpl) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *loggerImpl) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *loggerImpl) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *loggerImpl) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

func (l *loggerImpl) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !l.sl.Enabled(ctx, level) {
		return
	}
	attrs := fields
	if len(l.namespace) > 0 {
		attrs = make([]slog.Attr, 0, len(fields)+1)
		attrs = append(attrs, slog.String(NamespaceKey, strings.Join(l.namespace, ".")))
		attrs = append(attrs, fields...)
	}
	l.sl.LogAttrs(ctx, level, msg, attrs...)
}

func (l *loggerImpl) With(fields ...Field) Logger {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return &loggerImpl{
		sl:        l.sl.With(args...),
		level:     l.level,
		namespace: l.namespace,
	}
}

func (l *loggerImpl) WithNamespace(parts ...string) Logger {
	ns := make([]string, 0, len(l.namespace)+len(parts))
	ns = append(ns, l.namespace...)
	ns = append(ns, parts...)
	return &loggerImpl{
		sl:        l.sl,
		level:     l.level,
		namespace: ns,
	}
}

func (l *loggerImpl) SetLevel(level Level) {
	l.level.Set(level.toSlogLevel())
}
