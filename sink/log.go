package sink

import (
	"context"

	"github.com/ceyewan/aegis/clog"
)

// logSink 将故障上报写入结构化日志
type logSink struct {
	logger clog.Logger
}

// NewLogSink 创建以 clog 为后端的 Sink。logger 为 nil 时使用 Discard。
func NewLogSink(logger clog.Logger) Sink {
	if logger == nil {
		logger = clog.Discard()
	}
	return &logSink{logger: logger.WithNamespace("sink")}
}

// Report 记录一条故障日志
func (s *logSink) Report(_ context.Context, err error, sctx Context) {
	fields := []clog.Field{
		clog.Error(err),
		clog.String("component", sctx.Component),
		clog.String("operation_class", sctx.OperationClass),
	}
	if sctx.Endpoint != "" {
		fields = append(fields, clog.String("endpoint", sctx.Endpoint))
	}
	if sctx.Attempt > 0 {
		fields = append(fields, clog.Int("attempt", sctx.Attempt))
	}
	if len(sctx.AdditionalData) > 0 {
		fields = append(fields, clog.Any("data", sctx.AdditionalData))
	}
	s.logger.Warn("failure reported", fields...)
}
