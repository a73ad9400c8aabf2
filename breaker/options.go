package breaker

import (
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/sink"
)

// Option 组件初始化选项函数
type Option func(*options)

// options 组件初始化选项配置（内部使用，小写）
type options struct {
	logger clog.Logger
	meter  metrics.Meter
	sink   sink.Sink
}

// WithLogger 设置 Logger，内部会自动添加 namespace: "breaker"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("breaker")
		}
	}
}

// WithMeter 设置指标组件
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithSink 设置故障上报出口。
// 每次调用失败都会连同端点与健康上下文上报，上报不阻塞调用结果。
func WithSink(s sink.Sink) Option {
	return func(o *options) {
		if s != nil {
			o.sink = s
		}
	}
}

// applyOptions 应用选项并填充默认值
func applyOptions(opts ...Option) *options {
	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
		sink:   sink.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
