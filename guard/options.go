package guard

import (
	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/netstate"
)

// Option 组件初始化选项函数
type Option func(*options)

// options 组件初始化选项配置（内部使用，小写）
type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	breaker breaker.Breaker
	source  netstate.Source
}

// WithLogger 设置 Logger，内部会自动添加 namespace: "guard"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("guard")
		}
	}
}

// WithMeter 设置指标组件
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithBreaker 注入熔断器，Status() 将包含熔断与健康快照
func WithBreaker(brk breaker.Breaker) Option {
	return func(o *options) {
		o.breaker = brk
	}
}

// WithSource 注入遥测源，Status() 将包含当前网络快照
func WithSource(src netstate.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

// applyOptions 应用选项并填充默认值
func applyOptions(opts ...Option) *options {
	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
