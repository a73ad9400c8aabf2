package recovery

import (
	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/cache"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/sink"
)

// Option 组件初始化选项函数
type Option func(*options)

// options 组件初始化选项配置（内部使用，小写）
type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	sink    sink.Sink
	breaker breaker.Breaker
	cache   cache.Cache
}

// WithLogger 设置 Logger，内部会自动添加 namespace: "recovery"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("recovery")
		}
	}
}

// WithMeter 设置指标组件
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithSink 设置故障上报出口
func WithSink(s sink.Sink) Option {
	return func(o *options) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithBreaker 注入熔断器。未注入时带端点的操作直接执行，不做熔断。
func WithBreaker(brk breaker.Breaker) Option {
	return func(o *options) {
		o.breaker = brk
	}
}

// WithCache 注入缓存，KindCache 策略的存储后端
func WithCache(c cache.Cache) Option {
	return func(o *options) {
		o.cache = c
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
