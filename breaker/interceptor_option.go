package breaker

// InterceptorOption 拦截器选项函数类型
type InterceptorOption func(*interceptorConfig)

// interceptorConfig 拦截器内部配置（非导出）
type interceptorConfig struct {
	keyFunc KeyFunc
}

// WithKeyFunc 设置端点标识提取策略，默认 ServiceLevelKey
func WithKeyFunc(kf KeyFunc) InterceptorOption {
	return func(c *interceptorConfig) {
		if kf != nil {
			c.keyFunc = kf
		}
	}
}

// newInterceptorConfig 应用拦截器选项并填充默认值
func newInterceptorConfig(opts ...InterceptorOption) *interceptorConfig {
	c := &interceptorConfig{keyFunc: ServiceLevelKey()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
