package recovery

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/cache"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/sink"
	"github.com/ceyewan/aegis/xerrors"
)

// manager Manager 的默认实现
type manager struct {
	cfg     *Config
	logger  clog.Logger
	meter   metrics.Meter
	sink    sink.Sink
	breaker breaker.Breaker
	cache   cache.Cache

	mu         sync.RWMutex
	strategies map[string]Strategy

	// sleep 可在测试中替换以消除真实等待
	sleep func(ctx context.Context, d time.Duration) error
}

// newManager 创建实现实例
func newManager(cfg *Config, o *options) *manager {
	return &manager{
		cfg:        cfg,
		logger:     o.logger,
		meter:      o.meter,
		sink:       o.sink,
		breaker:    o.breaker,
		cache:      o.cache,
		strategies: make(map[string]Strategy),
		sleep:      sleepContext,
	}
}

// sleepContext 可被取消的等待
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RegisterStrategy 按操作类别注册恢复策略
func (m *manager) RegisterStrategy(classID string, s Strategy) error {
	if classID == "" {
		return ErrClassEmpty
	}
	switch s.Kind {
	case KindFallback:
		if s.Fallback == nil {
			return ErrNoFallback
		}
	case KindCache:
		if s.CacheKey == "" {
			return ErrNoCacheKey
		}
	}

	m.mu.Lock()
	m.strategies[classID] = s
	m.mu.Unlock()

	m.logger.Debug("recovery strategy registered",
		clog.String("class", classID),
		clog.String("kind", string(s.Kind)),
		clog.Int("max_attempts", s.MaxAttempts))
	return nil
}

// resolveStrategy 合并默认值、注册策略与调用覆盖项
func (m *manager) resolveStrategy(classID string, override *Strategy) Strategy {
	s := Strategy{
		Kind:              KindRetry,
		MaxAttempts:       m.cfg.MaxAttempts,
		BackoffMultiplier: m.cfg.BackoffMultiplier,
		BaseDelay:         m.cfg.BaseDelay,
		MaxDelay:          m.cfg.MaxDelay,
	}

	m.mu.RLock()
	registered, ok := m.strategies[classID]
	m.mu.RUnlock()
	if ok {
		mergeStrategy(&s, &registered)
	}
	if override != nil {
		mergeStrategy(&s, override)
	}
	return s
}

// mergeStrategy 将 src 的非零字段合并进 dst
func mergeStrategy(dst, src *Strategy) {
	if src.Kind != "" {
		dst.Kind = src.Kind
	}
	if src.MaxAttempts > 0 {
		dst.MaxAttempts = src.MaxAttempts
	}
	if src.BackoffMultiplier > 0 {
		dst.BackoffMultiplier = src.BackoffMultiplier
	}
	if src.BaseDelay > 0 {
		dst.BaseDelay = src.BaseDelay
	}
	if src.MaxDelay > 0 {
		dst.MaxDelay = src.MaxDelay
	}
	if src.Fallback != nil {
		dst.Fallback = src.Fallback
	}
	if src.CacheKey != "" {
		dst.CacheKey = src.CacheKey
	}
	if src.Placeholder != nil {
		dst.Placeholder = src.Placeholder
	}
}

// Execute 以恢复策略执行操作
func (m *manager) Execute(ctx context.Context, op Operation, override *Strategy) (any, error) {
	if op.Class == "" {
		return nil, ErrClassEmpty
	}
	if op.Do == nil {
		return nil, ErrNilOperation
	}

	s := m.resolveStrategy(op.Class, override)

	var lastErr error
	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		result, err := m.invoke(ctx, op)
		if err == nil {
			m.countAttempt(ctx, op.Class, "success")
			return result, nil
		}
		lastErr = err

		// 熔断拒绝：端点已知故障，继续重试没有意义，立即中止
		if xerrors.Is(err, breaker.ErrCircuitOpen) || xerrors.Is(err, breaker.ErrTooManyProbes) {
			m.logger.Warn("circuit rejection aborts retries",
				clog.String("class", op.Class),
				clog.String("endpoint", op.Endpoint),
				clog.Int("attempt", attempt))
			m.report(ctx, err, op, attempt)
			m.countAttempt(ctx, op.Class, "aborted")
			break
		}

		m.countAttempt(ctx, op.Class, "failure")
		m.report(ctx, err, op, attempt)

		if attempt == s.MaxAttempts {
			break
		}

		delay := backoffDelay(s, attempt)
		m.logger.Info("retrying operation",
			clog.String("class", op.Class),
			clog.Int("attempt", attempt),
			clog.Int("max_attempts", s.MaxAttempts),
			clog.Duration("delay", delay),
			clog.Error(err))
		m.recordBackoff(ctx, op.Class, delay)

		if serr := m.sleep(ctx, delay); serr != nil {
			// 退避等待中被取消：取消错误优先于操作错误
			return nil, serr
		}
	}

	m.countExhausted(ctx, op.Class, s.Kind)
	return m.resolve(ctx, op, s, lastErr)
}

// invoke 执行单次尝试。带端点的操作经由熔断器执行。
func (m *manager) invoke(ctx context.Context, op Operation) (any, error) {
	if op.Endpoint != "" && m.breaker != nil {
		return m.breaker.Execute(ctx, op.Endpoint, func() (any, error) {
			return op.Do(ctx)
		})
	}
	return op.Do(ctx)
}

// backoffDelay 计算第 attempt 次失败后的退避时长：
// BaseDelay × Multiplier^(attempt-1) 加至多 10% 随机抖动，整体封顶 MaxDelay
func backoffDelay(s Strategy, attempt int) time.Duration {
	d := float64(s.BaseDelay) * math.Pow(s.BackoffMultiplier, float64(attempt-1))
	d += rand.Float64() * 0.1 * d
	if d > float64(s.MaxDelay) {
		d = float64(s.MaxDelay)
	}
	return time.Duration(d)
}

// resolve 重试耗尽后的最终处置。
// fallback 失败与缓存未命中都重新抛出原始的最后一次操作错误。
func (m *manager) resolve(ctx context.Context, op Operation, s Strategy, lastErr error) (any, error) {
	switch s.Kind {
	case KindFallback:
		if s.Fallback != nil {
			result, err := s.Fallback(ctx)
			if err == nil {
				m.countResolution(ctx, op.Class, s.Kind, "resolved")
				return result, nil
			}
			m.logger.Warn("fallback action failed",
				clog.String("class", op.Class),
				clog.Error(err))
		}

	case KindCache:
		if m.cache != nil && s.CacheKey != "" {
			var cached any
			if err := m.cache.Get(ctx, s.CacheKey, &cached); err == nil {
				m.logger.Info("serving cached result after exhausted retries",
					clog.String("class", op.Class),
					clog.String("cache_key", s.CacheKey))
				m.countResolution(ctx, op.Class, s.Kind, "resolved")
				return cached, nil
			}
		}

	case KindDegrade:
		// 占位值处置从不抛错
		m.countResolution(ctx, op.Class, s.Kind, "resolved")
		return s.Placeholder, nil
	}

	m.countResolution(ctx, op.Class, s.Kind, "reraised")
	return nil, lastErr
}

// report 上报一次失败
func (m *manager) report(ctx context.Context, err error, op Operation, attempt int) {
	m.sink.Report(ctx, err, sink.Context{
		Component:      "recovery",
		OperationClass: op.Class,
		Endpoint:       op.Endpoint,
		Attempt:        attempt,
	})
}

func (m *manager) countAttempt(ctx context.Context, class, result string) {
	if counter, err := m.meter.Counter(MetricAttemptsTotal, "Operation attempts"); err == nil && counter != nil {
		counter.Inc(ctx, metrics.L(LabelClass, class), metrics.L(LabelResult, result))
	}
}

func (m *manager) countExhausted(ctx context.Context, class string, kind Kind) {
	if counter, err := m.meter.Counter(MetricExhaustedTotal, "Exhausted retry sequences"); err == nil && counter != nil {
		counter.Inc(ctx, metrics.L(LabelClass, class), metrics.L(LabelKind, string(kind)))
	}
}

func (m *manager) countResolution(ctx context.Context, class string, kind Kind, outcome string) {
	if counter, err := m.meter.Counter(MetricResolutionsTotal, "Final resolutions"); err == nil && counter != nil {
		counter.Inc(ctx,
			metrics.L(LabelClass, class),
			metrics.L(LabelKind, string(kind)),
			metrics.L(LabelOutcome, outcome))
	}
}

func (m *manager) recordBackoff(ctx context.Context, class string, delay time.Duration) {
	if hist, err := m.meter.Histogram(MetricBackoffSeconds, "Backoff wait duration", metrics.WithUnit("s")); err == nil && hist != nil {
		hist.Record(ctx, delay.Seconds(), metrics.L(LabelClass, class))
	}
}
