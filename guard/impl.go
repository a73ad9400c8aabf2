package guard

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/degrade"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/netstate"
	"github.com/ceyewan/aegis/recovery"
)

// guardImpl Guard 的默认实现
type guardImpl struct {
	degrade  degrade.Manager
	recovery recovery.Manager
	breaker  breaker.Breaker
	source   netstate.Source
	logger   clog.Logger
	meter    metrics.Meter

	// sem 随档位切换整体替换；旧信号量上的在途请求自然结束
	mu     sync.RWMutex
	sem    *semaphore.Weighted
	limit  int64
	closed bool

	unsubscribe netstate.Unsubscribe
	closeOnce   sync.Once
}

// newGuard 创建实现实例并订阅档位变更
func newGuard(dm degrade.Manager, rm recovery.Manager, o *options) *guardImpl {
	limit := int64(dm.MaxConcurrentRequests())
	if limit <= 0 {
		limit = 1
	}

	g := &guardImpl{
		degrade:  dm,
		recovery: rm,
		breaker:  o.breaker,
		source:   o.source,
		logger:   o.logger,
		meter:    o.meter,
		sem:      semaphore.NewWeighted(limit),
		limit:    limit,
	}

	g.unsubscribe = dm.Subscribe(g.onProfileChange)
	g.gaugeLimit(limit)

	g.logger.Info("resilience guard created",
		clog.String("profile", dm.ProfileName()),
		clog.Int("max_concurrent", int(limit)))
	return g
}

// onProfileChange 档位切换时替换并发信号量
func (g *guardImpl) onProfileChange(p degrade.QualityProfile) {
	limit := int64(p.Features.MaxConcurrentRequests)
	if limit <= 0 {
		limit = 1
	}

	g.mu.Lock()
	if limit == g.limit {
		g.mu.Unlock()
		return
	}
	g.sem = semaphore.NewWeighted(limit)
	g.limit = limit
	g.mu.Unlock()

	g.gaugeLimit(limit)
	g.logger.Info("concurrency limit adjusted",
		clog.String("profile", p.Name),
		clog.Int("max_concurrent", int(limit)))
}

// Execute 执行受保护的操作
func (g *guardImpl) Execute(ctx context.Context, op Operation) (any, error) {
	g.mu.RLock()
	closed := g.closed
	sem := g.sem
	g.mu.RUnlock()

	if closed {
		g.countRejection(ctx, op, "closed")
		return nil, ErrGuardClosed
	}

	// 准入控制：被禁用类别的操作立即拒绝，不触碰网络与恢复引擎
	if op.Category != "" && !g.degrade.IsFeatureEnabled(op.Category) {
		g.logger.Debug("operation rejected by admission control",
			clog.String("class", op.Class),
			clog.String("category", string(op.Category)),
			clog.String("profile", g.degrade.ProfileName()))
		g.countRejection(ctx, op, "feature_disabled")
		return nil, ErrFeatureDisabled
	}

	// 当前档位的请求超时同时约束槽位等待与操作本身
	timeout := g.degrade.RequestTimeout()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		g.countResult(ctx, op, "failure")
		return nil, err
	}
	defer sem.Release(1)
	g.trackInflight(ctx, 1)
	defer g.trackInflight(ctx, -1)

	result, err := g.recovery.Execute(ctx, recovery.Operation{
		Class:    op.Class,
		Endpoint: op.Endpoint,
		Do:       op.Do,
	}, op.Strategy)

	if err != nil {
		g.countResult(ctx, op, "failure")
		return nil, err
	}
	g.countResult(ctx, op, "success")
	return result, nil
}

// Status 返回系统状态聚合快照
func (g *guardImpl) Status() SystemStatus {
	status := SystemStatus{
		Profile:         g.degrade.ProfileName(),
		Features:        g.degrade.Features(),
		Recommendations: g.degrade.Recommendations(),
		Timestamp:       time.Now(),
	}

	if g.breaker != nil {
		health := g.breaker.HealthMetrics()
		status.Health = health
		status.Circuits = make(map[string]breaker.Status, len(health))
		for endpoint := range health {
			status.Circuits[endpoint] = g.breaker.Status(endpoint)
		}
	}

	if g.source != nil {
		status.Network = g.source.Current()
	}
	return status
}

// Close 取消档位订阅。幂等。
func (g *guardImpl) Close() error {
	g.closeOnce.Do(func() {
		g.mu.Lock()
		g.closed = true
		g.mu.Unlock()

		if g.unsubscribe != nil {
			g.unsubscribe()
		}
		g.logger.Info("resilience guard closed")
	})
	return nil
}

func (g *guardImpl) countResult(ctx context.Context, op Operation, result string) {
	if counter, err := g.meter.Counter(MetricRequestsTotal, "Guarded requests"); err == nil && counter != nil {
		counter.Inc(ctx,
			metrics.L(LabelClass, op.Class),
			metrics.L(LabelResult, result))
	}
}

func (g *guardImpl) countRejection(ctx context.Context, op Operation, reason string) {
	if counter, err := g.meter.Counter(MetricRejectionsTotal, "Admission rejections"); err == nil && counter != nil {
		counter.Inc(ctx,
			metrics.L(LabelClass, op.Class),
			metrics.L(LabelCategory, string(op.Category)),
			metrics.L(LabelReason, reason))
	}
}

func (g *guardImpl) trackInflight(ctx context.Context, delta int) {
	gauge, err := g.meter.Gauge(MetricInflight, "In-flight guarded requests")
	if err != nil || gauge == nil {
		return
	}
	if delta > 0 {
		gauge.Inc(ctx)
	} else {
		gauge.Dec(ctx)
	}
}

func (g *guardImpl) gaugeLimit(limit int64) {
	if gauge, err := g.meter.Gauge(MetricConcurrencyLimit, "Concurrency limit"); err == nil && gauge != nil {
		gauge.Set(context.Background(), float64(limit))
	}
}
