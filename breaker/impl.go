package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/sink"
)

// entry 单个端点的熔断状态与健康统计。
// 由所属 circuitBreaker 独占持有，所有字段受 mu 保护。
type entry struct {
	mu sync.Mutex

	// 熔断状态机
	state           State
	failureCount    int
	lastFailureTime time.Time
	nextAttemptTime time.Time
	halfOpenCalls   int

	// 健康统计
	successCount int64
	failTotal    int64
	lastSuccess  time.Time
	lastFailure  time.Time
	avgResponse  time.Duration

	// 最近活动时间，清理判定用
	lastActivity time.Time
}

// circuitBreaker Breaker 的默认实现
type circuitBreaker struct {
	cfg    *Config
	logger clog.Logger
	meter  metrics.Meter
	sink   sink.Sink

	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool

	stopCh chan struct{}
	doneCh chan struct{}

	// now 可在测试中替换以控制时间
	now func() time.Time
}

// newBreaker 创建实现实例并启动后台清理
func newBreaker(cfg *Config, o *options) *circuitBreaker {
	cb := &circuitBreaker{
		cfg:     cfg,
		logger:  o.logger,
		meter:   o.meter,
		sink:    o.sink,
		entries: make(map[string]*entry),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		now:     time.Now,
	}

	cb.logger.Info("circuit breaker created",
		clog.Int("failure_threshold", cfg.FailureThreshold),
		clog.Duration("recovery_timeout", cfg.RecoveryTimeout),
		clog.Int("half_open_max_calls", cfg.HalfOpenMaxCalls),
		clog.Duration("monitoring_window", cfg.MonitoringWindow))

	go cb.sweepLoop()
	return cb
}

// getEntry 查找或惰性创建端点条目
func (cb *circuitBreaker) getEntry(endpointID string) *entry {
	cb.mu.RLock()
	e, ok := cb.entries[endpointID]
	cb.mu.RUnlock()
	if ok {
		return e
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if e, ok = cb.entries[endpointID]; ok {
		return e
	}
	e = &entry{state: StateClosed, lastActivity: cb.now()}
	cb.entries[endpointID] = e
	cb.gaugeEndpoints(len(cb.entries))
	return e
}

// Execute 以熔断保护执行 fn
func (cb *circuitBreaker) Execute(ctx context.Context, endpointID string, fn func() (any, error)) (any, error) {
	if endpointID == "" {
		return nil, ErrEndpointEmpty
	}

	cb.mu.RLock()
	closed := cb.closed
	cb.mu.RUnlock()
	if closed {
		return nil, ErrBreakerClosed
	}

	e := cb.getEntry(endpointID)

	// 准入判定：持有条目锁做状态转移，保证同一端点同一时刻只有
	// 一次转移在进行
	if err := cb.admit(e, endpointID); err != nil {
		cb.countRequest(ctx, endpointID, "rejected")
		return nil, err
	}

	start := cb.now()
	result, err := fn()
	elapsed := cb.now().Sub(start)

	if err != nil {
		cb.onFailure(ctx, e, endpointID, err, elapsed)
		cb.countRequest(ctx, endpointID, "failure")
		return nil, err
	}

	cb.onSuccess(e, endpointID, elapsed)
	cb.countRequest(ctx, endpointID, "success")
	return result, nil
}

// admit 判定调用是否被放行，并执行 OPEN→HALF_OPEN 的惰性转移
func (cb *circuitBreaker) admit(e *entry, endpointID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := cb.now()
	e.lastActivity = now

	switch e.state {
	case StateClosed:
		return nil

	case StateOpen:
		if now.Before(e.nextAttemptTime) {
			return ErrCircuitOpen
		}
		// 恢复期已过，转入半开，当前调用作为第一个探测
		cb.transition(e, endpointID, StateOpen, StateHalfOpen)
		e.state = StateHalfOpen
		e.halfOpenCalls = 1
		return nil

	case StateHalfOpen:
		if e.halfOpenCalls >= cb.cfg.HalfOpenMaxCalls {
			return ErrTooManyProbes
		}
		e.halfOpenCalls++
		return nil

	default:
		return nil
	}
}

// onSuccess 记录成功结果并推进状态机
func (cb *circuitBreaker) onSuccess(e *entry, endpointID string, elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := cb.now()
	e.lastActivity = now
	e.successCount++
	e.lastSuccess = now
	e.avgResponse = updateAverage(e.avgResponse, elapsed, e.successCount+e.failTotal)

	// 半开探测成功即恢复；CLOSED 下的成功不触碰 failureCount
	if e.state == StateHalfOpen {
		cb.transition(e, endpointID, StateHalfOpen, StateClosed)
		e.state = StateClosed
		e.failureCount = 0
		e.halfOpenCalls = 0
	}
}

// onFailure 记录失败结果、推进状态机并上报故障
func (cb *circuitBreaker) onFailure(ctx context.Context, e *entry, endpointID string, opErr error, elapsed time.Duration) {
	e.mu.Lock()

	now := cb.now()
	e.lastActivity = now
	e.failTotal++
	e.lastFailure = now
	e.avgResponse = updateAverage(e.avgResponse, elapsed, e.successCount+e.failTotal)

	e.failureCount++
	e.lastFailureTime = now

	if e.failureCount >= cb.cfg.FailureThreshold && e.state != StateOpen {
		from := e.state
		cb.transition(e, endpointID, from, StateOpen)
		e.state = StateOpen
		e.nextAttemptTime = now.Add(cb.cfg.RecoveryTimeout)
		e.halfOpenCalls = 0
		cb.logger.Warn("circuit opened",
			clog.String("endpoint", endpointID),
			clog.Int("failure_count", e.failureCount),
			clog.Time("next_attempt", e.nextAttemptTime))
	}

	health := snapshotHealth(e)
	state := e.state
	e.mu.Unlock()

	// 上报在锁外进行，不让 sink 阻塞状态机
	cb.sink.Report(ctx, opErr, sink.Context{
		Component: "breaker",
		Endpoint:  endpointID,
		AdditionalData: map[string]any{
			"state":         state.String(),
			"success_count": health.SuccessCount,
			"failure_count": health.FailureCount,
			"is_healthy":    health.IsHealthy,
		},
	})
}

// transition 记录一次状态变更（调用方持有条目锁）
func (cb *circuitBreaker) transition(e *entry, endpointID string, from, to State) {
	cb.logger.Info("circuit state changed",
		clog.String("endpoint", endpointID),
		clog.String("from", from.String()),
		clog.String("to", to.String()))

	if counter, err := cb.meter.Counter(MetricStateChanges, "Circuit state transitions"); err == nil && counter != nil {
		counter.Add(context.Background(), 1,
			metrics.L(LabelEndpoint, endpointID),
			metrics.L(LabelFromState, from.String()),
			metrics.L(LabelToState, to.String()))
	}
}

// Status 返回指定端点的熔断状态快照
func (cb *circuitBreaker) Status(endpointID string) Status {
	cb.mu.RLock()
	e, ok := cb.entries[endpointID]
	cb.mu.RUnlock()

	if !ok {
		return Status{Endpoint: endpointID, State: StateClosed}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Endpoint:        endpointID,
		State:           e.state,
		FailureCount:    e.failureCount,
		LastFailureTime: e.lastFailureTime,
		NextAttemptTime: e.nextAttemptTime,
		HalfOpenCalls:   e.halfOpenCalls,
	}
}

// HealthMetrics 返回所有已知端点的健康快照
func (cb *circuitBreaker) HealthMetrics() map[string]Health {
	cb.mu.RLock()
	snapshot := make(map[string]*entry, len(cb.entries))
	for id, e := range cb.entries {
		snapshot[id] = e
	}
	cb.mu.RUnlock()

	out := make(map[string]Health, len(snapshot))
	for id, e := range snapshot {
		e.mu.Lock()
		out[id] = snapshotHealth(e)
		e.mu.Unlock()
	}
	return out
}

// snapshotHealth 生成健康快照（调用方持有条目锁）。
// IsHealthy 在此即时计算，内部从不存储。
func snapshotHealth(e *entry) Health {
	total := e.successCount + e.failTotal
	return Health{
		SuccessCount:        e.successCount,
		FailureCount:        e.failTotal,
		LastSuccess:         e.lastSuccess,
		LastFailure:         e.lastFailure,
		AverageResponseTime: e.avgResponse,
		IsHealthy:           total > 0 && float64(e.successCount)/float64(total) >= healthyRatio,
	}
}

// updateAverage 增量更新运行平均值，n 为含本次的观测总数
func updateAverage(avg, sample time.Duration, n int64) time.Duration {
	if n <= 1 {
		return sample
	}
	return avg + (sample-avg)/time.Duration(n)
}

// Reset 将指定端点强制恢复到初始 CLOSED 状态
func (cb *circuitBreaker) Reset(endpointID string) error {
	if endpointID == "" {
		return ErrEndpointEmpty
	}

	cb.mu.RLock()
	e, ok := cb.entries[endpointID]
	cb.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateClosed {
		cb.transition(e, endpointID, e.state, StateClosed)
	}
	e.state = StateClosed
	e.failureCount = 0
	e.halfOpenCalls = 0
	e.nextAttemptTime = time.Time{}
	e.lastActivity = cb.now()
	return nil
}

// Close 停止后台清理。幂等。
func (cb *circuitBreaker) Close() error {
	cb.mu.Lock()
	if cb.closed {
		cb.mu.Unlock()
		return nil
	}
	cb.closed = true
	cb.mu.Unlock()

	close(cb.stopCh)
	<-cb.doneCh
	cb.logger.Info("circuit breaker closed")
	return nil
}

// sweepLoop 周期清理不活跃端点
func (cb *circuitBreaker) sweepLoop() {
	defer close(cb.doneCh)

	ticker := time.NewTicker(cb.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cb.stopCh:
			return
		case <-ticker.C:
			cb.sweep()
		}
	}
}

// sweep 移除最近活动早于监控窗口的端点条目
func (cb *circuitBreaker) sweep() {
	cutoff := cb.now().Add(-cb.cfg.MonitoringWindow)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	removed := 0
	for id, e := range cb.entries {
		e.mu.Lock()
		idle := e.lastActivity.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(cb.entries, id)
			removed++
		}
	}

	if removed > 0 {
		cb.logger.Debug("swept idle endpoints", clog.Int("removed", removed), clog.Int("remaining", len(cb.entries)))
		cb.gaugeEndpoints(len(cb.entries))
	}
}

// gaugeEndpoints 上报当前跟踪的端点数（调用方持有 cb.mu）
func (cb *circuitBreaker) gaugeEndpoints(n int) {
	if gauge, err := cb.meter.Gauge(MetricTrackedEndpoints, "Tracked endpoints"); err == nil && gauge != nil {
		gauge.Set(context.Background(), float64(n))
	}
}

// countRequest 记录一次请求结果指标
func (cb *circuitBreaker) countRequest(ctx context.Context, endpointID, result string) {
	if counter, err := cb.meter.Counter(MetricRequestsTotal, "Total requests"); err == nil && counter != nil {
		counter.Add(ctx, 1,
			metrics.L(LabelEndpoint, endpointID),
			metrics.L(LabelResult, result))
	}
}
