package breaker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/aegis/sink"
	"github.com/ceyewan/aegis/xerrors"
)

var errBoom = xerrors.New("boom")

// fakeClock 测试用可控时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(t *testing.T, cfg *Config, opts ...Option) (*circuitBreaker, *fakeClock) {
	t.Helper()
	if cfg == nil {
		cfg = &Config{
			FailureThreshold: 3,
			RecoveryTimeout:  30 * time.Second,
			HalfOpenMaxCalls: 2,
		}
	}
	brk, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = brk.Close() })

	cb := brk.(*circuitBreaker)
	clock := newFakeClock()
	cb.now = clock.Now
	return cb, clock
}

func fail(cb *circuitBreaker, endpoint string) error {
	_, err := cb.Execute(context.Background(), endpoint, func() (any, error) {
		return nil, errBoom
	})
	return err
}

func succeed(cb *circuitBreaker, endpoint string) error {
	_, err := cb.Execute(context.Background(), endpoint, func() (any, error) {
		return "ok", nil
	})
	return err
}

func TestNewNilConfig(t *testing.T) {
	brk, err := New(nil)
	assert.Nil(t, brk)
	assert.ErrorIs(t, err, ErrConfigNil)
}

func TestExecuteEmptyEndpoint(t *testing.T) {
	cb, _ := newTestBreaker(t, nil)
	_, err := cb.Execute(context.Background(), "", func() (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrEndpointEmpty)
}

func TestExecutePassesThroughResult(t *testing.T) {
	cb, _ := newTestBreaker(t, nil)

	result, err := cb.Execute(context.Background(), "/v1/users", func() (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(t, nil)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, fail(cb, "/v1/users"), errBoom)
	}

	st := cb.Status("/v1/users")
	assert.Equal(t, StateOpen, st.State)
	assert.Equal(t, 3, st.FailureCount)
	assert.False(t, st.NextAttemptTime.IsZero())
}

func TestOpenRejectsWithoutInvoking(t *testing.T) {
	cb, _ := newTestBreaker(t, nil)

	for i := 0; i < 3; i++ {
		_ = fail(cb, "/v1/users")
	}

	invoked := false
	_, err := cb.Execute(context.Background(), "/v1/users", func() (any, error) {
		invoked = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, invoked)

	// 拒绝不计为新失败
	st := cb.Status("/v1/users")
	assert.Equal(t, 3, st.FailureCount)

	// 健康统计同样不受拒绝影响
	h := cb.HealthMetrics()["/v1/users"]
	assert.EqualValues(t, 3, h.FailureCount)
}

func TestLazyHalfOpenTransition(t *testing.T) {
	cb, clock := newTestBreaker(t, nil)

	for i := 0; i < 3; i++ {
		_ = fail(cb, "/v1/users")
	}
	require.Equal(t, StateOpen, cb.Status("/v1/users").State)

	// 恢复期未到，仍然拒绝
	clock.Advance(29 * time.Second)
	assert.ErrorIs(t, fail(cb, "/v1/users"), ErrCircuitOpen)

	// 恢复期已过，下一次调用作为探测放行
	clock.Advance(2 * time.Second)
	require.NoError(t, succeed(cb, "/v1/users"))

	st := cb.Status("/v1/users")
	assert.Equal(t, StateClosed, st.State)
	assert.Equal(t, 0, st.FailureCount)
	assert.Equal(t, 0, st.HalfOpenCalls)
}

func TestHalfOpenRejectsBeyondQuota(t *testing.T) {
	cb, clock := newTestBreaker(t, &Config{
		FailureThreshold: 2,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 1,
	})

	_ = fail(cb, "/v1/sync")
	_ = fail(cb, "/v1/sync")
	require.Equal(t, StateOpen, cb.Status("/v1/sync").State)

	clock.Advance(31 * time.Second)

	// 第一个探测放行但被设计为长时间挂起的场景这里用串行模拟：
	// 探测名额耗尽后的调用立即拒绝
	block := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := cb.Execute(context.Background(), "/v1/sync", func() (any, error) {
			close(block)
			time.Sleep(50 * time.Millisecond)
			return "ok", nil
		})
		done <- err
	}()

	<-block
	invoked := false
	_, err := cb.Execute(context.Background(), "/v1/sync", func() (any, error) {
		invoked = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrTooManyProbes)
	assert.False(t, invoked)

	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.Status("/v1/sync").State)
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(t, &Config{
		FailureThreshold: 1,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 3,
	})

	_ = fail(cb, "/v1/feed")
	require.Equal(t, StateOpen, cb.Status("/v1/feed").State)
	firstDeadline := cb.Status("/v1/feed").NextAttemptTime

	clock.Advance(31 * time.Second)
	assert.ErrorIs(t, fail(cb, "/v1/feed"), errBoom)

	st := cb.Status("/v1/feed")
	assert.Equal(t, StateOpen, st.State)
	// 重新打开时恢复期重新计时
	assert.True(t, st.NextAttemptTime.After(firstDeadline))
}

func TestClosedSuccessDoesNotResetFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(t, nil)

	_ = fail(cb, "/v1/users")
	_ = fail(cb, "/v1/users")
	require.NoError(t, succeed(cb, "/v1/users"))

	st := cb.Status("/v1/users")
	assert.Equal(t, StateClosed, st.State)
	assert.Equal(t, 2, st.FailureCount)

	// 第三次失败后达到阈值，打开
	_ = fail(cb, "/v1/users")
	assert.Equal(t, StateOpen, cb.Status("/v1/users").State)
}

func TestEndpointsAreIndependent(t *testing.T) {
	cb, _ := newTestBreaker(t, nil)

	for i := 0; i < 3; i++ {
		_ = fail(cb, "/v1/users")
	}
	assert.Equal(t, StateOpen, cb.Status("/v1/users").State)
	assert.Equal(t, StateClosed, cb.Status("/v1/feed").State)
	require.NoError(t, succeed(cb, "/v1/feed"))
}

func TestHealthMetrics(t *testing.T) {
	cb, _ := newTestBreaker(t, &Config{FailureThreshold: 100})

	for i := 0; i < 9; i++ {
		require.NoError(t, succeed(cb, "/v1/users"))
	}
	_ = fail(cb, "/v1/users")

	h := cb.HealthMetrics()["/v1/users"]
	assert.EqualValues(t, 9, h.SuccessCount)
	assert.EqualValues(t, 1, h.FailureCount)
	// 9/10 = 0.9 ≥ 0.8
	assert.True(t, h.IsHealthy)

	_ = fail(cb, "/v1/users")
	_ = fail(cb, "/v1/users")
	h = cb.HealthMetrics()["/v1/users"]
	// 9/12 = 0.75 < 0.8
	assert.False(t, h.IsHealthy)
	assert.False(t, h.LastSuccess.IsZero())
	assert.False(t, h.LastFailure.IsZero())
}

func TestHealthRequiresObservations(t *testing.T) {
	cb, _ := newTestBreaker(t, nil)
	assert.Empty(t, cb.HealthMetrics())
	assert.Equal(t, StateClosed, cb.Status("/never-called").State)
}

func TestReset(t *testing.T) {
	cb, _ := newTestBreaker(t, nil)

	for i := 0; i < 3; i++ {
		_ = fail(cb, "/v1/users")
	}
	require.Equal(t, StateOpen, cb.Status("/v1/users").State)

	require.NoError(t, cb.Reset("/v1/users"))
	st := cb.Status("/v1/users")
	assert.Equal(t, StateClosed, st.State)
	assert.Equal(t, 0, st.FailureCount)
	assert.True(t, st.NextAttemptTime.IsZero())

	require.NoError(t, succeed(cb, "/v1/users"))

	// 未知端点的 Reset 是空操作
	require.NoError(t, cb.Reset("/unknown"))
	assert.ErrorIs(t, cb.Reset(""), ErrEndpointEmpty)
}

func TestSweepRemovesIdleEndpoints(t *testing.T) {
	cb, clock := newTestBreaker(t, &Config{
		FailureThreshold: 3,
		MonitoringWindow: time.Minute,
	})

	require.NoError(t, succeed(cb, "/stale"))
	clock.Advance(2 * time.Minute)
	require.NoError(t, succeed(cb, "/fresh"))

	cb.sweep()

	metrics := cb.HealthMetrics()
	assert.NotContains(t, metrics, "/stale")
	assert.Contains(t, metrics, "/fresh")
}

func TestCloseIdempotent(t *testing.T) {
	brk, err := New(&Config{})
	require.NoError(t, err)

	require.NoError(t, brk.Close())
	require.NoError(t, brk.Close())

	_, err = brk.Execute(context.Background(), "/v1/users", func() (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrBreakerClosed)
}

type captureSink struct {
	mu      sync.Mutex
	reports []sink.Context
}

func (s *captureSink) Report(_ context.Context, _ error, sctx sink.Context) {
	s.mu.Lock()
	s.reports = append(s.reports, sctx)
	s.mu.Unlock()
}

func TestFailuresForwardedToSink(t *testing.T) {
	capture := &captureSink{}
	cb, _ := newTestBreaker(t, nil, WithSink(capture))

	_ = fail(cb, "/v1/users")
	require.NoError(t, succeed(cb, "/v1/users"))
	_ = fail(cb, "/v1/users")

	capture.mu.Lock()
	defer capture.mu.Unlock()
	require.Len(t, capture.reports, 2)
	assert.Equal(t, "breaker", capture.reports[0].Component)
	assert.Equal(t, "/v1/users", capture.reports[0].Endpoint)
	assert.Contains(t, capture.reports[0].AdditionalData, "state")
}

func TestConcurrentExecute(t *testing.T) {
	cb, _ := newTestBreaker(t, &Config{FailureThreshold: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if (n+j)%2 == 0 {
					_ = succeed(cb, "/v1/users")
				} else {
					_ = fail(cb, "/v1/users")
				}
			}
		}(i)
	}
	wg.Wait()

	h := cb.HealthMetrics()["/v1/users"]
	assert.EqualValues(t, 1000, h.SuccessCount+h.FailureCount)
}
