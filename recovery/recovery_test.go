package recovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/cache"
	"github.com/ceyewan/aegis/sink"
	"github.com/ceyewan/aegis/xerrors"
)

var errBoom = xerrors.New("boom")

// newTestManager 创建恢复管理器并消除真实退避等待
func newTestManager(t *testing.T, cfg *Config, opts ...Option) (*manager, *[]time.Duration) {
	t.Helper()
	mgr, err := New(cfg, opts...)
	require.NoError(t, err)

	m := mgr.(*manager)
	delays := &[]time.Duration{}
	m.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return m, delays
}

func alwaysFail(calls *int) func(ctx context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		*calls++
		return nil, errBoom
	}
}

func TestDefaultStrategyThreeAttempts(t *testing.T) {
	m, delays := newTestManager(t, nil)

	var calls int
	result, err := m.Execute(context.Background(), Operation{
		Class: "api-call",
		Do:    alwaysFail(&calls),
	}, nil)

	assert.Nil(t, result)
	// 重试耗尽后原样抛出最后一次错误
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 3, calls)
	// 两次退避：最后一次失败后不再等待
	assert.Len(t, *delays, 2)
}

func TestSuccessStopsRetrying(t *testing.T) {
	m, delays := newTestManager(t, nil)

	var calls int
	result, err := m.Execute(context.Background(), Operation{
		Class: "api-call",
		Do: func(ctx context.Context) (any, error) {
			calls++
			if calls < 2 {
				return nil, errBoom
			}
			return "ok", nil
		},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, calls)
	assert.Len(t, *delays, 1)
}

func TestRegisteredStrategyAttempts(t *testing.T) {
	m, _ := newTestManager(t, nil)
	require.NoError(t, m.RegisterStrategy("sync-push", Strategy{MaxAttempts: 2}))

	var calls int
	_, err := m.Execute(context.Background(), Operation{
		Class: "sync-push",
		Do:    alwaysFail(&calls),
	}, nil)

	assert.Equal(t, errBoom, err)
	// 注册策略生效：2 次而不是默认 3 次
	assert.Equal(t, 2, calls)
}

func TestOverrideMergesOverRegistered(t *testing.T) {
	m, _ := newTestManager(t, nil)
	require.NoError(t, m.RegisterStrategy("sync-push", Strategy{MaxAttempts: 2}))

	var calls int
	_, err := m.Execute(context.Background(), Operation{
		Class: "sync-push",
		Do:    alwaysFail(&calls),
	}, &Strategy{MaxAttempts: 4})

	assert.Equal(t, errBoom, err)
	assert.Equal(t, 4, calls)
}

func TestBackoffProgression(t *testing.T) {
	m, delays := newTestManager(t, &Config{
		BaseDelay:         100 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxAttempts:       4,
		MaxDelay:          10 * time.Second,
	})

	var calls int
	_, _ = m.Execute(context.Background(), Operation{Class: "api-call", Do: alwaysFail(&calls)}, nil)

	require.Len(t, *delays, 3)
	// delay(i) = 100ms × 2^(i-1)，外加至多 10% 抖动
	expected := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}
	for i, d := range *delays {
		assert.GreaterOrEqual(t, d, expected[i])
		assert.LessOrEqual(t, d, expected[i]+expected[i]/10)
	}
}

func TestBackoffCappedAtMaxDelay(t *testing.T) {
	m, delays := newTestManager(t, &Config{
		BaseDelay:         time.Second,
		BackoffMultiplier: 10,
		MaxAttempts:       4,
		MaxDelay:          2 * time.Second,
	})

	var calls int
	_, _ = m.Execute(context.Background(), Operation{Class: "api-call", Do: alwaysFail(&calls)}, nil)

	require.Len(t, *delays, 3)
	for _, d := range *delays {
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}

func TestBackoffCancellation(t *testing.T) {
	mgr, err := New(&Config{BaseDelay: 10 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var calls int

	done := make(chan struct{})
	var execErr error
	go func() {
		defer close(done)
		_, execErr = mgr.Execute(ctx, Operation{Class: "api-call", Do: alwaysFail(&calls)}, nil)
	}()

	// 等第一次失败进入退避后取消
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("execute did not return after cancellation")
	}
	assert.ErrorIs(t, execErr, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCircuitRejectionAbortsRetries(t *testing.T) {
	brk, err := breaker.New(&breaker.Config{FailureThreshold: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = brk.Close() })

	m, _ := newTestManager(t, nil, WithBreaker(brk))

	var calls int
	_, execErr := m.Execute(context.Background(), Operation{
		Class:    "api-call",
		Endpoint: "/v1/users",
		Do:       alwaysFail(&calls),
	}, &Strategy{MaxAttempts: 5})

	// 第一次失败即打开熔断，第二次尝试被拒绝并中止整个序列
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, execErr, breaker.ErrCircuitOpen)
}

func TestEndpointWithoutBreakerRunsDirect(t *testing.T) {
	m, _ := newTestManager(t, nil)

	var calls int
	result, err := m.Execute(context.Background(), Operation{
		Class:    "api-call",
		Endpoint: "/v1/users",
		Do: func(ctx context.Context) (any, error) {
			calls++
			return "direct", nil
		},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "direct", result)
	assert.Equal(t, 1, calls)
}

func TestFallbackResolution(t *testing.T) {
	m, _ := newTestManager(t, nil)
	require.NoError(t, m.RegisterStrategy("feed", Strategy{
		Kind:        KindFallback,
		MaxAttempts: 2,
		Fallback: func(ctx context.Context) (any, error) {
			return "fallback-value", nil
		},
	}))

	var calls int
	result, err := m.Execute(context.Background(), Operation{Class: "feed", Do: alwaysFail(&calls)}, nil)

	require.NoError(t, err)
	assert.Equal(t, "fallback-value", result)
	assert.Equal(t, 2, calls)
}

func TestFallbackFailureReraisesOriginal(t *testing.T) {
	m, _ := newTestManager(t, nil)
	fallbackErr := xerrors.New("fallback broke too")
	require.NoError(t, m.RegisterStrategy("feed", Strategy{
		Kind:        KindFallback,
		MaxAttempts: 1,
		Fallback: func(ctx context.Context) (any, error) {
			return nil, fallbackErr
		},
	}))

	var calls int
	_, err := m.Execute(context.Background(), Operation{Class: "feed", Do: alwaysFail(&calls)}, nil)

	// 重新抛出的是原始操作错误，不是 fallback 的错误
	assert.Equal(t, errBoom, err)
}

func TestCacheResolution(t *testing.T) {
	c, err := cache.NewStandalone(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Set(context.Background(), "feed:latest", "cached-feed", 0))

	m, _ := newTestManager(t, nil, WithCache(c))
	require.NoError(t, m.RegisterStrategy("feed", Strategy{
		Kind:        KindCache,
		MaxAttempts: 2,
		CacheKey:    "feed:latest",
	}))

	var calls int
	result, execErr := m.Execute(context.Background(), Operation{Class: "feed", Do: alwaysFail(&calls)}, nil)

	require.NoError(t, execErr)
	assert.Equal(t, "cached-feed", result)
}

func TestCacheMissReraisesOriginal(t *testing.T) {
	c, err := cache.NewStandalone(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	m, _ := newTestManager(t, nil, WithCache(c))
	require.NoError(t, m.RegisterStrategy("feed", Strategy{
		Kind:        KindCache,
		MaxAttempts: 1,
		CacheKey:    "absent",
	}))

	var calls int
	_, execErr := m.Execute(context.Background(), Operation{Class: "feed", Do: alwaysFail(&calls)}, nil)
	assert.Equal(t, errBoom, execErr)
}

func TestDegradeReturnsPlaceholder(t *testing.T) {
	m, _ := newTestManager(t, nil)
	require.NoError(t, m.RegisterStrategy("thumbnails", Strategy{
		Kind:        KindDegrade,
		MaxAttempts: 1,
		Placeholder: []string{},
	}))

	var calls int
	result, err := m.Execute(context.Background(), Operation{Class: "thumbnails", Do: alwaysFail(&calls)}, nil)

	// degrade 处置从不抛错
	require.NoError(t, err)
	assert.Equal(t, []string{}, result)
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

func TestEveryFailureReported(t *testing.T) {
	capture := &captureSink{}
	m, _ := newTestManager(t, nil, WithSink(capture))

	var calls int
	_, _ = m.Execute(context.Background(), Operation{Class: "api-call", Do: alwaysFail(&calls)}, nil)

	capture.mu.Lock()
	defer capture.mu.Unlock()
	require.Len(t, capture.reports, 3)
	for i, r := range capture.reports {
		assert.Equal(t, "recovery", r.Component)
		assert.Equal(t, "api-call", r.OperationClass)
		assert.Equal(t, i+1, r.Attempt)
	}
}

func TestRegisterStrategyValidation(t *testing.T) {
	m, _ := newTestManager(t, nil)

	assert.ErrorIs(t, m.RegisterStrategy("", Strategy{}), ErrClassEmpty)
	assert.ErrorIs(t, m.RegisterStrategy("x", Strategy{Kind: KindFallback}), ErrNoFallback)
	assert.ErrorIs(t, m.RegisterStrategy("x", Strategy{Kind: KindCache}), ErrNoCacheKey)
}

func TestExecuteValidation(t *testing.T) {
	m, _ := newTestManager(t, nil)

	_, err := m.Execute(context.Background(), Operation{Do: func(ctx context.Context) (any, error) { return nil, nil }}, nil)
	assert.ErrorIs(t, err, ErrClassEmpty)

	_, err = m.Execute(context.Background(), Operation{Class: "x"}, nil)
	assert.ErrorIs(t, err, ErrNilOperation)
}
