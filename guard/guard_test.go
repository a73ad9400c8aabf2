package guard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/degrade"
	"github.com/ceyewan/aegis/netstate"
	"github.com/ceyewan/aegis/recovery"
	"github.com/ceyewan/aegis/xerrors"
)

var errBoom = xerrors.New("boom")

type testEnv struct {
	guard   Guard
	degrade degrade.Manager
	source  *netstate.ManualSource
	breaker breaker.Breaker
}

func goodNetwork() netstate.State {
	return netstate.State{Online: true, EffectiveType: "4g", DownlinkMbps: 10, RTT: 50 * time.Millisecond}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	src := netstate.NewManualSource(goodNetwork())

	dm, err := degrade.New(&degrade.Config{}, src)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })

	brk, err := breaker.New(&breaker.Config{FailureThreshold: 3})
	require.NoError(t, err)
	t.Cleanup(func() { _ = brk.Close() })

	rm, err := recovery.New(&recovery.Config{BaseDelay: time.Millisecond},
		recovery.WithBreaker(brk))
	require.NoError(t, err)

	g, err := New(dm, rm, WithBreaker(brk), WithSource(src))
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })

	return &testEnv{guard: g, degrade: dm, source: src, breaker: brk}
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrNilDegradeManager)

	dm, err := degrade.New(&degrade.Config{}, nil)
	require.NoError(t, err)
	_, err = New(dm, nil)
	assert.ErrorIs(t, err, ErrNilRecoveryManager)
}

func TestExecuteDelegates(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.guard.Execute(context.Background(), Operation{
		Class: "api-call",
		Do: func(ctx context.Context) (any, error) {
			return "ok", nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestAdmissionRejectsDisabledCategory(t *testing.T) {
	env := newTestEnv(t)

	// 离线强制最低档，所有能力关闭
	env.source.Set(netstate.State{Online: false})
	require.Equal(t, "minimal", env.degrade.ProfileName())

	invoked := false
	_, err := env.guard.Execute(context.Background(), Operation{
		Class:    "live-updates",
		Category: degrade.FeatureRealTimeUpdates,
		Do: func(ctx context.Context) (any, error) {
			invoked = true
			return nil, nil
		},
	})

	assert.ErrorIs(t, err, ErrFeatureDisabled)
	assert.False(t, invoked)
}

func TestUncategorizedOperationAlwaysAdmitted(t *testing.T) {
	env := newTestEnv(t)
	env.source.Set(netstate.State{Online: false})

	result, err := env.guard.Execute(context.Background(), Operation{
		Class: "essential-fetch",
		Do: func(ctx context.Context) (any, error) {
			return "essential", nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "essential", result)
}

func TestRequestTimeoutApplied(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.guard.Execute(context.Background(), Operation{
		Class: "api-call",
		// 覆盖重试，让超时直接决定结果
		Strategy: &recovery.Strategy{MaxAttempts: 1},
		Do: func(ctx context.Context) (any, error) {
			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			// high 档超时 10s
			assert.LessOrEqual(t, time.Until(deadline), 10*time.Second)
			return nil, nil
		},
	})
	require.NoError(t, err)
}

func TestConcurrencyLimitEnforced(t *testing.T) {
	env := newTestEnv(t)

	// minimal 档并发上限为 1
	require.NoError(t, env.degrade.SetProfile("minimal"))

	var inflight, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.guard.Execute(context.Background(), Operation{
				Class: "essential-fetch",
				Do: func(ctx context.Context) (any, error) {
					n := atomic.AddInt64(&inflight, 1)
					for {
						p := atomic.LoadInt64(&peak)
						if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
							break
						}
					}
					time.Sleep(20 * time.Millisecond)
					atomic.AddInt64(&inflight, -1)
					return nil, nil
				},
			})
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&peak))
}

func TestProfileChangeAdjustsLimit(t *testing.T) {
	env := newTestEnv(t)
	g := env.guard.(*guardImpl)

	g.mu.RLock()
	initial := g.limit
	g.mu.RUnlock()
	assert.EqualValues(t, 6, initial)

	env.source.Set(netstate.State{Online: true, EffectiveType: "3g", DownlinkMbps: 0.5, RTT: time.Second})
	require.Equal(t, "low", env.degrade.ProfileName())

	g.mu.RLock()
	adjusted := g.limit
	g.mu.RUnlock()
	assert.EqualValues(t, 2, adjusted)
}

func TestStatusAggregation(t *testing.T) {
	env := newTestEnv(t)

	// 制造一个打开的熔断
	for i := 0; i < 3; i++ {
		_, _ = env.breaker.Execute(context.Background(), "/v1/users", func() (any, error) {
			return nil, errBoom
		})
	}

	status := env.guard.Status()
	assert.Equal(t, "high", status.Profile)
	assert.True(t, status.Features.RealTimeUpdates)
	assert.True(t, status.Network.Online)
	assert.False(t, status.Timestamp.IsZero())

	require.Contains(t, status.Circuits, "/v1/users")
	assert.Equal(t, breaker.StateOpen, status.Circuits["/v1/users"].State)
	require.Contains(t, status.Health, "/v1/users")
	assert.False(t, status.Health["/v1/users"].IsHealthy)
}

func TestExecuteAfterClose(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.guard.Close())
	require.NoError(t, env.guard.Close())

	_, err := env.guard.Execute(context.Background(), Operation{
		Class: "api-call",
		Do:    func(ctx context.Context) (any, error) { return nil, nil },
	})
	assert.ErrorIs(t, err, ErrGuardClosed)
}

func TestMiddlewareRejectsDisabledCategory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t)
	env.source.Set(netstate.State{Online: false})

	r := gin.New()
	r.GET("/live", env.guard.Middleware(degrade.FeatureRealTimeUpdates), func(c *gin.Context) {
		c.String(http.StatusOK, "live")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "minimal", body["profile"])
}

func TestMiddlewarePassesEnabledCategory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t)

	r := gin.New()
	r.GET("/live", env.guard.Middleware(degrade.FeatureRealTimeUpdates), func(c *gin.Context) {
		c.String(http.StatusOK, "live")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "live", w.Body.String())
}

func TestStatusHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t)

	r := gin.New()
	r.GET("/debug/resilience", env.guard.StatusHandler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/resilience", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var status SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "high", status.Profile)
}
