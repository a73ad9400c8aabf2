package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNewDisabledReturnsNoop(t *testing.T) {
	meter, err := New(&Config{Enabled: false})
	require.NoError(t, err)

	counter, err := meter.Counter("noop_total", "noop")
	require.NoError(t, err)
	counter.Inc(context.Background())

	require.NoError(t, meter.Shutdown(context.Background()))
}

func TestMeterCreatesInstruments(t *testing.T) {
	meter, err := New(NewDevDefaultConfig("aegis-test"))
	require.NoError(t, err)
	defer meter.Shutdown(context.Background())

	ctx := context.Background()

	counter, err := meter.Counter("test_requests_total", "请求总数")
	require.NoError(t, err)
	counter.Inc(ctx, L("endpoint", "api/users"))
	counter.Add(ctx, 3, L("endpoint", "api/users"))

	gauge, err := meter.Gauge("test_inflight", "在途请求数")
	require.NoError(t, err)
	gauge.Set(ctx, 5)
	gauge.Inc(ctx)
	gauge.Dec(ctx)

	histogram, err := meter.Histogram("test_duration_seconds", "耗时", WithUnit("seconds"))
	require.NoError(t, err)
	histogram.Record(ctx, 0.042, L("result", "success"))
}

func TestLabelKey(t *testing.T) {
	assert.Equal(t, "", labelKey(nil))
	assert.Equal(t, "a=1|b=2", labelKey([]Label{L("a", "1"), L("b", "2")}))
}

func TestDiscard(t *testing.T) {
	meter := Discard()
	counter, err := meter.Counter("x", "y")
	require.NoError(t, err)
	counter.Inc(context.Background())
	assert.NoError(t, meter.Shutdown(context.Background()))
}
