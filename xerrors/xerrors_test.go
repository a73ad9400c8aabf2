package xerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	base := errors.New("connection refused")

	wrapped := Wrap(base, "dial redis")
	require.Error(t, wrapped)
	assert.Equal(t, "dial redis: connection refused", wrapped.Error())
	assert.True(t, errors.Is(wrapped, base))

	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestWrapf(t *testing.T) {
	base := errors.New("timeout")

	wrapped := Wrapf(base, "call %s attempt %d", "api/users", 2)
	require.Error(t, wrapped)
	assert.Equal(t, "call api/users attempt 2: timeout", wrapped.Error())
	assert.True(t, errors.Is(wrapped, base))
}

func TestWithCode(t *testing.T) {
	base := errors.New("boom")

	coded := WithCode(base, "CIRCUIT_OPEN")
	require.Error(t, coded)
	assert.Equal(t, "CIRCUIT_OPEN", GetCode(coded))
	assert.True(t, errors.Is(coded, base))

	// 外层再包装一次，错误码依然可以提取
	outer := Wrap(coded, "guard")
	assert.Equal(t, "CIRCUIT_OPEN", GetCode(outer))

	assert.Nil(t, WithCode(nil, "ignored"))
	assert.Equal(t, "", GetCode(errors.New("plain")))
}

func TestMust(t *testing.T) {
	v := Must(42, nil)
	assert.Equal(t, 42, v)

	assert.Panics(t, func() {
		Must(0, errors.New("init failed"))
	})
}
