package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewDefaults(t *testing.T) {
	loader, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, loader)
}

func TestLoadAndUnmarshalKey(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "aegis.yaml", `
breaker:
  failure_threshold: 5
  half_open_max_calls: 2
degrade:
  default_profile: high
`)

	loader, err := New(&Config{Name: "aegis", Paths: []string{dir}})
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	var brk struct {
		FailureThreshold int `mapstructure:"failure_threshold"`
		HalfOpenMaxCalls int `mapstructure:"half_open_max_calls"`
	}
	require.NoError(t, loader.UnmarshalKey("breaker", &brk))
	assert.Equal(t, 5, brk.FailureThreshold)
	assert.Equal(t, 2, brk.HalfOpenMaxCalls)

	assert.Equal(t, "high", loader.Get("degrade.default_profile"))
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "aegis.yaml", `
breaker:
  failure_threshold: 5
`)

	t.Setenv("AEGIS_BREAKER_FAILURE_THRESHOLD", "9")

	loader, err := New(&Config{Name: "aegis", Paths: []string{dir}})
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	assert.Equal(t, "9", loader.Get("breaker.failure_threshold"))
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()

	loader, err := New(&Config{Name: "absent", Paths: []string{dir}})
	require.NoError(t, err)

	// 没有任何配置来源时验证失败
	err = loader.Load(context.Background())
	assert.Error(t, err)
}

func TestWatchCancellation(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "aegis.yaml", "breaker:\n  failure_threshold: 3\n")

	loader, err := New(&Config{Name: "aegis", Paths: []string{dir}})
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := loader.Watch(ctx, "breaker.failure_threshold")
	require.NoError(t, err)

	cancel()

	// 取消后通道最终被关闭
	for range ch {
	}
}
