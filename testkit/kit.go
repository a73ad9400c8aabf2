// Package testkit 提供测试共用的依赖构造与辅助函数。
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/netstate"
)

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// NewKit 返回一个包含默认依赖的测试工具包
func NewKit(t *testing.T) *Kit {
	return &Kit{
		Ctx:    context.Background(),
		Logger: NewLogger(),
		Meter:  NewMeter(),
	}
}

// NewLogger 返回一个用于测试的 logger，开发环境格式，适合本地调试
func NewLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig("aegis"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewMeter 返回一个用于测试的 meter，Discard 模式，不实际输出指标
func NewMeter() metrics.Meter {
	meter, err := metrics.New(metrics.NewDevDefaultConfig("test"))
	if err != nil {
		return metrics.Discard()
	}
	return meter
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
// 用于生成唯一的 Key、端点或主题后缀，避免测试间数据冲突
func NewID() string {
	return uuid.New().String()[0:8]
}

// GoodNetwork 返回一份高质量网络快照
func GoodNetwork() netstate.State {
	return netstate.State{
		Online:         true,
		ConnectionType: "wifi",
		EffectiveType:  "4g",
		DownlinkMbps:   10,
		RTT:            50 * time.Millisecond,
	}
}

// PoorNetwork 返回一份低质量网络快照
func PoorNetwork() netstate.State {
	return netstate.State{
		Online:         true,
		ConnectionType: "cellular",
		EffectiveType:  "2g",
		DownlinkMbps:   0.1,
		RTT:            2 * time.Second,
		SaveData:       true,
	}
}

// NewTelemetrySource 返回一个手动遥测源，初始为高质量网络
func NewTelemetrySource(t *testing.T) *netstate.ManualSource {
	return netstate.NewManualSource(GoodNetwork())
}
