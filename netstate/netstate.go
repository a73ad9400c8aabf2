// Package netstate 定义网络遥测的快照类型与订阅契约。
//
// degrade 组件消费这里的 State 来选择质量档位。State 的来源可以是
// 进程内手动上报（ManualSource，常用于测试与嵌入式场景），也可以是
// NATS 上的远端遥测流（NewNATSSource）。
package netstate

import "time"

// 连接有效类型的慢速档位。这两档无论数值指标如何都视为最差网络。
const (
	EffectiveType2G     = "2g"
	EffectiveTypeSlow2G = "slow-2g"
)

// State 一次网络状况快照
type State struct {
	// Online 是否在线
	Online bool `json:"online"`

	// ConnectionType 物理连接类型，如 "wifi"、"cellular"
	ConnectionType string `json:"connection_type"`

	// EffectiveType 有效连接等级，如 "4g"、"3g"、"2g"、"slow-2g"
	EffectiveType string `json:"effective_type"`

	// DownlinkMbps 下行带宽估计（Mbps）
	DownlinkMbps float64 `json:"downlink_mbps"`

	// RTT 往返时延估计
	RTT time.Duration `json:"rtt"`

	// SaveData 用户是否开启省流量模式
	SaveData bool `json:"save_data"`
}

// SlowTier 判断有效连接等级是否属于最慢的两档
func (s State) SlowTier() bool {
	return s.EffectiveType == EffectiveType2G || s.EffectiveType == EffectiveTypeSlow2G
}

// Unsubscribe 取消订阅。幂等。
type Unsubscribe func()

// Source 网络遥测源。实现必须是并发安全的。
type Source interface {
	// Current 返回最近一次快照
	Current() State

	// Subscribe 注册变更回调，返回取消函数。
	//
	// 回调在状态变更时同步调用，实现方不持有内部锁调用回调，
	// 回调内可安全访问 Source。
	Subscribe(fn func(State)) Unsubscribe
}
