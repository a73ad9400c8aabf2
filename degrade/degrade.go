// Package degrade 提供网络状况驱动的功能降级管理。
//
// degrade 维护一份按能力从高到低排序的质量档位目录，订阅网络遥测，
// 并在每次遥测变化时选择一个档位。当前档位的功能开关与资源限制
// （最大并发数、请求超时）是 guard 准入控制的依据。
//
// ## 基本使用
//
//	src := netstate.NewManualSource(netstate.State{Online: true})
//	mgr, _ := degrade.New(&degrade.Config{}, src, degrade.WithLogger(logger))
//	defer mgr.Close()
//
//	if mgr.IsFeatureEnabled(degrade.FeatureRealTimeUpdates) {
//		// 建立实时推送连接
//	}
package degrade

import (
	"time"

	"github.com/ceyewan/aegis/netstate"
)

// Feature 能力开关标识
type Feature string

const (
	// FeatureImageOptimization 高清图片/图片优化
	FeatureImageOptimization Feature = "image_optimization"
	// FeatureRealTimeUpdates 实时推送更新
	FeatureRealTimeUpdates Feature = "real_time_updates"
	// FeatureBackgroundSync 后台同步
	FeatureBackgroundSync Feature = "background_sync"
	// FeatureAdvancedUI 高级交互界面
	FeatureAdvancedUI Feature = "advanced_ui"
)

// Features 一个档位的功能开关与资源限制。
// 任一时刻恰有一份配置生效，即当前档位的 Features，档位之间从不插值。
type Features struct {
	ImageOptimization bool `json:"image_optimization"`
	RealTimeUpdates   bool `json:"real_time_updates"`
	BackgroundSync    bool `json:"background_sync"`
	AdvancedUI        bool `json:"advanced_ui"`

	MaxConcurrentRequests int           `json:"max_concurrent_requests"`
	RequestTimeout        time.Duration `json:"request_timeout"`
}

// Enabled 返回指定能力开关的状态
func (f Features) Enabled(feature Feature) bool {
	switch feature {
	case FeatureImageOptimization:
		return f.ImageOptimization
	case FeatureRealTimeUpdates:
		return f.RealTimeUpdates
	case FeatureBackgroundSync:
		return f.BackgroundSync
	case FeatureAdvancedUI:
		return f.AdvancedUI
	default:
		return false
	}
}

// Threshold 进入某个档位所需的网络条件
type Threshold struct {
	// MinDownlinkMbps 所需最低下行带宽（Mbps）
	MinDownlinkMbps float64 `json:"min_downlink_mbps"`

	// MaxRTT 允许的最大往返时延
	MaxRTT time.Duration `json:"max_rtt"`
}

// QualityProfile 质量档位目录项，创建后不可变
type QualityProfile struct {
	Name      string    `json:"name"`
	Threshold Threshold `json:"threshold"`
	Features  Features  `json:"features"`
}

// DefaultCatalog 返回内置的四档目录，按能力从高到低排序。
// 最低档的阈值最宽松，保证任何网络条件下都能选中。
func DefaultCatalog() []QualityProfile {
	return []QualityProfile{
		{
			Name:      "high",
			Threshold: Threshold{MinDownlinkMbps: 5, MaxRTT: 200 * time.Millisecond},
			Features: Features{
				ImageOptimization:     true,
				RealTimeUpdates:       true,
				BackgroundSync:        true,
				AdvancedUI:            true,
				MaxConcurrentRequests: 6,
				RequestTimeout:        10 * time.Second,
			},
		},
		{
			Name:      "medium",
			Threshold: Threshold{MinDownlinkMbps: 1.5, MaxRTT: 500 * time.Millisecond},
			Features: Features{
				ImageOptimization:     true,
				RealTimeUpdates:       true,
				BackgroundSync:        false,
				AdvancedUI:            false,
				MaxConcurrentRequests: 4,
				RequestTimeout:        15 * time.Second,
			},
		},
		{
			Name:      "low",
			Threshold: Threshold{MinDownlinkMbps: 0.4, MaxRTT: 1500 * time.Millisecond},
			Features: Features{
				ImageOptimization:     true,
				RealTimeUpdates:       false,
				BackgroundSync:        false,
				AdvancedUI:            false,
				MaxConcurrentRequests: 2,
				RequestTimeout:        20 * time.Second,
			},
		},
		{
			Name:      "minimal",
			Threshold: Threshold{MinDownlinkMbps: 0, MaxRTT: 1<<63 - 1},
			Features: Features{
				ImageOptimization:     false,
				RealTimeUpdates:       false,
				BackgroundSync:        false,
				AdvancedUI:            false,
				MaxConcurrentRequests: 1,
				RequestTimeout:        30 * time.Second,
			},
		},
	}
}

// Config 降级管理器配置
type Config struct {
	// Catalog 质量档位目录，按能力从高到低排序（默认：DefaultCatalog）
	Catalog []QualityProfile

	// InitialProfile 初始档位名（默认：目录第一项）
	InitialProfile string `mapstructure:"initial_profile"`
}

// Manager 功能降级管理器。所有方法并发安全。
type Manager interface {
	// Features 返回当前生效的功能配置
	Features() Features

	// ProfileName 返回当前档位名
	ProfileName() string

	// IsFeatureEnabled 判断指定能力当前是否可用
	IsFeatureEnabled(feature Feature) bool

	// MaxConcurrentRequests 返回当前档位的最大并发请求数
	MaxConcurrentRequests() int

	// RequestTimeout 返回当前档位的单次请求超时
	RequestTimeout() time.Duration

	// SetProfile 手动切换档位。档位名不在目录中返回 ErrUnknownProfile。
	// 后续遥测变化仍可能再次调整档位。
	SetProfile(name string) error

	// Recommendations 返回当前状况下的建议说明，仅供展示，不影响行为
	Recommendations() []string

	// Adjust 按给定遥测快照重新选择档位。
	// 构造时已订阅遥测源，通常无需手动调用；保留此入口用于测试
	// 与无遥测源场景。
	Adjust(state netstate.State)

	// Subscribe 注册档位变更回调，返回取消函数
	Subscribe(fn func(profile QualityProfile)) netstate.Unsubscribe

	// Close 取消遥测订阅。幂等。
	Close() error
}

// New 创建降级管理器并订阅遥测源。
//
// source 可以为 nil，此时档位只能通过 SetProfile/Adjust 改变。
func New(cfg *Config, source netstate.Source, opts ...Option) (Manager, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	return newManager(cfg, source, applyOptions(opts...))
}
