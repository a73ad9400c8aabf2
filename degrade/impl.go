package degrade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/netstate"
	"github.com/ceyewan/aegis/xerrors"
)

// manager Manager 的默认实现
type manager struct {
	catalog []QualityProfile
	rank    map[string]int // 档位名 → 目录下标
	logger  clog.Logger
	meter   metrics.Meter

	mu        sync.RWMutex
	current   int // 当前档位的目录下标
	lastState netstate.State
	nextSubID int
	subs      map[int]func(QualityProfile)

	unsubscribe netstate.Unsubscribe
	closeOnce   sync.Once
}

// newManager 校验目录、选定初始档位并订阅遥测源
func newManager(cfg *Config, source netstate.Source, o *options) (*manager, error) {
	catalog := cfg.Catalog
	if len(catalog) == 0 {
		catalog = DefaultCatalog()
	}

	rank := make(map[string]int, len(catalog))
	for i, p := range catalog {
		if p.Name == "" {
			return nil, xerrors.Wrapf(ErrUnknownProfile, "catalog[%d] has empty name", i)
		}
		if _, ok := rank[p.Name]; ok {
			return nil, xerrors.Wrapf(ErrDuplicateProfile, "%q", p.Name)
		}
		rank[p.Name] = i
	}

	current := 0
	if cfg.InitialProfile != "" {
		idx, ok := rank[cfg.InitialProfile]
		if !ok {
			return nil, xerrors.Wrapf(ErrUnknownProfile, "%q", cfg.InitialProfile)
		}
		current = idx
	}

	m := &manager{
		catalog: catalog,
		rank:    rank,
		logger:  o.logger,
		meter:   o.meter,
		current: current,
		subs:    make(map[int]func(QualityProfile)),
	}

	if source != nil {
		m.lastState = source.Current()
		m.unsubscribe = source.Subscribe(m.Adjust)
		// 以当前遥测校准初始档位
		m.Adjust(m.lastState)
	}

	m.logger.Info("degradation manager created",
		clog.Int("profiles", len(catalog)),
		clog.String("profile", m.ProfileName()))
	return m, nil
}

// Features 返回当前生效的功能配置
func (m *manager) Features() Features {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog[m.current].Features
}

// ProfileName 返回当前档位名
func (m *manager) ProfileName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog[m.current].Name
}

// IsFeatureEnabled 判断指定能力当前是否可用
func (m *manager) IsFeatureEnabled(feature Feature) bool {
	return m.Features().Enabled(feature)
}

// MaxConcurrentRequests 返回当前档位的最大并发请求数
func (m *manager) MaxConcurrentRequests() int {
	return m.Features().MaxConcurrentRequests
}

// RequestTimeout 返回当前档位的单次请求超时
func (m *manager) RequestTimeout() time.Duration {
	return m.Features().RequestTimeout
}

// SetProfile 手动切换档位
func (m *manager) SetProfile(name string) error {
	idx, ok := m.rank[name]
	if !ok {
		return xerrors.Wrapf(ErrUnknownProfile, "%q", name)
	}
	m.apply(idx, "manual")
	return nil
}

// Adjust 按遥测快照重新选择档位
func (m *manager) Adjust(state netstate.State) {
	m.mu.Lock()
	m.lastState = state
	m.mu.Unlock()

	m.apply(m.selectProfile(state), "telemetry")
}

// selectProfile 执行档位选择算法，返回目录下标。
//
// 离线或连接等级处于最慢两档时，数值指标不可信，直接取最低档；
// 否则从高到低取第一个阈值满足的档位；都不满足取最低档。
func (m *manager) selectProfile(state netstate.State) int {
	lowest := len(m.catalog) - 1

	if !state.Online || state.SlowTier() {
		return lowest
	}

	for i, p := range m.catalog {
		if state.DownlinkMbps >= p.Threshold.MinDownlinkMbps && state.RTT <= p.Threshold.MaxRTT {
			return i
		}
	}
	return lowest
}

// apply 切换到目标档位。名称未变化时静默返回，抑制冗余更新。
func (m *manager) apply(idx int, trigger string) {
	m.mu.Lock()
	if idx == m.current {
		m.mu.Unlock()
		return
	}

	from := m.catalog[m.current]
	to := m.catalog[idx]
	m.current = idx

	fns := make([]func(QualityProfile), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	m.logger.Info("quality profile changed",
		clog.String("from", from.Name),
		clog.String("to", to.Name),
		clog.String("trigger", trigger))

	if counter, err := m.meter.Counter(MetricProfileChanges, "Quality profile changes"); err == nil && counter != nil {
		counter.Inc(context.Background(),
			metrics.L(LabelFromProfile, from.Name),
			metrics.L(LabelToProfile, to.Name),
			metrics.L(LabelTrigger, trigger))
	}
	if gauge, err := m.meter.Gauge(MetricCurrentProfile, "Current profile rank"); err == nil && gauge != nil {
		gauge.Set(context.Background(), float64(idx))
	}

	// 不持锁通知订阅者
	for _, fn := range fns {
		fn(to)
	}
}

// Recommendations 返回当前状况下的建议说明
func (m *manager) Recommendations() []string {
	m.mu.RLock()
	profile := m.catalog[m.current]
	state := m.lastState
	lowest := m.current == len(m.catalog)-1
	m.mu.RUnlock()

	var recs []string
	if !state.Online {
		recs = append(recs, "network is offline, operating on cached data only")
	} else if lowest {
		recs = append(recs, "network quality is poor, all non-essential features are disabled")
	}
	if state.SaveData {
		recs = append(recs, "data saver is on, prefer compressed payloads")
	}
	if !profile.Features.ImageOptimization {
		recs = append(recs, "serve low-resolution image placeholders")
	}
	if !profile.Features.RealTimeUpdates {
		recs = append(recs, "real-time updates are paused, refresh manually")
	}
	if !profile.Features.BackgroundSync {
		recs = append(recs, "background sync is deferred until conditions improve")
	}
	if profile.Features.MaxConcurrentRequests <= 2 {
		recs = append(recs, fmt.Sprintf("request concurrency is limited to %d", profile.Features.MaxConcurrentRequests))
	}
	return recs
}

// Subscribe 注册档位变更回调
func (m *manager) Subscribe(fn func(QualityProfile)) netstate.Unsubscribe {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Close 取消遥测订阅。幂等。
func (m *manager) Close() error {
	m.closeOnce.Do(func() {
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		m.logger.Info("degradation manager closed")
	})
	return nil
}
