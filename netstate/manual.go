package netstate

import "sync"

// ManualSource 进程内手动上报的遥测源
type ManualSource struct {
	mu     sync.RWMutex
	state  State
	nextID int
	subs   map[int]func(State)
}

// NewManualSource 创建手动遥测源，initial 为初始快照
func NewManualSource(initial State) *ManualSource {
	return &ManualSource{
		state: initial,
		subs:  make(map[int]func(State)),
	}
}

// Current 返回最近一次快照
func (m *ManualSource) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe 注册变更回调
func (m *ManualSource) Subscribe(fn func(State)) Unsubscribe {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
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

// Set 更新快照并通知所有订阅者
func (m *ManualSource) Set(s State) {
	m.mu.Lock()
	m.state = s
	fns := make([]func(State), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	// 不持锁调用回调，允许回调内再次访问 Source
	for _, fn := range fns {
		fn(s)
	}
}
