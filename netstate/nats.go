package netstate

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/connector"
	"github.com/ceyewan/aegis/xerrors"
)

// DefaultSubject NATS 遥测流的默认主题
const DefaultSubject = "aegis.netstate"

// wireState NATS 消息体。时延以毫秒数值传输，与上报端约定保持一致。
type wireState struct {
	Online         bool    `json:"online"`
	ConnectionType string  `json:"connection_type"`
	EffectiveType  string  `json:"effective_type"`
	DownlinkMbps   float64 `json:"downlink_mbps"`
	RTTMillis      float64 `json:"rtt_ms"`
	SaveData       bool    `json:"save_data"`
}

// NATSSource 以 NATS 订阅为后端的远端遥测源。
//
// 使用完毕后必须调用 Close() 释放订阅；底层连接归 Connector 所有，
// Close() 不会关闭连接本身。
type NATSSource struct {
	inner  *ManualSource
	sub    *nats.Subscription
	logger clog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NATSSourceOption NATSSource 功能选项
type NATSSourceOption func(*natsSourceOptions)

type natsSourceOptions struct {
	subject string
	initial State
	logger  clog.Logger
}

// WithSubject 指定订阅主题，默认 DefaultSubject
func WithSubject(subject string) NATSSourceOption {
	return func(o *natsSourceOptions) {
		if subject != "" {
			o.subject = subject
		}
	}
}

// WithInitialState 指定收到首条消息之前的初始快照
func WithInitialState(s State) NATSSourceOption {
	return func(o *natsSourceOptions) {
		o.initial = s
	}
}

// WithLogger 注入日志组件，自动添加 "netstate" 命名空间
func WithLogger(logger clog.Logger) NATSSourceOption {
	return func(o *natsSourceOptions) {
		if logger != nil {
			o.logger = logger.WithNamespace("netstate")
		}
	}
}

// NewNATSSource 创建 NATS 遥测源并立即订阅。
//
// conn 必须已完成 Connect()。在首条消息到达前，Current() 返回
// WithInitialState 指定的快照（默认在线、无数值指标）。
func NewNATSSource(conn connector.NATSConnector, opts ...NATSSourceOption) (*NATSSource, error) {
	if conn == nil {
		return nil, xerrors.New("netstate: nats connector is nil")
	}
	nc := conn.GetClient()
	if nc == nil {
		return nil, xerrors.New("netstate: nats connector is not connected")
	}

	o := &natsSourceOptions{
		subject: DefaultSubject,
		initial: State{Online: true},
		logger:  clog.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}

	src := &NATSSource{
		inner:  NewManualSource(o.initial),
		logger: o.logger,
	}

	sub, err := nc.Subscribe(o.subject, src.handle)
	if err != nil {
		return nil, xerrors.Wrapf(err, "netstate: subscribe %s failed", o.subject)
	}
	src.sub = sub
	src.logger.Info("telemetry source subscribed", clog.String("subject", o.subject))
	return src, nil
}

// handle 解析单条遥测消息并广播
func (s *NATSSource) handle(msg *nats.Msg) {
	var w wireState
	if err := json.Unmarshal(msg.Data, &w); err != nil {
		s.logger.Warn("drop malformed telemetry message", clog.Error(err))
		return
	}
	s.inner.Set(State{
		Online:         w.Online,
		ConnectionType: w.ConnectionType,
		EffectiveType:  w.EffectiveType,
		DownlinkMbps:   w.DownlinkMbps,
		RTT:            time.Duration(w.RTTMillis * float64(time.Millisecond)),
		SaveData:       w.SaveData,
	})
}

// Current 返回最近一次快照
func (s *NATSSource) Current() State {
	return s.inner.Current()
}

// Subscribe 注册变更回调
func (s *NATSSource) Subscribe(fn func(State)) Unsubscribe {
	return s.inner.Subscribe(fn)
}

// Close 取消 NATS 订阅。幂等。
func (s *NATSSource) Close() error {
	s.closeOnce.Do(func() {
		if s.sub != nil {
			s.closeErr = s.sub.Unsubscribe()
		}
	})
	return s.closeErr
}
