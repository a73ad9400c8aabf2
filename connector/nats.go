package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/xerrors"
)

// natsConnector NATSConnector 的默认实现
type natsConnector struct {
	cfg    *NATSConfig
	logger clog.Logger

	mu        sync.Mutex
	conn      *nats.Conn
	connected bool
	closed    bool
	healthy   atomic.Bool
}

// NewNATS 创建 NATS 连接器。
//
// 仅做配置校验，不会建立连接；连接在 Connect() 时才真正发生。
func NewNATS(cfg *NATSConfig, opts ...Option) (NATSConnector, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrap(err, "connector: invalid nats config")
	}

	o := applyOptions(opts...)
	return &natsConnector{
		cfg:    cfg,
		logger: o.logger.With(clog.String("backend", "nats"), clog.String("name", cfg.Name)),
	}, nil
}

// Connect 建立连接。幂等。
func (c *natsConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrAlreadyClosed
	}
	if c.connected {
		return nil
	}

	opts := []nats.Option{
		nats.Name(c.cfg.Name),
		nats.ReconnectWait(c.cfg.ReconnectWait),
		nats.MaxReconnects(c.cfg.MaxReconnects),
		nats.PingInterval(c.cfg.PingInterval),
		nats.Timeout(c.cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.healthy.Store(false)
			c.logger.Warn("nats disconnected", clog.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.healthy.Store(true)
			c.logger.Info("nats reconnected", clog.String("url", nc.ConnectedUrl()))
		}),
	}

	if c.cfg.Username != "" {
		opts = append(opts, nats.UserInfo(c.cfg.Username, c.cfg.Password))
	}
	if c.cfg.Token != "" {
		opts = append(opts, nats.Token(c.cfg.Token))
	}

	conn, err := nats.Connect(c.cfg.URL, opts...)
	if err != nil {
		return xerrors.Wrapf(err, "connector: nats connect %s failed", c.cfg.URL)
	}

	c.conn = conn
	c.connected = true
	c.healthy.Store(true)
	c.logger.Info("nats connected", clog.String("url", c.cfg.URL))
	return nil
}

// Close 排空并关闭连接。幂等。
func (c *natsConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.connected = false
	c.healthy.Store(false)

	if c.conn != nil {
		// Drain 让在途消息先处理完，失败时退化为直接 Close
		if err := c.conn.Drain(); err != nil {
			c.conn.Close()
		}
		c.conn = nil
	}
	c.logger.Info("nats connection closed")
	return nil
}

// HealthCheck 检查连接状态并刷新健康状态缓存
func (c *natsConnector) HealthCheck(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.healthy.Store(false)
		return ErrNotConnected
	}

	if !conn.IsConnected() {
		c.healthy.Store(false)
		return xerrors.New("connector: nats connection lost")
	}

	// RTT 往返探测比单纯状态位更可信
	if _, err := conn.RTT(); err != nil {
		c.healthy.Store(false)
		return xerrors.Wrap(err, "connector: nats rtt probe failed")
	}
	c.healthy.Store(true)
	return nil
}

// IsHealthy 返回缓存的健康状态
func (c *natsConnector) IsHealthy() bool {
	return c.healthy.Load()
}

// Name 返回连接实例名称
func (c *natsConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回底层 *nats.Conn
func (c *natsConnector) GetClient() *nats.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}
