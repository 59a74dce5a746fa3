// Package signal connects to the rendezvous server over a websocket.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

type Config struct {
	URL        string        `mapstructure:"signal_url"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	WriteWait  time.Duration `mapstructure:"write_wait"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

func (c Config) withDefaults() Config {
	if c.ReadLimit <= 0 {
		c.ReadLimit = 32768
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 5 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 32
	}
	return c
}

// Dialer opens websocket signaling channels to one server URL.
type Dialer struct {
	cfg    Config
	ws     *websocket.Dialer
	Header http.Header
}

func NewDialer(cfg Config) *Dialer {
	return &Dialer{
		cfg: cfg.withDefaults(),
		ws:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
	}
}

func (d *Dialer) Dial(ctx context.Context) (core.SignalChannel, error) {
	conn, resp, err := d.ws.DialContext(ctx, d.cfg.URL, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, &domain.SignalingChannelError{Op: "dial", Err: err}
	}
	c := newWSChannel(conn, d.cfg)
	c.logger.Info().Str("url", d.cfg.URL).Msg("signaling connected")

	go c.writePump()
	go c.readPump()
	return c, nil
}

// WSChannel is a core.SignalChannel over one websocket connection. Writes
// go through a bounded queue drained by writePump.
type WSChannel struct {
	conn   *websocket.Conn
	cfg    Config
	send   chan core.Frame
	in     chan core.Frame
	done   chan struct{}
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
	err    error
}

func newWSChannel(conn *websocket.Conn, cfg Config) *WSChannel {
	return &WSChannel{
		conn:   conn,
		cfg:    cfg,
		send:   make(chan core.Frame, cfg.SendBuffer),
		in:     make(chan core.Frame, cfg.SendBuffer),
		done:   make(chan struct{}),
		logger: log.With().Str("module", "signal").Str("conn", uuid.NewString()[:8]).Logger(),
	}
}

func (c *WSChannel) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return domain.ErrSignalingClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WSChannel) Incoming() <-chan core.Frame { return c.in }

func (c *WSChannel) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Close sends a close frame and drops the connection. Safe to call twice.
func (c *WSChannel) Close() {
	if !c.shut(nil) {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteWait))
	_ = c.conn.Close()
	c.logger.Info().Msg("signaling closed")
}

// shut marks the channel closed and records err as the cause. It reports
// whether this call did it.
func (c *WSChannel) shut(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	c.err = err
	close(c.send)
	close(c.done)
	return true
}

// fail is the remote-side counterpart of Close.
func (c *WSChannel) fail(err error) {
	if c.shut(err) {
		c.logger.Warn().Err(err).Msg("signaling lost")
	}
	_ = c.conn.Close()
}
