package coretest

import (
	"context"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
)

// Channel is an in-memory SignalChannel. Push feeds inbound envelopes,
// Sent returns what the session wrote.
type Channel struct {
	in chan core.Frame

	mu       sync.Mutex
	sent     []protocol.Envelope
	closed   bool
	err      error
	FailSend error
}

func NewChannel() *Channel {
	return &Channel{in: make(chan core.Frame, 64)}
}

func (c *Channel) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrSignalingClosed
	}
	if c.FailSend != nil {
		return c.FailSend
	}
	env, err := protocol.Decode(f)
	if err != nil {
		return err
	}
	c.sent = append(c.sent, env)
	return nil
}

func (c *Channel) Incoming() <-chan core.Frame { return c.in }

func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Channel) Close() { c.shut(nil) }

// Drop simulates the server going away with err.
func (c *Channel) Drop(err error) { c.shut(err) }

func (c *Channel) shut(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.err = err
	close(c.in)
}

func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Push delivers env as if it came from the server.
func (c *Channel) Push(env protocol.Envelope) {
	f, err := protocol.Encode(env)
	if err != nil {
		panic(err)
	}
	c.PushRaw(f)
}

func (c *Channel) PushRaw(f core.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.in <- f
	}
}

// Sent returns a copy of outbound envelopes.
func (c *Channel) Sent() []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Envelope(nil), c.sent...)
}

// SentOfType filters Sent by envelope type.
func (c *Channel) SentOfType(typ string) []protocol.Envelope {
	var out []protocol.Envelope
	for _, e := range c.Sent() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Dialer hands out a new Channel per Dial, or Err when set.
type Dialer struct {
	Err error
	// Gate, when set, blocks Dial until it is closed or ctx ends.
	Gate chan struct{}

	mu       sync.Mutex
	channels []*Channel
}

func (d *Dialer) Dial(ctx context.Context) (core.SignalChannel, error) {
	if d.Gate != nil {
		select {
		case <-d.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.Err != nil {
		return nil, d.Err
	}
	c := NewChannel()
	d.mu.Lock()
	d.channels = append(d.channels, c)
	d.mu.Unlock()
	return c, nil
}

// Last returns the most recently dialed channel, or nil.
func (d *Dialer) Last() *Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.channels) == 0 {
		return nil
	}
	return d.channels[len(d.channels)-1]
}
