package signal

import (
	"time"

	"github.com/gorilla/websocket"
)

func (c *WSChannel) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.logger.Debug().Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.fail(err)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error().Err(err).Msg("writePump write error")
				c.fail(err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Error().Err(err).Msg("writePump ping error")
				c.fail(err)
				return
			}
		}
	}
}

// readPump owns c.in and closes it when reading stops.
func (c *WSChannel) readPump() {
	defer func() {
		close(c.in)
		c.logger.Debug().Msg("readPump closing")
	}()

	c.conn.SetReadLimit(c.cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		if kind != websocket.TextMessage {
			c.logger.Warn().Int("kind", kind).Msg("non-text frame ignored")
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		select {
		case c.in <- data:
		case <-c.done:
			return
		}
	}
}
