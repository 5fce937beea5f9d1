package ws

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wavesoft/marblebar/internal/session"
)

// client pumps frames between one websocket and its session. The session
// owns the egress queue; the client only drains it.
type client struct {
	conn         *websocket.Conn
	sess         *session.Session
	writeTimeout time.Duration
	pingInterval time.Duration
	readLimit    int64
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

func (c *client) readPump() {
	defer c.sess.Disconnect()

	if c.readLimit > 0 {
		c.conn.SetReadLimit(c.readLimit)
	}
	if c.pingInterval > 0 {
		wait := 2 * c.pingInterval
		c.conn.SetReadDeadline(time.Now().Add(wait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws read error (%s): %v", c.sess.ID(), err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		c.sess.HandleRawData(data)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	defer c.sess.CloseEgress()

	var ping <-chan time.Time
	if c.pingInterval > 0 {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-c.sess.Done():
			return

		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, c.deadline()); err != nil {
				c.fail(err)
				return
			}

		case <-c.sess.Ready():
			if err := c.flush(); err != nil {
				c.fail(err)
				return
			}
			if !c.sess.Connected() {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				c.conn.WriteControl(websocket.CloseMessage, msg, c.deadline())
				return
			}
		}
	}
}

// flush writes every queued frame in order.
func (c *client) flush() error {
	for {
		frame, ok := c.sess.PopEgress()
		if !ok {
			return nil
		}
		c.conn.SetWriteDeadline(c.deadline())
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return err
		}
	}
}

func (c *client) fail(err error) {
	log.Printf("ws write error (%s): %v", c.sess.ID(), err)
	c.sess.Disconnect()
}

func (c *client) deadline() time.Time {
	if c.writeTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.writeTimeout)
}
