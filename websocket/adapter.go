package websocket

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"dlt-bridge-server/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Consumers never send application data; anything beyond control
	// frames is noise.
	maxMessageSize = 512
)

// ErrSlowConsumer is returned by Send when a consumer's buffer is
// full. The hub treats it like any other delivery failure and prunes
// the consumer.
var ErrSlowConsumer = errors.New("websocket: consumer send buffer full")

// Conn adapts a gorilla websocket connection to domain.Consumer.
// Frames are forwarded as binary messages, byte-identical to the wire.
type Conn struct {
	id          string
	ws          *websocket.Conn
	send        chan []byte
	broadcaster domain.Broadcaster
}

func NewConn(id string, ws *websocket.Conn, b domain.Broadcaster, sendBuffer int) *Conn {
	return &Conn{
		id:          id,
		ws:          ws,
		send:        make(chan []byte, sendBuffer),
		broadcaster: b,
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(frame []byte) error {
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Conn) Start() {
	c.broadcaster.Register(c)
	go c.writePump()
	go c.readPump()
}

// readPump exists only to observe the connection: consumers do not
// speak back, but reads are what detect close frames and feed the
// pong handler.
func (c *Conn) readPump() {
	defer func() {
		c.broadcaster.Unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "consumerId", c.id, "error", err)
			}
			return
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
