package handlers

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

type WSClient struct {
	SessionID string
	Conn      *websocket.Conn
	SendCh    chan []byte

	mu     sync.Mutex
	closed bool
}

func NewWSClient(sessionID string, conn *websocket.Conn) *WSClient {
	return &WSClient{
		SessionID: sessionID,
		Conn:      conn,
		SendCh:    make(chan []byte, 32),
	}
}

// Send queues payload. Nil payloads are dropped, as are sends to a full
// buffer or a closed client.
func (c *WSClient) Send(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || payload == nil {
		return
	}
	select {
	case c.SendCh <- payload:
	default:
	}
}

// Close stops the write pump. Later sends are no-ops.
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.SendCh)
}

// Kick ends the client once the queued messages are written. The pump then
// closes the connection and the read loop returns.
func (c *WSClient) Kick() {
	c.Close()
}

func (c *WSClient) WritePump() {
	defer c.Conn.Close()
	for msg := range c.SendCh {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.Conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
