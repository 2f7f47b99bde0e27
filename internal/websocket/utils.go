package websocket

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stemsi/solvex/internal/response"
)

const (
	writeWait = 10 * time.Second

	// DefaultReadWait is how long a stream may go without any frame from the
	// client, pongs included.
	DefaultReadWait = 90 * time.Second
	// DefaultPingInterval must stay below DefaultReadWait.
	DefaultPingInterval = 30 * time.Second
)

// Conn serializes writes to a gorilla connection. The timer goroutine, the
// keepalive and the read loop all push frames, and gorilla allows one
// concurrent writer.
type Conn struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	readWait time.Duration
}

// NewConn wraps an upgraded connection. Every pong pushes the read deadline
// out by readWait, so a silent but connected client is not timed out.
func NewConn(conn *websocket.Conn, readWait time.Duration) *Conn {
	if readWait <= 0 {
		readWait = DefaultReadWait
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	return &Conn{conn: conn, readWait: readWait}
}

// Ping sends a ping control frame.
func (c *Conn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func (c *Conn) WriteTyped(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (c *Conn) WriteError(code response.ErrCode) error {
	return c.WriteTyped(ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: response.GetMessage(code),
	})
}

// Close sends a close frame with reason and closes the connection.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	c.mu.Unlock()
	return c.conn.Close()
}

// ReadMessage reads one raw message. It sets a read deadline.
func (c *Conn) ReadMessage() ([]byte, error) {
	c.conn.SetReadDeadline(time.Now().Add(c.readWait))
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

// IsTimeout reports whether a read ended because the deadline passed rather
// than because the peer closed.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
