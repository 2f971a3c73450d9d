package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ciphergram/ciphergram-server/internal/model"
)

const writeWait = 10 * time.Second

var _ model.Channel = (*WSChannel)(nil)

// WSChannel wraps one websocket connection as a delivery channel. The
// write mutex serializes pushes, control frames and the close handshake;
// gorilla permits only one concurrent writer per connection.
type WSChannel struct {
	identity string
	conn     *websocket.Conn
	mu       sync.Mutex
}

// NewWSChannel wraps conn as the delivery channel for identity.
func NewWSChannel(identity string, conn *websocket.Conn) *WSChannel {
	return &WSChannel{identity: identity, conn: conn}
}

// Identity returns the identity this channel was registered under.
func (c *WSChannel) Identity() string {
	return c.identity
}

// Push writes one payload to the peer. An error means the connection is
// stale or half-closed; the caller treats that as a delivery miss.
func (c *WSChannel) Push(payload model.WirePayload) error {
	if err := c.WriteJSON(payload); err != nil {
		return fmt.Errorf("push payload: %w", err)
	}
	return nil
}

// WriteJSON writes one frame under the same lock that serializes pushes.
func (c *WSChannel) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return c.conn.WriteJSON(v)
}

// WriteControl sends a control frame outside the payload stream.
func (c *WSChannel) WriteControl(messageType int, data []byte) error {
	return c.conn.WriteControl(messageType, data, time.Now().Add(writeWait))
}

// Close sends a close frame with the given reason and closes the
// underlying connection.
func (c *WSChannel) Close(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	return c.conn.Close()
}
