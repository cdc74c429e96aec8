package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tabsync/tabsync/internal/domain"
)

const (
	maxInboundBytes  = 32768
	readDeadline     = 60 * time.Second
	writeDeadline    = 10 * time.Second
	pingInterval     = 30 * time.Second
	sendBufferSize   = 64
	pendingBufferCap = 256
)

// Client is a single authenticated transport connection. It is owned by
// the server process holding the socket and is never shared across
// instances. Identity is immutable for the connection's lifetime.
type Client struct {
	ID          string
	Identity    domain.Identity
	ConnectedAt time.Time

	conn *connWrapper
	Send chan *Envelope

	// live and pending are touched only by the hub run loop: deltas are
	// buffered here until the state snapshot has been flushed.
	live    bool
	pending []*Envelope

	closeOnce sync.Once
	closed    chan struct{}
	mu        sync.Mutex

	// sendMu serializes TrySend against the close of Send, so a send
	// can never race the channel teardown.
	sendMu sync.Mutex
}

func NewClient(conn *websocket.Conn, id string, identity domain.Identity) *Client {
	return &Client{
		ID:          id,
		Identity:    identity,
		ConnectedAt: time.Now(),
		conn:        newConnWrapper(conn),
		Send:        make(chan *Envelope, sendBufferSize),
		closed:      make(chan struct{}),
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		if c.conn != nil && c.conn.conn != nil {
			_ = c.conn.Close()
		}
		c.mu.Unlock()

		c.sendMu.Lock()
		close(c.Send)
		c.sendMu.Unlock()
	})
}

func (c *Client) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// ReadPump consumes client-originated events and forwards them to the
// hub. It exits on any read error, which triggers unregister exactly
// once via the deferred hand-off.
func (c *Client) ReadPump(hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.Close()
	}()

	_ = c.conn.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.conn.SetReadLimit(maxInboundBytes)

	c.conn.conn.SetPongHandler(func(string) error {
		_ = c.conn.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		select {
		case <-c.closed:
			return
		default:
		}

		_, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hub.logger.Debugf("ws read error (connection %s): %v", c.ID, err)
			}
			return
		}

		if len(raw) == 0 {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.TrySend(NewError("malformed event"))
			continue
		}

		hub.Inbound(c, &env)
	}
}

// WritePump drains the send channel to the socket and keeps the
// connection alive with pings.
func (c *Client) WritePump(hub *Hub) {
	defer c.Close()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-c.Send:
			if !ok {
				c.mu.Lock()
				_ = c.conn.conn.WriteMessage(websocket.CloseMessage, []byte{})
				c.mu.Unlock()
				return
			}

			_ = c.conn.conn.SetWriteDeadline(time.Now().Add(writeDeadline))

			if err := c.conn.WriteJSON(env); err != nil {
				hub.logger.Debugf("ws write error (connection %s): %v", c.ID, err)
				return
			}

		case <-ticker.C:
			c.mu.Lock()
			_ = c.conn.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			err := c.conn.conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()

			if err != nil {
				return
			}

		case <-c.closed:
			return
		}
	}
}

// TrySend queues an envelope without blocking. A full buffer means a
// slow consumer; the event is dropped rather than stalling the caller,
// and the snapshot mechanism covers recovery on reconnect. A connection
// closing mid-broadcast reports a failed send instead of panicking the
// sender: the closed check and the channel send are atomic under sendMu.
func (c *Client) TrySend(env *Envelope) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.IsClosed() {
		return false
	}

	select {
	case c.Send <- env:
		return true
	default:
		return false
	}
}
