package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State describes where the connection is in its lifecycle.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

var (
	ErrMissingURL         = errors.New("client: base URL is required")
	ErrMissingCredentials = errors.New("client: credentials provider is required")
	ErrClosed             = errors.New("client: connection is closed")
	ErrNotConnected       = errors.New("client: not connected")
	ErrGaveUp             = errors.New("client: reconnect attempts exhausted")
)

// Credentials carry one of the two handshake identities: a staff bearer
// token, or a customer table code plus session id.
type Credentials struct {
	Token     string
	TableCode string
	SessionID string
}

// CredentialsFunc is called before every connection attempt, including
// reconnects, so callers can mint a fresh token each time.
type CredentialsFunc func(ctx context.Context) (Credentials, error)

type Options struct {
	// URL is the server base URL, http(s) or ws(s) scheme.
	URL         string
	Credentials CredentialsFunc

	// MaxAttempts bounds consecutive failed reconnect attempts before
	// the connection transitions to StateFailed. 0 means the default.
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration

	HandshakeTimeout time.Duration

	// OnStateChange, when set, observes every lifecycle transition.
	OnStateChange func(State)
}

const (
	defaultMaxAttempts      = 10
	defaultBackoffBase      = time.Second
	defaultBackoffCap       = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

// Conn is a websocket connection that survives transient drops. After
// an unexpected disconnect it re-authenticates and redials with
// exponential backoff; the server answers every successful handshake
// with a fresh state snapshot, so no replay protocol is needed.
type Conn struct {
	opts Options

	mu       sync.RWMutex
	conn     *websocket.Conn
	state    State
	handlers map[string][]func(Envelope)

	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

func Dial(ctx context.Context, opts Options) (*Conn, error) {
	if opts.URL == "" {
		return nil, ErrMissingURL
	}
	if opts.Credentials == nil {
		return nil, ErrMissingCredentials
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = defaultBackoffCap
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}

	c := &Conn{
		opts:     opts,
		state:    StateDisconnected,
		handlers: make(map[string][]func(Envelope)),
		done:     make(chan struct{}),
	}

	c.setState(StateConnecting)
	if err := c.connect(ctx); err != nil {
		c.setState(StateFailed)
		return nil, err
	}
	c.setState(StateConnected)

	go c.readLoop()

	return c, nil
}

// On registers a handler for an event type. Handlers run on the read
// goroutine and must not block.
func (c *Conn) On(eventType string, handler func(Envelope)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], handler)
}

func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Send writes a client-originated event to the server.
func (c *Conn) Send(env Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if conn == nil || state != StateConnected {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(env)
}

// AcknowledgeOrder asks the kitchen-side server to move an order from
// pending to confirmed. Staff connections only.
func (c *Conn) AcknowledgeOrder(orderID string) error {
	return c.Send(Envelope{
		Type:      OrderAcknowledge,
		CausalKey: orderID,
		Data:      map[string]any{"orderId": orderID},
	})
}

func (c *Conn) UpdateItemStatus(orderID, itemID, status string) error {
	return c.Send(Envelope{
		Type:      OrderItemStatus,
		CausalKey: orderID,
		Data: map[string]any{
			"orderId": orderID,
			"itemId":  itemID,
			"status":  status,
		},
	})
}

// RequestAssistance raises a waiter call from a customer connection.
func (c *Conn) RequestAssistance(note string) error {
	return c.Send(Envelope{
		Type: TableAssistance,
		Data: map[string]any{"note": note},
	})
}

// Close terminates the connection and stops any reconnect attempts.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.state = StateDisconnected
		c.mu.Unlock()

		if conn != nil {
			err = conn.Close()
		}
		c.notify(StateDisconnected)
	})
	return err
}

func (c *Conn) connect(ctx context.Context) error {
	creds, err := c.opts.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain credentials: %w", err)
	}

	target, err := wsURL(c.opts.URL, creds)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return nil
}

func (c *Conn) readLoop() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			return
		}

		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			// Handler-based consumers see the drop too, not just
			// OnStateChange observers.
			c.dispatch(Envelope{Type: Disconnected})
			if !c.reconnect() {
				return
			}
			continue
		}

		// The server announces intentional terminations; neither is
		// worth retrying against.
		switch env.Type {
		case ServerShutdown:
			c.dispatch(env)
			_ = c.Close()
			return
		case AuthenticationError:
			c.dispatch(env)
			c.setState(StateFailed)
			_ = conn.Close()
			return
		}

		c.dispatch(env)
	}
}

// reconnect redials with exponential backoff. Returns false once the
// attempt budget is spent or the connection was closed.
func (c *Conn) reconnect() bool {
	c.setState(StateReconnecting)

	backoff := c.opts.BackoffBase
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		select {
		case <-c.done:
			return false
		case <-time.After(backoff):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.opts.HandshakeTimeout)
		err := c.connect(ctx)
		cancel()

		if err == nil {
			c.setState(StateConnected)
			return true
		}

		backoff *= 2
		if backoff > c.opts.BackoffCap {
			backoff = c.opts.BackoffCap
		}
	}

	c.setState(StateFailed)
	c.dispatch(Envelope{Type: ErrorEvent, Data: map[string]any{"message": ErrGaveUp.Error()}})
	return false
}

func (c *Conn) dispatch(env Envelope) {
	c.mu.RLock()
	handlers := c.handlers[env.Type]
	c.mu.RUnlock()

	for _, handler := range handlers {
		handler(env)
	}
}

func (c *Conn) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	c.notify(s)
}

func (c *Conn) notify(s State) {
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

// wsURL builds the handshake URL from the base URL and credentials.
func wsURL(base string, creds Credentials) (string, error) {
	target := base
	if after, ok := strings.CutPrefix(base, "https://"); ok {
		target = "wss://" + after
	} else if after, ok := strings.CutPrefix(base, "http://"); ok {
		target = "ws://" + after
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	q := u.Query()
	if creds.Token != "" {
		q.Set("token", creds.Token)
	}
	if creds.TableCode != "" {
		q.Set("table_code", creds.TableCode)
		q.Set("session_id", creds.SessionID)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
