package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// testServer accepts websocket connections and exposes hooks for
// driving the client under test.
type testServer struct {
	*httptest.Server

	mu    sync.Mutex
	conns []*websocket.Conn

	dials  int64
	onConn func(conn *websocket.Conn, r *http.Request)
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&ts.dials, 1)

		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		ts.mu.Lock()
		ts.conns = append(ts.conns, conn)
		ts.mu.Unlock()

		if ts.onConn != nil {
			ts.onConn(conn, r)
		}
	}))

	t.Cleanup(func() {
		ts.mu.Lock()
		for _, c := range ts.conns {
			_ = c.Close()
		}
		ts.mu.Unlock()
		ts.Close()
	})

	return ts
}

func (ts *testServer) dialCount() int64 {
	return atomic.LoadInt64(&ts.dials)
}

func staticCredentials(creds Credentials) CredentialsFunc {
	return func(context.Context) (Credentials, error) {
		return creds, nil
	}
}

func dialTest(t *testing.T, ts *testServer, opts Options) *Conn {
	t.Helper()

	if opts.URL == "" {
		opts.URL = ts.URL
	}
	if opts.Credentials == nil {
		opts.Credentials = staticCredentials(Credentials{Token: "tok"})
	}
	if opts.BackoffBase == 0 {
		opts.BackoffBase = 10 * time.Millisecond
	}
	if opts.BackoffCap == 0 {
		opts.BackoffCap = 50 * time.Millisecond
	}

	conn, err := Dial(context.Background(), opts)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestDial_Validation(t *testing.T) {
	if _, err := Dial(context.Background(), Options{Credentials: staticCredentials(Credentials{})}); err != ErrMissingURL {
		t.Errorf("expected ErrMissingURL, got %v", err)
	}
	if _, err := Dial(context.Background(), Options{URL: "http://localhost"}); err != ErrMissingCredentials {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestWSURL(t *testing.T) {
	t.Run("staff token", func(t *testing.T) {
		got, err := wsURL("https://api.example.com", Credentials{Token: "tok"})
		if err != nil {
			t.Fatal(err)
		}
		if got != "wss://api.example.com/ws?token=tok" {
			t.Errorf("unexpected URL: %s", got)
		}
	})

	t.Run("customer table code", func(t *testing.T) {
		got, err := wsURL("http://localhost:8080", Credentials{TableCode: "QR1", SessionID: "s1"})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(got, "ws://localhost:8080/ws?") {
			t.Errorf("unexpected URL prefix: %s", got)
		}
		if !strings.Contains(got, "table_code=QR1") || !strings.Contains(got, "session_id=s1") {
			t.Errorf("missing credentials in URL: %s", got)
		}
	})
}

func TestDial_ConnectsAndDispatchesEvents(t *testing.T) {
	ts := newTestServer(t)
	ts.onConn = func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteJSON(Envelope{Type: OrderNew, TenantID: "t1"})
	}

	received := make(chan Envelope, 1)

	conn := dialTest(t, ts, Options{})
	conn.On(OrderNew, func(env Envelope) {
		received <- env
	})

	if conn.State() != StateConnected {
		t.Errorf("expected connected state, got %s", conn.State())
	}

	select {
	case env := <-received:
		if env.TenantID != "t1" {
			t.Errorf("unexpected envelope: %+v", env)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("event never dispatched")
	}
}

func TestConn_ReconnectsWithFreshCredentials(t *testing.T) {
	ts := newTestServer(t)

	var dropped int64
	ts.onConn = func(conn *websocket.Conn, _ *http.Request) {
		// Drop the first connection to force a reconnect.
		if atomic.CompareAndSwapInt64(&dropped, 0, 1) {
			_ = conn.Close()
		}
	}

	var credCalls int64
	creds := func(context.Context) (Credentials, error) {
		atomic.AddInt64(&credCalls, 1)
		return Credentials{Token: "tok"}, nil
	}

	conn := dialTest(t, ts, Options{Credentials: creds})

	waitFor(t, "reconnect", func() bool {
		return ts.dialCount() >= 2 && conn.State() == StateConnected
	})

	if got := atomic.LoadInt64(&credCalls); got < 2 {
		t.Errorf("expected fresh credentials per attempt, got %d calls", got)
	}
}

func TestConn_DispatchesDisconnectedOnDrop(t *testing.T) {
	ts := newTestServer(t)

	// The first connection closes as soon as the client speaks, so the
	// drop only happens once the handler below is registered.
	var dropped int64
	ts.onConn = func(conn *websocket.Conn, _ *http.Request) {
		if atomic.CompareAndSwapInt64(&dropped, 0, 1) {
			_, _, _ = conn.ReadMessage()
			_ = conn.Close()
		}
	}

	dropSeen := make(chan struct{}, 1)

	conn := dialTest(t, ts, Options{})
	conn.On(Disconnected, func(Envelope) {
		select {
		case dropSeen <- struct{}{}:
		default:
		}
	})

	if err := conn.AcknowledgeOrder("o1"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case <-dropSeen:
	case <-time.After(3 * time.Second):
		t.Fatal("disconnected event never dispatched")
	}

	waitFor(t, "reconnect", func() bool {
		return conn.State() == StateConnected
	})
}

func TestConn_ServerShutdownStopsRetrying(t *testing.T) {
	ts := newTestServer(t)
	ts.onConn = func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteJSON(Envelope{Type: ServerShutdown})
	}

	conn := dialTest(t, ts, Options{})

	waitFor(t, "disconnect", func() bool {
		return conn.State() == StateDisconnected
	})

	time.Sleep(100 * time.Millisecond)
	if got := ts.dialCount(); got != 1 {
		t.Errorf("expected no redial after server shutdown, got %d dials", got)
	}
}

func TestConn_AuthErrorFails(t *testing.T) {
	ts := newTestServer(t)
	ts.onConn = func(conn *websocket.Conn, _ *http.Request) {
		_ = conn.WriteJSON(Envelope{Type: AuthenticationError})
	}

	authSeen := make(chan struct{}, 1)

	conn := dialTest(t, ts, Options{})
	conn.On(AuthenticationError, func(Envelope) {
		authSeen <- struct{}{}
	})

	waitFor(t, "failed state", func() bool {
		return conn.State() == StateFailed
	})

	time.Sleep(100 * time.Millisecond)
	if got := ts.dialCount(); got != 1 {
		t.Errorf("expected no redial after auth rejection, got %d dials", got)
	}
}

func TestConn_GivesUpAfterMaxAttempts(t *testing.T) {
	ts := newTestServer(t)

	conn := dialTest(t, ts, Options{MaxAttempts: 2})

	errSeen := make(chan struct{}, 1)
	conn.On(ErrorEvent, func(Envelope) {
		select {
		case errSeen <- struct{}{}:
		default:
		}
	})

	// Kill the server so every redial fails.
	ts.mu.Lock()
	conns := ts.conns
	ts.mu.Unlock()
	ts.Close()
	for _, c := range conns {
		_ = c.Close()
	}

	waitFor(t, "failed state", func() bool {
		return conn.State() == StateFailed
	})

	select {
	case <-errSeen:
	case <-time.After(time.Second):
		t.Error("expected an error event once attempts are exhausted")
	}
}

func TestConn_SendWhenDisconnected(t *testing.T) {
	ts := newTestServer(t)

	conn := dialTest(t, ts, Options{})
	_ = conn.Close()

	if err := conn.Send(Envelope{Type: OrderAcknowledge}); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
