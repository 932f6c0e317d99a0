package testutil

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/server"
	"github.com/gorilla/websocket"

	"taskboard/internal/live"
	"taskboard/internal/logging"
)

const publisherHeader = "X-Test-Publisher"

// FakeBroker is an in-process STOMP broker reachable over WebSocket.
type FakeBroker struct {
	// URL is the ws:// endpoint.
	URL string

	srv *httptest.Server
	ln  *connListener

	mu         sync.Mutex
	handshakes []http.Header
	conns      []*live.Conn
	publisher  *stomp.Conn
}

// NewFakeBroker starts a broker that is shut down when the test ends.
func NewFakeBroker(t testing.TB) *FakeBroker {
	t.Helper()

	b := &FakeBroker{ln: newConnListener()}
	upgrader := websocket.Upgrader{Subprotocols: live.Subprotocols}

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := live.NewConn(ws)
		if r.Header.Get(publisherHeader) == "" {
			b.mu.Lock()
			b.handshakes = append(b.handshakes, r.Header.Clone())
			b.conns = append(b.conns, conn)
			b.mu.Unlock()
		}
		if !b.ln.push(conn) {
			_ = conn.Close()
		}
	}))
	b.URL = "ws" + strings.TrimPrefix(b.srv.URL, "http")

	stompServer := &server.Server{Log: live.StompLogger(logging.NopLogger())}
	go func() { _ = stompServer.Serve(b.ln) }()

	t.Cleanup(b.Close)
	return b
}

// Handshakes returns the request headers of every subscriber handshake so far.
func (b *FakeBroker) Handshakes() []http.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]http.Header(nil), b.handshakes...)
}

// Publish sends body to destination through a separate client connection.
func (b *FakeBroker) Publish(destination string, body []byte) error {
	conn, err := b.publisherConn()
	if err != nil {
		return err
	}
	return conn.Send(destination, "application/json", body)
}

func (b *FakeBroker) publisherConn() (*stomp.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publisher != nil {
		return b.publisher, nil
	}
	dialer := &live.WebSocketDialer{URL: b.URL}
	header := http.Header{}
	header.Set(publisherHeader, "1")
	stream, err := dialer.Dial(context.Background(), header)
	if err != nil {
		return nil, err
	}
	conn, err := stomp.Connect(stream, stomp.ConnOpt.Logger(live.StompLogger(logging.NopLogger())))
	if err != nil {
		_ = stream.Close()
		return nil, err
	}
	b.publisher = conn
	return conn, nil
}

// DropConnections closes every subscriber connection, as a network failure
// would.
func (b *FakeBroker) DropConnections() {
	b.mu.Lock()
	conns := b.conns
	b.conns = nil
	b.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

// Close stops the broker.
func (b *FakeBroker) Close() {
	b.mu.Lock()
	pub := b.publisher
	b.publisher = nil
	b.mu.Unlock()
	if pub != nil {
		_ = pub.MustDisconnect()
	}
	b.DropConnections()
	_ = b.ln.Close()
	b.srv.Close()
}

// connListener hands upgraded WebSocket connections to the STOMP server.
type connListener struct {
	conns  chan net.Conn
	closed chan struct{}
	once   sync.Once
}

func newConnListener() *connListener {
	return &connListener{
		conns:  make(chan net.Conn),
		closed: make(chan struct{}),
	}
}

func (l *connListener) push(c net.Conn) bool {
	select {
	case l.conns <- c:
		return true
	case <-l.closed:
		return false
	}
}

func (l *connListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *connListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *connListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}
