package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// ReceivedEvent is an event a client emitted to the fake server.
type ReceivedEvent struct {
	Event string
	Data  json.RawMessage
}

// SocketServer is a minimal Socket.IO server for tests. It speaks Engine.IO
// v4 over websocket on /socket.io/ and serves any extra HTTP routes
// registered with Handle.
type SocketServer struct {
	t        testing.TB
	server   *httptest.Server
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	connectEvents []string
	received      chan ReceivedEvent
	connected     chan struct{}
	pongs         atomic.Int64

	mu    sync.Mutex
	conns []*fakeConn
}

type fakeConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *fakeConn) send(frame string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// NewSocketServer starts a fake server that is closed with the test.
func NewSocketServer(t testing.TB) *SocketServer {
	t.Helper()
	s := &SocketServer{
		t:         t,
		mux:       http.NewServeMux(),
		received:  make(chan ReceivedEvent, 64),
		connected: make(chan struct{}, 8),
	}
	s.mux.HandleFunc("/socket.io/", s.serveSocket)
	s.server = httptest.NewServer(s.mux)
	t.Cleanup(s.Close)
	return s
}

// URL returns the server's base http URL.
func (s *SocketServer) URL() string {
	return s.server.URL
}

// Handle registers an HTTP handler alongside the socket endpoint.
func (s *SocketServer) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// EmitOnConnect queues an event sent from the connect handler, before the
// namespace connect acknowledgement, the way Flask-SocketIO does.
func (s *SocketServer) EmitOnConnect(event string, payload any) {
	s.connectEvents = append(s.connectEvents, s.eventFrame(event, payload))
}

// Emit broadcasts an event to every connected client.
func (s *SocketServer) Emit(event string, payload any) {
	s.Broadcast(s.eventFrame(event, payload))
}

// Broadcast sends a raw Engine.IO frame to every connected client.
func (s *SocketServer) Broadcast(frame string) {
	s.mu.Lock()
	conns := append([]*fakeConn(nil), s.conns...)
	s.mu.Unlock()
	for _, c := range conns {
		if err := c.send(frame); err != nil {
			s.t.Logf("fake socket server: send failed: %v", err)
		}
	}
}

// WaitConnected blocks until a client completes the namespace connect.
func (s *SocketServer) WaitConnected(timeout time.Duration) {
	s.t.Helper()
	select {
	case <-s.connected:
	case <-time.After(timeout):
		s.t.Fatalf("fake socket server: no client connected within %s", timeout)
	}
}

// NextEvent returns the next event a client emitted.
func (s *SocketServer) NextEvent(timeout time.Duration) ReceivedEvent {
	s.t.Helper()
	select {
	case ev := <-s.received:
		return ev
	case <-time.After(timeout):
		s.t.Fatalf("fake socket server: no event received within %s", timeout)
		return ReceivedEvent{}
	}
}

// Received exposes emitted events for non-blocking assertions.
func (s *SocketServer) Received() <-chan ReceivedEvent {
	return s.received
}

// Pongs reports how many pong packets clients have sent.
func (s *SocketServer) Pongs() int64 {
	return s.pongs.Load()
}

// Close disconnects all clients and stops the server.
func (s *SocketServer) Close() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.conn.Close()
	}
	s.server.Close()
}

func (s *SocketServer) eventFrame(event string, payload any) string {
	data, err := json.Marshal([]any{event, payload})
	if err != nil {
		s.t.Fatalf("fake socket server: encode %s: %v", event, err)
	}
	return "42" + string(data)
}

func (s *SocketServer) serveSocket(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("EIO") != "4" || r.URL.Query().Get("transport") != "websocket" {
		http.Error(w, "unsupported transport", http.StatusBadRequest)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &fakeConn{conn: ws}
	s.mu.Lock()
	sid := fmt.Sprintf("sid-%d", len(s.conns)+1)
	s.mu.Unlock()

	open := fmt.Sprintf(`0{"sid":%q,"upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`, sid)
	if err := conn.send(open); err != nil {
		_ = ws.Close()
		return
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		frame := string(data)
		switch {
		case frame == "40" || strings.HasPrefix(frame, "40/"):
			for _, ev := range s.connectEvents {
				_ = conn.send(ev)
			}
			s.mu.Lock()
			s.conns = append(s.conns, conn)
			s.mu.Unlock()
			_ = conn.send(fmt.Sprintf(`40{"sid":%q}`, sid))
			s.connected <- struct{}{}
		case frame == "3":
			s.pongs.Add(1)
		case strings.HasPrefix(frame, "41"):
			return
		case strings.HasPrefix(frame, "42"):
			var args []json.RawMessage
			if err := json.Unmarshal([]byte(frame[2:]), &args); err != nil || len(args) == 0 {
				continue
			}
			var name string
			_ = json.Unmarshal(args[0], &name)
			ev := ReceivedEvent{Event: name, Data: json.RawMessage("null")}
			if len(args) > 1 {
				ev.Data = args[1]
			}
			s.received <- ev
		}
	}
}
