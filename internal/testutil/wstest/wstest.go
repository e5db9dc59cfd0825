// Package wstest runs an in-process telemetry server for tests. It accepts
// WebSocket clients, decodes their framed requests, and lets the test push
// replies or drop connections.
package wstest

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danmuck/wxdash/internal/protocol"
	"github.com/danmuck/wxdash/internal/protocol/frame"
)

// Reply builds the payloads answered for one decoded request. Returned
// payloads are sent as text messages.
type Reply func(req protocol.Request) [][]byte

type Server struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	requests chan protocol.Request
	reply    Reply

	mu       sync.Mutex
	conns    []*websocket.Conn
	accepted int
}

type Option func(*Server)

// WithReply installs an automatic responder.
func WithReply(r Reply) Option {
	return func(s *Server) { s.reply = r }
}

// New starts a plain ws:// server.
func New(t testing.TB, opts ...Option) *Server {
	return start(t, nil, opts...)
}

// NewTLS starts a wss:// server presenting the certificate in tlsCfg.
func NewTLS(t testing.TB, tlsCfg *tls.Config, opts ...Option) *Server {
	return start(t, tlsCfg, opts...)
}

func start(t testing.TB, tlsCfg *tls.Config, opts ...Option) *Server {
	t.Helper()
	s := &Server{
		requests: make(chan protocol.Request, 64),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = httptest.NewUnstartedServer(http.HandlerFunc(s.serve))
	if tlsCfg != nil {
		s.srv.TLS = tlsCfg
		s.srv.StartTLS()
	} else {
		s.srv.Start()
	}
	t.Cleanup(s.Close)
	return s
}

// URL returns the ws:// or wss:// endpoint.
func (s *Server) URL() string {
	u := s.srv.URL
	if strings.HasPrefix(u, "https://") {
		return "wss://" + strings.TrimPrefix(u, "https://")
	}
	return "ws://" + strings.TrimPrefix(u, "http://")
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.accepted++
	s.mu.Unlock()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		payload, _, err := frame.Decode(data)
		if err != nil {
			continue
		}
		req, err := protocol.DecodeRequest(payload)
		if err != nil {
			continue
		}
		select {
		case s.requests <- req:
		default:
		}
		if s.reply != nil {
			for _, out := range s.reply(req) {
				s.write(conn, websocket.TextMessage, out)
			}
		}
	}
}

// NextRequest waits for the next decoded client request.
func (s *Server) NextRequest(timeout time.Duration) (protocol.Request, bool) {
	select {
	case req := <-s.requests:
		return req, true
	case <-time.After(timeout):
		return protocol.Request{}, false
	}
}

// SendText pushes payload to every live client as a text message.
func (s *Server) SendText(payload []byte) {
	s.broadcast(websocket.TextMessage, payload)
}

// SendBinary pushes payload to every live client as a binary message.
func (s *Server) SendBinary(payload []byte) {
	s.broadcast(websocket.BinaryMessage, payload)
}

func (s *Server) broadcast(mt int, payload []byte) {
	s.mu.Lock()
	conns := append([]*websocket.Conn(nil), s.conns...)
	s.mu.Unlock()
	for _, c := range conns {
		s.write(c, mt, payload)
	}
}

func (s *Server) write(c *websocket.Conn, mt int, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.WriteMessage(mt, payload)
}

// DropAll closes every live client connection without a close handshake.
func (s *Server) DropAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

// Connections reports how many clients were accepted so far.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func (s *Server) Close() {
	s.DropAll()
	s.srv.CloseClientConnections()
	s.srv.Close()
}
