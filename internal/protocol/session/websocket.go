package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketTransport dials ws:// and wss:// endpoints with gorilla/websocket.
type WebSocketTransport struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewWebSocketTransport(cfg Config) (*WebSocketTransport, error) {
	cfg = cfg.WithDefaults()
	tlsCfg, err := cfg.clientTLSConfig()
	if err != nil {
		return nil, err
	}
	return &WebSocketTransport{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
			TLSClientConfig:  tlsCfg,
		},
	}, nil
}

func (t *WebSocketTransport) Name() string {
	return "websocket"
}

func (t *WebSocketTransport) Dial(ctx context.Context, endpoint string) (Conn, error) {
	if err := t.cfg.ValidateClientTransport(endpoint); err != nil {
		return nil, err
	}
	c, resp, err := t.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (http status %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	c.SetReadLimit(t.cfg.ReadLimit)
	return &wsConn{c: c, writeTimeout: t.cfg.WriteTimeout}, nil
}

type wsConn struct {
	c            *websocket.Conn
	writeTimeout time.Duration
}

func (w *wsConn) ReadMessage() (MessageType, []byte, error) {
	mt, data, err := w.c.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return 0, nil, fmt.Errorf("%w: %v", ErrClosedByPeer, err)
		}
		return 0, nil, err
	}
	switch mt {
	case websocket.BinaryMessage:
		return MessageBinary, data, nil
	default:
		return MessageText, data, nil
	}
}

func (w *wsConn) WriteMessage(ctx context.Context, t MessageType, data []byte) error {
	deadline := time.Now().Add(w.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := w.c.SetWriteDeadline(deadline); err != nil {
		return err
	}
	wsType := websocket.BinaryMessage
	if t == MessageText {
		wsType = websocket.TextMessage
	}
	return w.c.WriteMessage(wsType, data)
}

func (w *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.c.Close()
}
