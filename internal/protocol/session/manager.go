package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	logs "github.com/danmuck/wxdash/internal/logging"
	"github.com/danmuck/wxdash/internal/observability"
	"github.com/danmuck/wxdash/internal/protocol"
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// ConnInfo identifies one connection attempt.
type ConnInfo struct {
	ID       string
	Endpoint string
	Attempt  int
	At       time.Time
}

// Status is a point-in-time view of the manager.
type Status struct {
	State     State
	ConnID    string
	Endpoint  string
	Attempt   int
	Since     time.Time
	LastError string
}

// Listener receives lifecycle events in transport order.
type Listener interface {
	OnOpen(info ConnInfo)
	OnMessage(info ConnInfo, msg protocol.Message)
	OnError(info ConnInfo, err error)
	OnClose(info ConnInfo, err error)
}

// ListenerFuncs adapts optional funcs to Listener. Nil funcs are skipped.
type ListenerFuncs struct {
	Open    func(ConnInfo)
	Message func(ConnInfo, protocol.Message)
	Error   func(ConnInfo, error)
	Close   func(ConnInfo, error)
}

func (l ListenerFuncs) OnOpen(info ConnInfo) {
	if l.Open != nil {
		l.Open(info)
	}
}

func (l ListenerFuncs) OnMessage(info ConnInfo, msg protocol.Message) {
	if l.Message != nil {
		l.Message(info, msg)
	}
}

func (l ListenerFuncs) OnError(info ConnInfo, err error) {
	if l.Error != nil {
		l.Error(info, err)
	}
}

func (l ListenerFuncs) OnClose(info ConnInfo, err error) {
	if l.Close != nil {
		l.Close(info, err)
	}
}

type eventKind int

const eventQueueDepth = 256

const (
	eventOpen eventKind = iota + 1
	eventMessage
	eventError
	eventClose
)

type event struct {
	kind eventKind
	info ConnInfo
	msg  protocol.Message
	err  error
}

// Option customizes a Manager.
type Option func(*Manager)

// WithAfter replaces the reconnect wait clock.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(m *Manager) {
		if after != nil {
			m.after = after
		}
	}
}

// Manager owns the single telemetry connection and its reconnect loop.
type Manager struct {
	cfg       Config
	transport Transport
	listener  Listener
	after     func(time.Duration) <-chan time.Time

	mu        sync.Mutex
	state     State
	conn      Conn
	info      ConnInfo
	since     time.Time
	lastErr   string
	running   bool
	closed    bool
	cancel    context.CancelFunc
	superDone chan struct{}

	events       chan event
	dispatchDone chan struct{}

	writeMu sync.Mutex
}

func NewManager(cfg Config, tr Transport, l Listener, opts ...Option) *Manager {
	if l == nil {
		l = ListenerFuncs{}
	}
	m := &Manager{
		cfg:       cfg.WithDefaults(),
		transport: tr,
		listener:  l,
		after:     time.After,
		state:     StateDisconnected,
		since:     time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect starts the connection supervisor for endpoint. ctx bounds the
// supervisor's lifetime. While a supervisor is already running (connecting,
// open, or waiting to reconnect) Connect is a no-op.
func (m *Manager) Connect(ctx context.Context, endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if err := m.cfg.ValidateClientTransport(endpoint); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if m.running {
		logs.Debugf("session.Manager.Connect ignored state=%s endpoint=%q", m.state, endpoint)
		return nil
	}
	if m.events == nil {
		m.events = make(chan event, eventQueueDepth)
		m.dispatchDone = make(chan struct{})
		go m.dispatch(m.events, m.dispatchDone)
	}

	superCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.superDone = make(chan struct{})
	go m.supervise(superCtx, endpoint, m.superDone)
	return nil
}

// Send writes one binary message. It fails with *NotConnectedError unless the
// connection is open. There is no delivery acknowledgement.
func (m *Manager) Send(ctx context.Context, data []byte) error {
	m.mu.Lock()
	conn, state, info := m.conn, m.state, m.info
	m.mu.Unlock()
	if state != StateOpen || conn == nil {
		return &NotConnectedError{State: state}
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteMessage(ctx, MessageBinary, data); err != nil {
		observability.RecordSend(false)
		return &TransportError{Op: "write", Endpoint: info.Endpoint, Err: err}
	}
	observability.RecordSend(true)
	return nil
}

// Close tears the manager down: the live connection is closed, the
// supervisor and dispatch goroutines exit, and no further events are
// delivered. Close must not be called from a Listener callback.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.running {
		m.setStateLocked(StateClosing, "")
	}
	cancel, superDone, conn := m.cancel, m.superDone, m.conn
	events, dispatchDone := m.events, m.dispatchDone
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if conn != nil {
		err = conn.Close()
	}
	if superDone != nil {
		<-superDone
	}
	if events != nil {
		close(events)
		<-dispatchDone
	}

	m.mu.Lock()
	m.conn = nil
	m.setStateLocked(StateDisconnected, "")
	m.mu.Unlock()
	logs.Infof("session.Manager.Close done")
	return err
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:     m.state,
		ConnID:    m.info.ID,
		Endpoint:  m.info.Endpoint,
		Attempt:   m.info.Attempt,
		Since:     m.since,
		LastError: m.lastErr,
	}
}

// supervise runs dial, read and reconnect wait until ctx ends or the attempt
// budget is spent.
func (m *Manager) supervise(ctx context.Context, endpoint string, done chan struct{}) {
	defer close(done)
	defer func() {
		m.mu.Lock()
		m.running = false
		if !m.closed {
			m.setStateLocked(StateDisconnected, m.lastErr)
		}
		m.mu.Unlock()
	}()

	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		info := ConnInfo{
			ID:       uuid.NewString(),
			Endpoint: endpoint,
			Attempt:  failures + 1,
			At:       time.Now(),
		}
		if !m.beginAttempt(info) {
			return
		}

		dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
		conn, err := m.transport.Dial(dialCtx, endpoint)
		cancel()

		var closeErr error
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			terr := &TransportError{Op: "dial", Endpoint: endpoint, Err: err}
			logs.Warnf("session.Manager.supervise dial failed conn_id=%s attempt=%d endpoint=%q err=%v", info.ID, info.Attempt, endpoint, err)
			m.emit(event{kind: eventError, info: info, err: terr})
			closeErr = terr
		} else {
			if !m.markOpen(conn, info) {
				_ = conn.Close()
				return
			}
			failures = 0
			logs.Infof("session.Manager.supervise open conn_id=%s endpoint=%q transport=%s", info.ID, endpoint, m.transport.Name())
			m.emit(event{kind: eventOpen, info: info})

			readErr := m.readLoop(conn, info)
			m.mu.Lock()
			if m.conn == conn {
				m.conn = nil
			}
			m.mu.Unlock()
			_ = conn.Close()

			if ctx.Err() != nil {
				m.emit(event{kind: eventClose, info: info})
				return
			}
			if readErr != nil && !errors.Is(readErr, ErrClosedByPeer) {
				terr := &TransportError{Op: "read", Endpoint: endpoint, Err: readErr}
				logs.Warnf("session.Manager.supervise read failed conn_id=%s err=%v", info.ID, readErr)
				m.emit(event{kind: eventError, info: info, err: terr})
				closeErr = terr
			} else {
				closeErr = readErr
				logs.Infof("session.Manager.supervise closed conn_id=%s err=%v", info.ID, readErr)
			}
		}

		m.setState(StateDisconnected, errString(closeErr))
		m.emit(event{kind: eventClose, info: info, err: closeErr})

		if m.cfg.MaxConnectAttempts > 0 && failures >= m.cfg.MaxConnectAttempts {
			logs.Errf("session.Manager.supervise giving up endpoint=%q failures=%d", endpoint, failures)
			m.setState(StateDisconnected, ErrRetriesSpent.Error())
			return
		}

		delay := m.cfg.ReconnectDelay
		observability.RecordReconnectScheduled()
		logs.Infof("session.Manager.supervise reconnect scheduled endpoint=%q delay=%s", endpoint, delay)
		select {
		case <-ctx.Done():
			return
		case <-m.after(delay):
		}
	}
}

func (m *Manager) readLoop(conn Conn, info ConnInfo) error {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := decodeInbound(mt, data)
		if err != nil {
			observability.RecordDecodeError()
			logs.Warnf("session.Manager.readLoop drop conn_id=%s type=%s bytes=%d err=%v", info.ID, mt, len(data), err)
			continue
		}
		observability.RecordMessageIn(kindLabel(msg.Kind()))
		m.emit(event{kind: eventMessage, info: info, msg: msg})
	}
}

// decodeInbound treats binary messages as frames and text messages as bare
// JSON payloads.
func decodeInbound(mt MessageType, data []byte) (protocol.Message, error) {
	if mt == MessageBinary {
		return protocol.DecodeFrame(data)
	}
	return protocol.DecodePayload(data)
}

// kindLabel folds unrecognised kinds into one metric label.
func kindLabel(k protocol.Kind) string {
	if !k.Known() {
		return "unknown"
	}
	return k.String()
}

func (m *Manager) dispatch(events <-chan event, done chan struct{}) {
	defer close(done)
	for ev := range events {
		switch ev.kind {
		case eventOpen:
			m.listener.OnOpen(ev.info)
		case eventMessage:
			m.listener.OnMessage(ev.info, ev.msg)
		case eventError:
			m.listener.OnError(ev.info, ev.err)
		case eventClose:
			m.listener.OnClose(ev.info, ev.err)
		}
	}
}

func (m *Manager) emit(ev event) {
	m.events <- ev
}

func (m *Manager) beginAttempt(info ConnInfo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.info = info
	m.setStateLocked(StateConnecting, m.lastErr)
	return true
}

func (m *Manager) markOpen(conn Conn, info ConnInfo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.conn = conn
	m.info = info
	m.setStateLocked(StateOpen, "")
	return true
}

func (m *Manager) setState(s State, lastErr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed && s != StateDisconnected {
		return
	}
	m.setStateLocked(s, lastErr)
}

func (m *Manager) setStateLocked(s State, lastErr string) {
	if m.state != s {
		m.since = time.Now()
	}
	m.state = s
	m.lastErr = lastErr
	observability.RecordConnectionState(s.String())
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
