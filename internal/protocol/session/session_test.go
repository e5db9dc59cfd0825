package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/wxdash/internal/protocol"
	"github.com/danmuck/wxdash/internal/testutil/testlog"
	"github.com/danmuck/wxdash/internal/testutil/tlstest"
	"github.com/danmuck/wxdash/internal/testutil/wstest"
)

func TestDefaultReconnectDelayIsFixed(t *testing.T) {
	testlog.Start(t)
	if got := DefaultConfig().ReconnectDelay; got != 3*time.Second {
		t.Fatalf("default reconnect delay got=%v want 3s", got)
	}
	if got := (Config{}).WithDefaults().ReconnectDelay; got != 3*time.Second {
		t.Fatalf("zero reconnect delay not defaulted: %v", got)
	}
	if got := (Config{ReconnectDelay: time.Second}).WithDefaults().ReconnectDelay; got != time.Second {
		t.Fatalf("explicit reconnect delay overwritten: %v", got)
	}
}

func TestValidateEndpoint(t *testing.T) {
	testlog.Start(t)
	good := []string{"ws://localhost:8081", "wss://example.org:8081/feed", "ws://10.0.0.1"}
	for _, ep := range good {
		if err := ValidateEndpoint(ep); err != nil {
			t.Fatalf("%q: unexpected err %v", ep, err)
		}
	}
	bad := []string{"", "http://localhost:8081", "ws://", "ws://host:", "://x"}
	for _, ep := range bad {
		if err := ValidateEndpoint(ep); !errors.Is(err, ErrInvalidEndpoint) {
			t.Fatalf("%q: expected ErrInvalidEndpoint got %v", ep, err)
		}
	}
}

func TestValidateClientTransportTLS(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.TLS.ServerName = "wx.local"
	if err := cfg.ValidateClientTransport("ws://localhost:8081"); !errors.Is(err, ErrTLSRequiresWSS) {
		t.Fatalf("expected ErrTLSRequiresWSS got %v", err)
	}
	if err := cfg.ValidateClientTransport("wss://localhost:8081"); err != nil {
		t.Fatalf("wss should pass: %v", err)
	}
	cfg.TLS.CAFile = "/tmp/ca.pem"
	cfg.TLS.InsecureSkipVerify = true
	if err := cfg.ValidateClientTransport("wss://localhost:8081"); !errors.Is(err, ErrTLSConflictingTrust) {
		t.Fatalf("expected ErrTLSConflictingTrust got %v", err)
	}
}

// fakeConn is an in-memory Conn. Inbound messages are pushed by the test.
type fakeConn struct {
	inbound chan fakeMsg
	closed  chan struct{}
	once    sync.Once

	mu     sync.Mutex
	writes [][]byte
}

type fakeMsg struct {
	mt   MessageType
	data []byte
	err  error
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan fakeMsg, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (MessageType, []byte, error) {
	select {
	case m := <-c.inbound:
		return m.mt, m.data, m.err
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(_ context.Context, _ MessageType, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("write on closed connection")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) drop(err error) {
	c.inbound <- fakeMsg{err: err}
}

// fakeTransport hands out queued dial results in order.
type fakeTransport struct {
	mu      sync.Mutex
	results []dialResult
	dials   chan string
}

type dialResult struct {
	conn *fakeConn
	err  error
}

func newFakeTransport(results ...dialResult) *fakeTransport {
	return &fakeTransport{results: results, dials: make(chan string, 32)}
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Dial(ctx context.Context, endpoint string) (Conn, error) {
	f.dials <- endpoint
	f.mu.Lock()
	if len(f.results) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	r := f.results[0]
	f.results = f.results[1:]
	f.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.conn, nil
}

// manualClock records requested delays and releases them on demand.
type manualClock struct {
	delays chan time.Duration
	fire   chan time.Time
}

func newManualClock() *manualClock {
	return &manualClock{delays: make(chan time.Duration, 16), fire: make(chan time.Time)}
}

func (c *manualClock) After(d time.Duration) <-chan time.Time {
	c.delays <- d
	return c.fire
}

type recorder struct {
	events chan string
	msgs   chan protocol.Message
	errs   chan error
}

func newRecorder() *recorder {
	return &recorder{
		events: make(chan string, 64),
		msgs:   make(chan protocol.Message, 64),
		errs:   make(chan error, 64),
	}
}

func (r *recorder) listener() Listener {
	return ListenerFuncs{
		Open: func(ConnInfo) { r.events <- "open" },
		Message: func(_ ConnInfo, m protocol.Message) {
			r.events <- "message"
			r.msgs <- m
		},
		Error: func(_ ConnInfo, err error) {
			r.events <- "error"
			r.errs <- err
		},
		Close: func(ConnInfo, error) { r.events <- "close" },
	}
}

func expectEvent(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("event got=%q want=%q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func expectDelay(t *testing.T, clock *manualClock, want time.Duration) {
	t.Helper()
	select {
	case got := <-clock.delays:
		if got != want {
			t.Fatalf("reconnect delay got=%v want=%v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for reconnect schedule")
	}
}

func TestManagerOpenMessageCloseOrder(t *testing.T) {
	testlog.Start(t)
	conn := newFakeConn()
	tr := newFakeTransport(dialResult{conn: conn})
	clock := newManualClock()
	rec := newRecorder()
	m := NewManager(DefaultConfig(), tr, rec.listener(), WithAfter(clock.After))
	defer m.Close()

	if err := m.Connect(context.Background(), "ws://localhost:8081"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	expectEvent(t, rec.events, "open")
	if m.State() != StateOpen {
		t.Fatalf("state got=%s want open", m.State())
	}

	conn.inbound <- fakeMsg{mt: MessageText, data: []byte(`{"kind":1,"stations":[{"stationId":1,"stationName":"A"}]}`)}
	expectEvent(t, rec.events, "message")
	msg := <-rec.msgs
	if _, ok := msg.(protocol.StationList); !ok {
		t.Fatalf("expected StationList got %T", msg)
	}

	conn.drop(ErrClosedByPeer)
	expectEvent(t, rec.events, "close")
	expectDelay(t, clock, 3*time.Second)
	if m.State() != StateDisconnected {
		t.Fatalf("state got=%s want disconnected", m.State())
	}
}

func TestManagerReconnectsAfterFixedDelay(t *testing.T) {
	testlog.Start(t)
	first, second := newFakeConn(), newFakeConn()
	tr := newFakeTransport(
		dialResult{conn: first},
		dialResult{err: errors.New("connection refused")},
		dialResult{conn: second},
	)
	clock := newManualClock()
	rec := newRecorder()
	m := NewManager(DefaultConfig(), tr, rec.listener(), WithAfter(clock.After))
	defer m.Close()

	if err := m.Connect(context.Background(), "ws://localhost:8081"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	expectEvent(t, rec.events, "open")

	first.drop(errors.New("connection reset"))
	expectEvent(t, rec.events, "error")
	var terr *TransportError
	if err := <-rec.errs; !errors.As(err, &terr) || terr.Op != "read" {
		t.Fatalf("expected read TransportError got %v", err)
	}
	expectEvent(t, rec.events, "close")
	expectDelay(t, clock, 3*time.Second)
	clock.fire <- time.Now()

	expectEvent(t, rec.events, "error")
	if err := <-rec.errs; !errors.As(err, &terr) || terr.Op != "dial" {
		t.Fatalf("expected dial TransportError got %v", err)
	}
	expectEvent(t, rec.events, "close")
	expectDelay(t, clock, 3*time.Second)
	clock.fire <- time.Now()

	expectEvent(t, rec.events, "open")
	if got := len(tr.dials); got != 3 {
		t.Fatalf("dials got=%d want 3", got)
	}
}

func TestManagerConnectWhileRunningIsNoop(t *testing.T) {
	testlog.Start(t)
	tr := newFakeTransport(dialResult{conn: newFakeConn()})
	rec := newRecorder()
	m := NewManager(DefaultConfig(), tr, rec.listener(), WithAfter(newManualClock().After))
	defer m.Close()

	ctx := context.Background()
	if err := m.Connect(ctx, "ws://localhost:8081"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	expectEvent(t, rec.events, "open")
	if err := m.Connect(ctx, "ws://localhost:8081"); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := len(tr.dials); got != 1 {
		t.Fatalf("dials got=%d want 1", got)
	}
}

func TestManagerSendRequiresOpen(t *testing.T) {
	testlog.Start(t)
	m := NewManager(DefaultConfig(), newFakeTransport(), nil)
	err := m.Send(context.Background(), []byte{0, 0})
	var nce *NotConnectedError
	if !errors.As(err, &nce) || !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected NotConnectedError got %v", err)
	}
	if nce.State != StateDisconnected {
		t.Fatalf("state got=%s", nce.State)
	}
}

func TestManagerSendWritesBinary(t *testing.T) {
	testlog.Start(t)
	conn := newFakeConn()
	rec := newRecorder()
	m := NewManager(DefaultConfig(), newFakeTransport(dialResult{conn: conn}), rec.listener(), WithAfter(newManualClock().After))
	defer m.Close()
	if err := m.Connect(context.Background(), "ws://localhost:8081"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	expectEvent(t, rec.events, "open")

	b, err := protocol.EncodeRequest(protocol.StationListRequest())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := m.Send(context.Background(), b); err != nil {
		t.Fatalf("send: %v", err)
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.writes) != 1 || string(conn.writes[0]) != string(b) {
		t.Fatalf("writes got=%q", conn.writes)
	}
}

func TestManagerDropsUndecodableMessages(t *testing.T) {
	testlog.Start(t)
	conn := newFakeConn()
	rec := newRecorder()
	m := NewManager(DefaultConfig(), newFakeTransport(dialResult{conn: conn}), rec.listener(), WithAfter(newManualClock().After))
	defer m.Close()
	if err := m.Connect(context.Background(), "ws://localhost:8081"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	expectEvent(t, rec.events, "open")

	conn.inbound <- fakeMsg{mt: MessageText, data: []byte(`not json`)}
	conn.inbound <- fakeMsg{mt: MessageText, data: []byte(`{"kind":99}`)}
	expectEvent(t, rec.events, "message")
	msg := <-rec.msgs
	u, ok := msg.(protocol.Unknown)
	if !ok || u.Code != 99 {
		t.Fatalf("expected Unknown(99) got %#v", msg)
	}
	if m.State() != StateOpen {
		t.Fatalf("bad payload should not close the connection, state=%s", m.State())
	}
}

func TestManagerGivesUpAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.MaxConnectAttempts = 2
	tr := newFakeTransport(
		dialResult{err: errors.New("refused")},
		dialResult{err: errors.New("refused")},
	)
	clock := newManualClock()
	rec := newRecorder()
	m := NewManager(cfg, tr, rec.listener(), WithAfter(clock.After))
	defer m.Close()

	if err := m.Connect(context.Background(), "ws://localhost:8081"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	expectEvent(t, rec.events, "error")
	expectEvent(t, rec.events, "close")
	expectDelay(t, clock, 3*time.Second)
	clock.fire <- time.Now()
	expectEvent(t, rec.events, "error")
	expectEvent(t, rec.events, "close")

	deadline := time.Now().Add(2 * time.Second)
	for m.Status().LastError != ErrRetriesSpent.Error() {
		if time.Now().After(deadline) {
			t.Fatalf("status got=%+v", m.Status())
		}
		time.Sleep(10 * time.Millisecond)
	}
	select {
	case d := <-clock.delays:
		t.Fatalf("unexpected reconnect scheduled after giving up: %v", d)
	default:
	}
}

func TestManagerCloseIsFinal(t *testing.T) {
	testlog.Start(t)
	conn := newFakeConn()
	rec := newRecorder()
	m := NewManager(DefaultConfig(), newFakeTransport(dialResult{conn: conn}), rec.listener(), WithAfter(newManualClock().After))
	if err := m.Connect(context.Background(), "ws://localhost:8081"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	expectEvent(t, rec.events, "open")
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	expectEvent(t, rec.events, "close")
	if m.State() != StateDisconnected {
		t.Fatalf("state got=%s", m.State())
	}
	if err := m.Connect(context.Background(), "ws://localhost:8081"); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("expected ErrManagerClosed got %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestManagerConnectRejectsBadEndpoint(t *testing.T) {
	testlog.Start(t)
	m := NewManager(DefaultConfig(), newFakeTransport(), nil)
	if err := m.Connect(context.Background(), "http://localhost"); !errors.Is(err, ErrInvalidEndpoint) {
		t.Fatalf("expected ErrInvalidEndpoint got %v", err)
	}
}

func TestWebSocketTransportRoundTrip(t *testing.T) {
	testlog.Start(t)
	srv := wstest.New(t, wstest.WithReply(func(req protocol.Request) [][]byte {
		if req.Kind != protocol.KindStationList {
			return nil
		}
		return [][]byte{[]byte(`{"kind":1,"stations":[{"stationId":4,"stationName":"Pier"}]}`)}
	}))

	cfg := DefaultConfig()
	tr, err := NewWebSocketTransport(cfg)
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	rec := newRecorder()
	m := NewManager(cfg, tr, rec.listener())
	defer m.Close()
	if err := m.Connect(context.Background(), srv.URL()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	expectEvent(t, rec.events, "open")

	b, err := protocol.EncodeRequest(protocol.StationListRequest())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := m.Send(context.Background(), b); err != nil {
		t.Fatalf("send: %v", err)
	}
	req, ok := srv.NextRequest(2 * time.Second)
	if !ok || req.Kind != protocol.KindStationList {
		t.Fatalf("server got=%+v ok=%v", req, ok)
	}
	expectEvent(t, rec.events, "message")
	list, ok := (<-rec.msgs).(protocol.StationList)
	if !ok || len(list.Stations) != 1 || list.Stations[0].StationName != "Pier" {
		t.Fatalf("unexpected reply %#v", list)
	}
}

func TestWebSocketTransportTLSWithCAFile(t *testing.T) {
	testlog.Start(t)
	ca := tlstest.NewAuthority(t, t.TempDir(), "wxdash-test-ca")
	srv := wstest.NewTLS(t, ca.ServerTLS(t, "telemetry.test"))
	cfg := DefaultConfig()
	cfg.TLS.CAFile = ca.CAFile()
	cfg.TLS.ServerName = "telemetry.test"

	tr, err := NewWebSocketTransport(cfg)
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	rec := newRecorder()
	m := NewManager(cfg, tr, rec.listener())
	defer m.Close()
	if err := m.Connect(context.Background(), srv.URL()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	expectEvent(t, rec.events, "open")
	b, _ := protocol.EncodeRequest(protocol.WeatherDataRequest([]int{1, 2}))
	if err := m.Send(context.Background(), b); err != nil {
		t.Fatalf("send: %v", err)
	}
	req, ok := srv.NextRequest(2 * time.Second)
	if !ok || req.Kind != protocol.KindWeatherData || len(req.StationIDs) != 2 {
		t.Fatalf("server got=%+v ok=%v", req, ok)
	}
}

func TestWebSocketTransportTLSRejectsUnknownCA(t *testing.T) {
	testlog.Start(t)
	trusted := tlstest.NewAuthority(t, t.TempDir(), "trusted-ca")
	rogue := tlstest.NewAuthority(t, t.TempDir(), "rogue-ca")
	srv := wstest.NewTLS(t, rogue.ServerTLS(t, "telemetry.test"))

	cfg := DefaultConfig()
	cfg.TLS.CAFile = trusted.CAFile()
	cfg.TLS.ServerName = "telemetry.test"
	cfg.MaxConnectAttempts = 1
	tr, err := NewWebSocketTransport(cfg)
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	rec := newRecorder()
	m := NewManager(cfg, tr, rec.listener())
	defer m.Close()
	if err := m.Connect(context.Background(), srv.URL()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	expectEvent(t, rec.events, "error")
	var terr *TransportError
	if err := <-rec.errs; !errors.As(err, &terr) || terr.Op != "dial" {
		t.Fatalf("expected dial TransportError got %v", err)
	}
	expectEvent(t, rec.events, "close")
	if srv.Connections() != 0 {
		t.Fatalf("untrusted handshake should not reach the upgrader")
	}
}

func TestKindLabelFoldsUnknownKinds(t *testing.T) {
	testlog.Start(t)
	if got := kindLabel(protocol.KindStationList); got != "station_list" {
		t.Fatalf("station list label=%q", got)
	}
	if got := kindLabel(protocol.KindWeatherData); got != "weather_data" {
		t.Fatalf("weather label=%q", got)
	}
	if got := kindLabel(protocol.Kind(99)); got != "unknown" {
		t.Fatalf("kind 99 label=%q", got)
	}
}
