// Package client owns one telemetry session: the connection manager, the
// station cache and name index, request dispatch, and the refresh loop.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/danmuck/wxdash/internal/bus"
	"github.com/danmuck/wxdash/internal/cache"
	"github.com/danmuck/wxdash/internal/dispatch"
	logs "github.com/danmuck/wxdash/internal/logging"
	"github.com/danmuck/wxdash/internal/observability"
	"github.com/danmuck/wxdash/internal/protocol"
	"github.com/danmuck/wxdash/internal/protocol/session"
)

// Observer is notified after the cache or name index changes. Callbacks run
// on the session's event goroutine and must not block.
type Observer interface {
	StationListUpdated(stations []protocol.StationInfo)
	WeatherUpdated(stationID int, reading protocol.WeatherReading)
}

type Config struct {
	Endpoint        string
	RefreshInterval time.Duration
	Session         session.Config
}

// StatusEvent is published on bus.TopicConnStatus.
type StatusEvent struct {
	State    string `json:"state"`
	ConnID   string `json:"connId,omitempty"`
	Endpoint string `json:"endpoint"`
	Error    string `json:"error,omitempty"`
}

// DeletedEvent is published on bus.TopicDeleted.
type DeletedEvent struct {
	StationID int `json:"stationId"`
}

// StationView is a cached reading joined with its display name.
type StationView struct {
	protocol.WeatherReading
	Name string `json:"stationName,omitempty"`
}

type Option func(*Session)

// WithBus publishes session notifications to b.
func WithBus(b bus.MessageBus) Option {
	return func(s *Session) { s.bus = b }
}

func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithManagerOptions forwards options to the connection manager.
func WithManagerOptions(opts ...session.Option) Option {
	return func(s *Session) { s.managerOpts = append(s.managerOpts, opts...) }
}

type Session struct {
	cfg         Config
	manager     *session.Manager
	cache       *cache.Cache
	names       *cache.NameIndex
	dispatcher  *dispatch.Dispatcher
	refresher   *dispatch.Refresher
	bus         bus.MessageBus
	managerOpts []session.Option
	observers   []Observer

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

func New(cfg Config, tr session.Transport, opts ...Option) *Session {
	s := &Session{
		cfg:   cfg,
		cache: cache.New(),
		names: cache.NewNameIndex(),
		ctx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.manager = session.NewManager(cfg.Session, tr, listener{s: s}, s.managerOpts...)
	s.dispatcher = dispatch.New(s.manager)
	s.refresher = dispatch.NewRefresher(s.dispatcher, s, cfg.RefreshInterval)
	return s
}

// Start connects to the configured endpoint. The session keeps reconnecting
// until ctx ends or Close is called. Calls after the first successful Start
// are no-ops.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return session.ErrManagerClosed
	}
	if s.cancel != nil {
		logs.Debugf("client.Session.Start ignored endpoint=%q already started", s.cfg.Endpoint)
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	if err := s.manager.Connect(runCtx, s.cfg.Endpoint); err != nil {
		cancel()
		return err
	}
	s.ctx, s.cancel = runCtx, cancel
	logs.Infof("client.Session.Start endpoint=%q refresh=%s", s.cfg.Endpoint, s.refresher.Interval())
	return nil
}

// Close stops the refresh loop and tears down the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	err := s.manager.Close()
	s.refresher.Stop()
	return err
}

// RefreshSelected requests weather data for ids.
func (s *Session) RefreshSelected(ctx context.Context, ids []int) error {
	return s.dispatcher.RequestWeatherData(ctx, ids)
}

// RequestStationList asks the server for the station list again.
func (s *Session) RequestStationList(ctx context.Context) error {
	return s.dispatcher.RequestStationList(ctx)
}

// DeleteStation drops a station from the cache. Deleting an unknown id is a
// no-op. The periodic refresh stops asking for it until it is selected again.
func (s *Session) DeleteStation(id int) bool {
	removed := s.cache.Delete(id)
	if removed {
		observability.SetCachedStations(s.cache.Len())
		s.publish(bus.TopicDeleted, DeletedEvent{StationID: id})
	}
	logs.Debugf("client.Session.DeleteStation station_id=%d removed=%t", id, removed)
	return removed
}

// ActiveStationIDs lists the cached stations.
func (s *Session) ActiveStationIDs() []int {
	return s.cache.ActiveStations()
}

func (s *Session) Stations() []protocol.StationInfo {
	return s.names.All()
}

func (s *Session) StationName(id int) (string, bool) {
	return s.names.Name(id)
}

// Readings returns every cached reading with its display name, by id.
func (s *Session) Readings() []StationView {
	snap := s.cache.Snapshot()
	out := make([]StationView, 0, len(snap))
	for _, r := range snap {
		out = append(out, s.view(r))
	}
	return out
}

func (s *Session) Reading(id int) (StationView, bool) {
	r, ok := s.cache.Get(id)
	if !ok {
		return StationView{}, false
	}
	return s.view(r), true
}

func (s *Session) view(r protocol.WeatherReading) StationView {
	name, _ := s.names.Name(r.StationID)
	return StationView{WeatherReading: r, Name: name}
}

func (s *Session) Status() session.Status {
	return s.manager.Status()
}

func (s *Session) Connected() bool {
	return s.manager.State() == session.StateOpen
}

// IsNotConnected reports whether err came from sending outside an open
// connection.
func IsNotConnected(err error) bool {
	return errors.Is(err, session.ErrNotConnected)
}

func (s *Session) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Session) handleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.StationList:
		added := s.names.Merge(m.Stations)
		known := s.names.Len()
		observability.SetKnownStations(known)
		logs.Infof("client.Session.handleMessage station_list stations=%d added=%d known=%d", len(m.Stations), added, known)
		stations := s.names.All()
		for _, o := range s.observers {
			o.StationListUpdated(stations)
		}
		s.publish(bus.TopicStations, stations)
	case protocol.WeatherData:
		r := m.Reading
		s.cache.Save(r)
		observability.SetCachedStations(s.cache.Len())
		logs.Debugf("client.Session.handleMessage weather station_id=%d temp=%.1f humidity=%.1f", r.StationID, r.Temperature, r.Humidity)
		for _, o := range s.observers {
			o.WeatherUpdated(r.StationID, r)
		}
		s.publish(bus.TopicWeather, s.view(r))
	case protocol.Unknown:
		logs.Debugf("client.Session.handleMessage ignore kind=%d bytes=%d", int(m.Code), len(m.Raw))
	}
}

func (s *Session) publish(topic string, msg any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(topic, msg)
}

func (s *Session) publishStatus(state session.State, info session.ConnInfo, err error) {
	ev := StatusEvent{State: state.String(), ConnID: info.ID, Endpoint: info.Endpoint}
	if err != nil {
		ev.Error = err.Error()
	}
	s.publish(bus.TopicConnStatus, ev)
}

// listener adapts connection events to session behavior.
type listener struct {
	s *Session
}

func (l listener) OnOpen(info session.ConnInfo) {
	s := l.s
	ctx := s.runContext()
	if err := s.dispatcher.RequestStationList(ctx); err != nil {
		logs.Warnf("client.Session.OnOpen station list conn_id=%s err=%v", info.ID, err)
	}
	s.refresher.Start(ctx)
	s.publishStatus(session.StateOpen, info, nil)
}

func (l listener) OnMessage(_ session.ConnInfo, msg protocol.Message) {
	l.s.handleMessage(msg)
}

func (l listener) OnError(info session.ConnInfo, err error) {
	logs.Warnf("client.Session.OnError conn_id=%s attempt=%d err=%v", info.ID, info.Attempt, err)
}

func (l listener) OnClose(info session.ConnInfo, err error) {
	l.s.refresher.Stop()
	l.s.publishStatus(session.StateDisconnected, info, err)
}
