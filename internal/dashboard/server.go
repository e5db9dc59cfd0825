// Package dashboard serves the station dashboard over HTTP: snapshots of the
// cache, user actions, a live event stream, and health and metrics probes.
package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/danmuck/wxdash/internal/bus"
	"github.com/danmuck/wxdash/internal/client"
	"github.com/danmuck/wxdash/internal/config"
	logs "github.com/danmuck/wxdash/internal/logging"
	"github.com/danmuck/wxdash/internal/observability"
	"github.com/danmuck/wxdash/internal/protocol"
	"github.com/danmuck/wxdash/internal/protocol/session"
)

const (
	Version          = "0.1.0"
	defaultKeepalive = 30 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// Backend is the session surface the dashboard drives.
type Backend interface {
	Connected() bool
	Status() session.Status
	Stations() []protocol.StationInfo
	Readings() []client.StationView
	Reading(id int) (client.StationView, bool)
	DeleteStation(id int) bool
	RefreshSelected(ctx context.Context, ids []int) error
	RequestStationList(ctx context.Context) error
}

type Option func(*Server)

// WithKeepalive sets the idle comment interval on /events.
func WithKeepalive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepalive = d
		}
	}
}

type Server struct {
	cfg       config.DashboardConfig
	backend   Backend
	bus       bus.MessageBus
	logger    zerolog.Logger
	router    *gin.Engine
	started   time.Time
	keepalive time.Duration
}

func New(cfg config.DashboardConfig, backend Backend, b bus.MessageBus, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		backend:   backend,
		bus:       b,
		logger:    logger,
		started:   time.Now(),
		keepalive: defaultKeepalive,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(s.logger, "/health", "/ready", "/metrics", "/events"))
	r.Use(observability.RequestMetricsMiddleware(s.cfg.Name))
	if len(s.cfg.CorsOrigins) > 0 {
		r.Use(cors.New(corsConfig(s.cfg.CorsOrigins)))
	}
	s.registerRoutes(r)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// Handler exposes the router for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on cfg.Addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts end with ctx so /events streams unblock shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		logs.Infof("dashboard.Server.Run listening name=%s addr=%s", s.cfg.Name, s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logs.Infof("dashboard.Server.Run shutting down addr=%s", s.cfg.Addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
