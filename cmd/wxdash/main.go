package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/danmuck/wxdash/internal/bus"
	"github.com/danmuck/wxdash/internal/client"
	"github.com/danmuck/wxdash/internal/config"
	"github.com/danmuck/wxdash/internal/dashboard"
	logs "github.com/danmuck/wxdash/internal/logging"
	"github.com/danmuck/wxdash/internal/observability"
	"github.com/danmuck/wxdash/internal/protocol/session"
)

func main() {
	clientPath := flag.String("config", "", "client config path (optional)")
	dashPath := flag.String("dashboard", "", "dashboard config path (optional)")
	endpoint := flag.String("endpoint", "", "telemetry endpoint, overrides config")
	flag.Parse()

	logs.ConfigureRuntime()
	if err := run(*clientPath, *dashPath, *endpoint); err != nil {
		fmt.Fprintf(os.Stderr, "wxdash: %v\n", err)
		os.Exit(1)
	}
}

func run(clientPath, dashPath, endpoint string) error {
	clientCfg := defaultClientConfig()
	if clientPath != "" {
		cfg, err := loadClientConfig(clientPath)
		if err != nil {
			return err
		}
		clientCfg = cfg
	}
	if ep := strings.TrimSpace(endpoint); ep != "" {
		clientCfg.Endpoint = ep
	}

	dashCfg := config.DashboardConfig{Name: config.DefaultDashboardName, Addr: config.DefaultDashboardAddr}
	if dashPath != "" {
		cfg, err := config.LoadDashboardConfig(dashPath)
		if err != nil {
			return err
		}
		dashCfg = cfg
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)

	transport, err := session.NewWebSocketTransport(clientCfg.Session)
	if err != nil {
		return err
	}
	events := bus.New()
	defer events.Close()

	sess := client.New(clientCfg, transport, client.WithBus(events))
	if err := sess.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logs.Warnf("wxdash.run session close err=%v", err)
		}
	}()

	dash := dashboard.New(dashCfg, sess, events, observability.InitLogger(dashCfg.Name))
	logs.Infof("wxdash.run ready endpoint=%q dashboard=%s", clientCfg.Endpoint, dashCfg.Addr)
	if err := dash.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logs.Infof("wxdash.run stopped")
	return nil
}
