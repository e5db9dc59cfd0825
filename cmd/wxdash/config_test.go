package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/wxdash/internal/config"
	"github.com/danmuck/wxdash/internal/protocol/session"
	"github.com/danmuck/wxdash/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadClientConfigExample(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadClientConfig("ex.client.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Endpoint != "wss://weather-station.cloudns.asia:8081" {
		t.Fatalf("unexpected endpoint: %q", cfg.Endpoint)
	}
	if cfg.Session.ReconnectDelay != 3*time.Second {
		t.Fatalf("unexpected reconnect delay: %v", cfg.Session.ReconnectDelay)
	}
	if cfg.RefreshInterval != 10*time.Second {
		t.Fatalf("unexpected refresh interval: %v", cfg.RefreshInterval)
	}
	if cfg.Session.ConnectTimeout != 4*time.Second {
		t.Fatalf("unexpected connect timeout: %v", cfg.Session.ConnectTimeout)
	}
	if cfg.Session.TLS.ServerName != "weather-station.cloudns.asia" {
		t.Fatalf("unexpected server name: %q", cfg.Session.TLS.ServerName)
	}
	if cfg.Session.MaxConnectAttempts != 0 {
		t.Fatalf("unexpected max attempts: %d", cfg.Session.MaxConnectAttempts)
	}
}

func TestLoadClientConfigKeepsDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadClientConfig(writeConfig(t, `endpoint = "ws://10.0.0.5:8081"`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	def := defaultClientConfig()
	if cfg.Endpoint != "ws://10.0.0.5:8081" {
		t.Fatalf("unexpected endpoint: %q", cfg.Endpoint)
	}
	if cfg.Session.ReconnectDelay != def.Session.ReconnectDelay || cfg.RefreshInterval != def.RefreshInterval {
		t.Fatalf("defaults overwritten: %+v", cfg)
	}
	if cfg.Session.WriteTimeout != def.Session.WriteTimeout {
		t.Fatalf("unexpected write timeout: %v", cfg.Session.WriteTimeout)
	}
}

func TestLoadClientConfigErrors(t *testing.T) {
	testlog.Start(t)
	if _, err := loadClientConfig(writeConfig(t, `reconnect_delay = "later"`)); err == nil {
		t.Fatalf("expected duration error")
	}
	if _, err := loadClientConfig(writeConfig(t, `endpoint_url = "ws://x"`)); err == nil {
		t.Fatalf("expected unknown key error")
	}
	_, err := loadClientConfig(writeConfig(t, "endpoint = \"ws://x:1\"\ntls_server_name = \"x\"\n"))
	if !errors.Is(err, session.ErrTLSRequiresWSS) {
		t.Fatalf("expected ErrTLSRequiresWSS got %v", err)
	}
	if _, err := loadClientConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestExampleConfigsPassValidation(t *testing.T) {
	testlog.Start(t)
	if err := config.Validate(config.KindClient, "ex.client.toml"); err != nil {
		t.Fatalf("client example: %v", err)
	}
	if err := config.Validate(config.KindDashboard, "ex.dashboard.toml"); err != nil {
		t.Fatalf("dashboard example: %v", err)
	}
}

func TestValidateAgreesWithLoader(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"typo key":         "endpoint = \"ws://10.0.0.5:8081\"\nrefresh_intervall = \"5s\"\n",
		"no endpoint":      "refresh_interval = \"5s\"\n",
		"bad duration":     "reconnect_delay = \"later\"\n",
		"tls on ws":        "endpoint = \"ws://x:1\"\ntls_server_name = \"x\"\n",
		"complete":         "endpoint = \"wss://x:8081\"\ntls_server_name = \"x\"\nmax_connect_attempts = 3\n",
		"negative retries": "max_connect_attempts = -1\n",
	}
	for name, body := range cases {
		path := writeConfig(t, body)
		_, loadErr := loadClientConfig(path)
		validateErr := config.Validate(config.KindClient, path)
		if (loadErr == nil) != (validateErr == nil) {
			t.Fatalf("%s: load err=%v validate err=%v", name, loadErr, validateErr)
		}
	}
}
