package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/wxdash/internal/dispatch"
	"github.com/danmuck/wxdash/internal/protocol/session"
)

const DefaultClientEndpoint = "ws://localhost:8081"

// ClientFileConfig is the on-disk shape of the telemetry client config.
// Durations are Go duration strings ("3s", "10000ms").
type ClientFileConfig struct {
	Endpoint              string `toml:"endpoint"`
	ReconnectDelay        string `toml:"reconnect_delay"`
	RefreshInterval       string `toml:"refresh_interval"`
	ConnectTimeout        string `toml:"connect_timeout"`
	WriteTimeout          string `toml:"write_timeout"`
	TLSCAFile             string `toml:"tls_ca_file"`
	TLSInsecureSkipVerify bool   `toml:"tls_insecure_skip_verify"`
	TLSServerName         string `toml:"tls_server_name"`
	MaxConnectAttempts    int    `toml:"max_connect_attempts"`
}

// ClientConfig is the resolved client runtime config.
type ClientConfig struct {
	Endpoint        string
	RefreshInterval time.Duration
	Session         session.Config
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:        DefaultClientEndpoint,
		RefreshInterval: dispatch.DefaultRefreshInterval,
		Session:         session.DefaultConfig(),
	}
}

// LoadClientConfig overlays the keys present in path onto
// DefaultClientConfig. Unknown keys are rejected.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	var raw ClientFileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ClientConfig{}, fmt.Errorf("load client config: unknown keys %v", undecoded)
	}

	if meta.IsDefined("endpoint") {
		cfg.Endpoint = strings.TrimSpace(raw.Endpoint)
	}
	if meta.IsDefined("reconnect_delay") {
		d, err := ParseDuration("reconnect_delay", raw.ReconnectDelay)
		if err != nil {
			return ClientConfig{}, err
		}
		cfg.Session.ReconnectDelay = d
	}
	if meta.IsDefined("refresh_interval") {
		d, err := ParseDuration("refresh_interval", raw.RefreshInterval)
		if err != nil {
			return ClientConfig{}, err
		}
		cfg.RefreshInterval = d
	}
	if meta.IsDefined("connect_timeout") {
		d, err := ParseDuration("connect_timeout", raw.ConnectTimeout)
		if err != nil {
			return ClientConfig{}, err
		}
		cfg.Session.ConnectTimeout = d
		cfg.Session.HandshakeTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := ParseDuration("write_timeout", raw.WriteTimeout)
		if err != nil {
			return ClientConfig{}, err
		}
		cfg.Session.WriteTimeout = d
	}
	if meta.IsDefined("max_connect_attempts") {
		if raw.MaxConnectAttempts < 0 {
			return ClientConfig{}, fmt.Errorf("max_connect_attempts must be >= 0")
		}
		cfg.Session.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("tls_ca_file") {
		cfg.Session.TLS.CAFile = strings.TrimSpace(raw.TLSCAFile)
	}
	if meta.IsDefined("tls_server_name") {
		cfg.Session.TLS.ServerName = strings.TrimSpace(raw.TLSServerName)
	}
	if meta.IsDefined("tls_insecure_skip_verify") {
		cfg.Session.TLS.InsecureSkipVerify = raw.TLSInsecureSkipVerify
	}

	if err := cfg.Session.ValidateClientTransport(cfg.Endpoint); err != nil {
		return ClientConfig{}, fmt.Errorf("client config %s: %w", path, err)
	}
	return cfg, nil
}
