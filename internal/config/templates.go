package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	KindClient    = "client"
	KindDashboard = "dashboard"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindClient:
		return clientTemplate, nil
	case KindDashboard:
		return dashboardTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

// DefaultPath is the example config of kind shipped with cmd/wxdash,
// relative to the repository root.
func DefaultPath(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindClient:
		return "cmd/wxdash/ex.client.toml", nil
	case KindDashboard:
		return "cmd/wxdash/ex.dashboard.toml", nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads the file at path as kind, with the same loader the
// binaries use.
func Validate(kind, path string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindClient:
		_, err := LoadClientConfig(path)
		return err
	case KindDashboard:
		_, err := LoadDashboardConfig(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

const clientTemplate = `endpoint = "ws://localhost:8081"
reconnect_delay = "3000ms"
refresh_interval = "10000ms"
connect_timeout = "5s"
write_timeout = "10s"
max_connect_attempts = 0

# wss:// endpoints only
# tls_ca_file = "ca.pem"
# tls_server_name = "weather.example.org"
# tls_insecure_skip_verify = false
`

const dashboardTemplate = `name = "wxdash"
addr = ":8080"
cors_origins = ["http://localhost:3000"]
`
