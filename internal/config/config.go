package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultDashboardName = "wxdash"
	DefaultDashboardAddr = ":8080"
)

// DashboardConfig configures the HTTP dashboard.
type DashboardConfig struct {
	Name        string   `toml:"name"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

func LoadDashboardConfig(path string) (DashboardConfig, error) {
	var cfg DashboardConfig
	if err := loadToml(path, &cfg); err != nil {
		return DashboardConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = DefaultDashboardName
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultDashboardAddr
	}
	cfg.CorsOrigins = normalizeOrigins(cfg.CorsOrigins)
	if err := ValidateDashboardConfig(cfg); err != nil {
		return DashboardConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateDashboardConfig(cfg DashboardConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("dashboard config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("dashboard config missing addr")
	}
	for i, origin := range cfg.CorsOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("cors_origins[%d] invalid: %q", i, origin)
		}
	}
	return nil
}

// ParseDuration parses a positive duration field.
func ParseDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", field)
	}
	return d, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		v := strings.TrimSpace(o)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
