package session

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

var (
	ErrInvalidEndpoint     = errors.New("session: invalid endpoint")
	ErrTLSRequiresWSS      = errors.New("session: tls settings require a wss endpoint")
	ErrTLSConflictingTrust = errors.New("session: ca file and insecure skip verify are exclusive")
)

// ValidateEndpoint accepts ws:// and wss:// URLs with a host.
func ValidateEndpoint(endpoint string) error {
	raw := strings.TrimSpace(endpoint)
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEndpoint)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	default:
		return fmt.Errorf("%w: scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}
	if port := u.Port(); port == "" && strings.HasSuffix(u.Host, ":") {
		return fmt.Errorf("%w: empty port", ErrInvalidEndpoint)
	}
	return nil
}

func isSecureEndpoint(endpoint string) bool {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, "wss")
}

func (c TLSConfig) configured() bool {
	return strings.TrimSpace(c.CAFile) != "" || strings.TrimSpace(c.ServerName) != "" || c.InsecureSkipVerify
}

// ValidateClientTransport checks the TLS settings against endpoint.
func (c Config) ValidateClientTransport(endpoint string) error {
	if err := ValidateEndpoint(endpoint); err != nil {
		return err
	}
	if c.TLS.configured() && !isSecureEndpoint(endpoint) {
		return ErrTLSRequiresWSS
	}
	if strings.TrimSpace(c.TLS.CAFile) != "" && c.TLS.InsecureSkipVerify {
		return ErrTLSConflictingTrust
	}
	return nil
}

func (c Config) clientTLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
		ServerName:         strings.TrimSpace(c.TLS.ServerName),
	}
	if caPath := strings.TrimSpace(c.TLS.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("session: parse tls ca bundle: %s", caPath)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}
