package session

import "time"

const (
	DefaultReconnectDelay = 3000 * time.Millisecond
	DefaultReadLimit      = 1 << 20
)

// TLSConfig applies to wss:// endpoints only.
type TLSConfig struct {
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
}

// Config defines connection and reconnect behavior.
type Config struct {
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
	// ReconnectDelay is the fixed wait between a close and the next dial.
	ReconnectDelay time.Duration
	// MaxConnectAttempts bounds consecutive failed dials; 0 retries forever.
	MaxConnectAttempts int
	TLS                TLSConfig
}

// DefaultConfig reconnects every 3s, forever.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadLimit:        DefaultReadLimit,
		ReconnectDelay:   DefaultReconnectDelay,
	}
}

// WithDefaults fills zero values from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = def.ReadLimit
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	if c.MaxConnectAttempts < 0 {
		c.MaxConnectAttempts = 0
	}
	return c
}
