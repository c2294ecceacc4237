package relink

import "time"

// Config configures a Conn.
type Config struct {
	URL               string        // WebSocket URL (required, e.g. wss://host/ws)
	RequestTimeout    time.Duration // Default deadline for Send when none is given
	HeartbeatInterval time.Duration // Interval between liveness probes
	ReconnectDelay    time.Duration // Fixed minimum wait before a reconnect attempt
	ReconnectJitter   time.Duration // Uniform random window added to ReconnectDelay
	HandshakeTimeout  time.Duration // WebSocket dial handshake timeout
	WriteTimeout      time.Duration // Write deadline for outbound frames
	BufferSize        int           // Inbound message channel buffer size
}

// DefaultConfig returns sensible defaults for the given URL.
func DefaultConfig(url string) Config {
	cfg := Config{URL: url}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 10 * time.Second
	}
	if c.ReconnectJitter == 0 {
		c.ReconnectJitter = 5 * time.Second
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.BufferSize == 0 {
		c.BufferSize = 256
	}
}
