package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRequestTimeout    = 10 * time.Second
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultReconnectDelay    = 10 * time.Second
	DefaultReconnectJitter   = 5 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultBatchSize         = 500
	DefaultFlushInterval     = 1 * time.Second
	DefaultBufferSize        = 10000
	DefaultHealthPort        = 8080
)

func (c *RecordConfig) applyDefaults() {
	// Endpoint defaults
	if c.Endpoint.RequestTimeout == 0 {
		c.Endpoint.RequestTimeout = DefaultRequestTimeout
	}
	if c.Endpoint.HeartbeatInterval == 0 {
		c.Endpoint.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Endpoint.ReconnectDelay == 0 {
		c.Endpoint.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Endpoint.ReconnectJitter == 0 {
		c.Endpoint.ReconnectJitter = DefaultReconnectJitter
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultBufferSize
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}
