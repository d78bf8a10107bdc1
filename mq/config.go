// File: mq/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package mq

// Config holds all tunable parameters for connections and listeners.
type Config struct {
	// ChunkSize is the scratch-buffer size used when streaming payload
	// bytes between sockets and files.
	ChunkSize int
	// Backlog is the listen(2) queue depth.
	Backlog int
	// MaxMsgSize rejects inbound messages whose announced payload length
	// exceeds it. Zero means unlimited.
	MaxMsgSize int64
	// NoDelay disables Nagle batching on TCP sockets.
	NoDelay bool
}

// DefaultConfig returns a baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:  64 * 1024,
		Backlog:    128,
		MaxMsgSize: 0,
		NoDelay:    true,
	}
}

// Option customizes a connection or listener at creation time.
type Option func(*Config)

// WithChunkSize overrides the streaming scratch-buffer size.
func WithChunkSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.ChunkSize = n
		}
	}
}

// WithBacklog overrides the listen(2) backlog.
func WithBacklog(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Backlog = n
		}
	}
}

// WithMaxMsgSize caps inbound payload length; zero disables the cap.
func WithMaxMsgSize(n int64) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxMsgSize = n
		}
	}
}

// WithNoDelay toggles TCP_NODELAY on created sockets.
func WithNoDelay(enable bool) Option {
	return func(c *Config) {
		c.NoDelay = enable
	}
}

func applyOptions(opts []Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
