package api

import (
	"net"
	"strconv"
	"time"
)

// Config configures the GraphQL HTTP server of one generation.
type Config struct {
	// Host is the bind address. Empty binds all interfaces.
	Host string

	// Port is the HTTP port. Zero picks an ephemeral port (tests).
	Port int

	// ReusePort sets SO_REUSEPORT so a new generation can bind the port
	// while the previous one is still draining.
	ReusePort bool

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 10s
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 60s
	IdleTimeout time.Duration

	// QueryTimeout bounds a single request, including its Cypher reads.
	// Default: 30s
	QueryTimeout time.Duration

	// MaxBodySize caps POST bodies in bytes.
	// Default: 1MiB
	MaxBodySize int64

	// Introspection allows __schema and __type queries
	Introspection bool

	// DefaultLimit caps list fields queried without a limit
	DefaultLimit int
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 30 * time.Second
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = 1 << 20
	}
}

func (c *Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
