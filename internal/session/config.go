package session

import (
	"context"
	"net"
	"time"
)

const (
	// DefaultPort is the TV control port
	DefaultPort = 4123

	// DefaultKeepAliveInterval is the pause between keep-alive exchanges
	DefaultKeepAliveInterval = 20 * time.Second

	// DefaultDialTimeout bounds the TCP connect
	DefaultDialTimeout = 5 * time.Second

	// DefaultBufferSize is the size of the acknowledgement read buffer
	DefaultBufferSize = 2048
)

// DialFunc opens the control connection. net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Config holds session settings. Zero fields take the defaults.
type Config struct {
	// Port is used when the address passed to Open has no port
	Port int

	// KeepAliveInterval is the pause after each exchange before the next
	// keep-alive. A negative value disables the keep-alive task.
	KeepAliveInterval time.Duration

	// DialTimeout bounds the TCP connect (0 = default, negative = none)
	DialTimeout time.Duration

	// IOTimeout, when positive, is the deadline for one write+read exchange
	IOTimeout time.Duration

	// BufferSize is the maximum acknowledgement read per exchange
	BufferSize int

	// OnKeepAliveError is called once, from the keep-alive goroutine, when a
	// keep-alive exchange fails
	OnKeepAliveError func(error)

	// Dial replaces the default TCP dialer
	Dial DialFunc
}

// DefaultConfig returns the standard session settings
func DefaultConfig() *Config {
	return &Config{
		Port:              DefaultPort,
		KeepAliveInterval: DefaultKeepAliveInterval,
		DialTimeout:       DefaultDialTimeout,
		BufferSize:        DefaultBufferSize,
	}
}

// withDefaults returns a copy of c with zero fields filled in
func (c *Config) withDefaults() Config {
	var out Config
	if c != nil {
		out = *c
	}
	if out.Port <= 0 {
		out.Port = DefaultPort
	}
	if out.KeepAliveInterval == 0 {
		out.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if out.DialTimeout == 0 {
		out.DialTimeout = DefaultDialTimeout
	}
	if out.BufferSize <= 0 {
		out.BufferSize = DefaultBufferSize
	}
	if out.Dial == nil {
		out.Dial = (&net.Dialer{}).DialContext
	}
	return out
}
