package transport

import "time"

// Default connection settings.
const (
	DefaultDialTimeout = 3 * time.Second
	DefaultReadBuffer  = 32 * 1024
)

// Option configures a Conn.
type Option func(*Conn)

// WithDialTimeout bounds each dial attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithReadBuffer sets the size of a single read.
func WithReadBuffer(n int) Option {
	return func(c *Conn) {
		if n > 0 {
			c.readBuffer = n
		}
	}
}
