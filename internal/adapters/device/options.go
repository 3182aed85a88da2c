package device

import (
	"time"

	"github.com/okian/gazetrack/internal/adapters/protocol"
	"github.com/okian/gazetrack/pkg/logger"
)

// Default proxy timing.
const (
	DefaultGrace      = 5 * time.Millisecond
	DefaultMaxWait    = 500 * time.Millisecond
	DefaultMaxPending = 256
)

// Option configures a Proxy.
type Option func(*Proxy)

// WithGrace sets how long to wait after sending before reading.
func WithGrace(d time.Duration) Option {
	return func(p *Proxy) {
		if d >= 0 {
			p.grace = d
		}
	}
}

// WithMaxWait bounds how long a single request waits for its response.
func WithMaxWait(d time.Duration) Option {
	return func(p *Proxy) {
		if d > 0 {
			p.maxWait = d
		}
	}
}

// WithMaxPending bounds the list of unmatched responses.
func WithMaxPending(n int) Option {
	return func(p *Proxy) {
		if n > 0 {
			p.maxPending = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Proxy) {
		if l != nil {
			p.log = l
		}
	}
}

// WithNotify registers a callback for unsolicited state-change messages.
// The callback runs while the proxy lock is held and must not call back
// into the proxy.
func WithNotify(fn func(protocol.Response)) Option {
	return func(p *Proxy) {
		p.notify = fn
	}
}
