// Package transport keeps the TCP stream to a network eye tracker.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/okian/gazetrack/pkg/metrics"
)

// Conn is a reconnectable stream connection. Send and Receive may be called
// from different goroutines; Reconnect and Close exclude both.
type Conn struct {
	host        string
	port        int
	dialTimeout time.Duration
	readBuffer  int

	mu     sync.RWMutex
	conn   net.Conn
	closed bool
	buf    []byte
}

// Dial connects to host:port.
func Dial(ctx context.Context, host string, port int, opts ...Option) (*Conn, error) {
	c := &Conn{
		host:        host,
		port:        port,
		dialTimeout: DefaultDialTimeout,
		readBuffer:  DefaultReadBuffer,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.buf = make([]byte, c.readBuffer)

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

// Addr returns the remote address in host:port form.
func (c *Conn) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

func (c *Conn) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrConnection, c.Addr(), err)
	}
	return conn, nil
}

// Send writes b in full.
func (c *Conn) Send(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	if c.conn == nil {
		return errNotConnected
	}
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("%w: write: %v", ErrConnection, err)
	}
	return nil
}

// Receive returns whatever bytes arrive within wait. An empty result with a
// nil error means nothing arrived in time.
func (c *Conn) Receive(wait time.Duration) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.conn == nil {
		return nil, errNotConnected
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return nil, fmt.Errorf("%w: deadline: %v", ErrConnection, err)
	}
	n, err := c.conn.Read(c.buf)
	if n > 0 {
		out := make([]byte, n)
		copy(out, c.buf[:n])
		return out, nil
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read: %v", ErrConnection, err)
	}
	return nil, nil
}

// Reconnect closes the current socket and dials the same endpoint again.
func (c *Conn) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if c.conn != nil {
		_ = c.conn.Close()
	}
	conn, err := c.dial(ctx)
	if err != nil {
		c.conn = nil
		return err
	}
	c.conn = conn
	metrics.RecordReconnect()
	return nil
}

// Close closes the connection. Further calls return ErrClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
