package transport_test

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/okian/gazetrack/internal/adapters/transport"
	. "github.com/smartystreets/goconvey/convey"
)

// echoServer accepts connections and echoes every line back.
func echoServer(t *testing.T) (host string, port int, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				r := bufio.NewReader(c)
				for {
					line, err := r.ReadBytes('\n')
					if err != nil {
						return
					}
					if _, err := c.Write(line); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, func() { _ = ln.Close() }
}

func receiveLine(c *transport.Conn) []byte {
	var out []byte
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		b, err := c.Receive(20 * time.Millisecond)
		if err != nil {
			return out
		}
		out = append(out, b...)
		if len(out) > 0 && out[len(out)-1] == '\n' {
			return out
		}
	}
	return out
}

func TestConn(t *testing.T) {
	Convey("Given an echo server", t, func() {
		host, port, stop := echoServer(t)
		defer stop()
		ctx := context.Background()

		c, err := transport.Dial(ctx, host, port, transport.WithDialTimeout(time.Second), transport.WithReadBuffer(1024))
		So(err, ShouldBeNil)
		defer c.Close()

		So(c.Addr(), ShouldEqual, net.JoinHostPort(host, strconv.Itoa(port)))

		Convey("When sending a line", func() {
			So(c.Send([]byte("{\"category\":\"heartbeat\"}\n")), ShouldBeNil)

			Convey("Then it is received back", func() {
				So(string(receiveLine(c)), ShouldEqual, "{\"category\":\"heartbeat\"}\n")
			})
		})

		Convey("When nothing arrives within the wait", func() {
			b, err := c.Receive(10 * time.Millisecond)

			Convey("Then Receive returns empty without an error", func() {
				So(err, ShouldBeNil)
				So(b, ShouldBeEmpty)
			})
		})

		Convey("When reconnecting twice on a healthy link", func() {
			So(c.Reconnect(ctx), ShouldBeNil)
			So(c.Reconnect(ctx), ShouldBeNil)

			Convey("Then the connection still works", func() {
				So(c.Send([]byte("ping\n")), ShouldBeNil)
				So(string(receiveLine(c)), ShouldEqual, "ping\n")
			})
		})

		Convey("When the connection is closed", func() {
			So(c.Close(), ShouldBeNil)
			So(c.Close(), ShouldBeNil)

			Convey("Then further use reports ErrClosed", func() {
				So(errors.Is(c.Send([]byte("x\n")), transport.ErrClosed), ShouldBeTrue)
				_, err := c.Receive(time.Millisecond)
				So(errors.Is(err, transport.ErrClosed), ShouldBeTrue)
				So(errors.Is(c.Reconnect(ctx), transport.ErrClosed), ShouldBeTrue)
			})
		})
	})

	Convey("Given nothing listening on the port", t, func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		So(err, ShouldBeNil)
		port := ln.Addr().(*net.TCPAddr).Port
		_ = ln.Close()

		_, err = transport.Dial(context.Background(), "127.0.0.1", port)

		Convey("Then Dial reports a connection error", func() {
			So(errors.Is(err, transport.ErrConnection), ShouldBeTrue)
		})
	})

	Convey("Given a server that goes away", t, func() {
		host, port, stop := echoServer(t)
		c, err := transport.Dial(context.Background(), host, port)
		So(err, ShouldBeNil)
		defer c.Close()
		stop()

		Convey("Then a failed reconnect leaves the link unusable until the next one", func() {
			err := c.Reconnect(context.Background())
			So(errors.Is(err, transport.ErrConnection), ShouldBeTrue)
			So(errors.Is(c.Send([]byte("x\n")), transport.ErrConnection), ShouldBeTrue)
		})
	})
}
