package tracker

import (
	"github.com/okian/gazetrack/internal/adapters/device"
	"github.com/okian/gazetrack/internal/adapters/transport"
	"github.com/okian/gazetrack/pkg/clock"
	"github.com/okian/gazetrack/pkg/logger"
)

// Defaults for the network tracker and the dummy.
const (
	DefaultHost       = "localhost"
	DefaultPort       = 6555
	DefaultSampleRate = 60
	DefaultScreenW    = 1024
	DefaultScreenH    = 768
)

type config struct {
	host         string
	port         int
	transportOps []transport.Option
	proxyOps     []device.Option
	clock        clock.Clock
	log          logger.Logger
	mouse        Mouse
	screenW      int
	screenH      int
	sampleRate   int
	binding      Device
}

func defaultConfig() config {
	return config{
		host:       DefaultHost,
		port:       DefaultPort,
		clock:      clock.New(),
		log:        logger.Nop(),
		screenW:    DefaultScreenW,
		screenH:    DefaultScreenH,
		sampleRate: DefaultSampleRate,
	}
}

// Option configures New.
type Option func(*config)

// WithEndpoint sets the network tracker address.
func WithEndpoint(host string, port int) Option {
	return func(c *config) {
		if host != "" {
			c.host = host
		}
		if port > 0 {
			c.port = port
		}
	}
}

// WithTransportOptions passes options to the TCP transport.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(c *config) { c.transportOps = append(c.transportOps, opts...) }
}

// WithProxyOptions passes options to the device proxy.
func WithProxyOptions(opts ...device.Option) Option {
	return func(c *config) { c.proxyOps = append(c.proxyOps, opts...) }
}

// WithClock sets the experiment clock used to stamp samples.
func WithClock(clk clock.Clock) Option {
	return func(c *config) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMouse sets the mouse driving the dummy tracker.
func WithMouse(m Mouse) Option {
	return func(c *config) { c.mouse = m }
}

// WithScreen sets the dummy's display resolution.
func WithScreen(w, h int) Option {
	return func(c *config) {
		if w > 0 && h > 0 {
			c.screenW, c.screenH = w, h
		}
	}
}

// WithSampleRate sets the dummy's sample rate.
func WithSampleRate(hz int) Option {
	return func(c *config) {
		if hz > 0 {
			c.sampleRate = hz
		}
	}
}

// WithBinding supplies the vendor binding for EyeLink, SMI and Tobii.
func WithBinding(d Device) Option {
	return func(c *config) { c.binding = d }
}
