package simtracker

import (
	"time"

	"github.com/okian/gazetrack/internal/domain/model"
)

// Defaults reported by the simulated device.
const (
	DefaultFrameRate         = 60
	DefaultHeartbeatInterval = 250 * time.Millisecond
	DefaultScreenW           = 1024
	DefaultScreenH           = 768
)

// Config holds the simulated device settings.
type Config struct {
	Addr              string        // listen address, "127.0.0.1:0" picks a free port
	FrameRate         int           // frames per second
	HeartbeatInterval time.Duration // interval reported to clients
	ScreenW           int
	ScreenH           int
	Gaze              Generator // gaze position per frame index
	Verbose           bool
}

// Stats counts what the simulator has served.
type Stats struct {
	Connections int
	Requests    int
	Frames      int
	Heartbeats  int
	Malformed   int
	Calibrated  int
}

// Generator returns the gaze position for frame n. A Missing position is
// served as a frame without gaze, the way the device reports a lost eye.
type Generator func(n int64) model.Position

// Option configures a Server.
type Option func(*Config)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(c *Config) {
		if addr != "" {
			c.Addr = addr
		}
	}
}

// WithFrameRate sets the frame rate.
func WithFrameRate(hz int) Option {
	return func(c *Config) {
		if hz > 0 {
			c.FrameRate = hz
		}
	}
}

// WithHeartbeatInterval sets the interval reported to clients. Zero
// disables heartbeats on the client side.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.HeartbeatInterval = d
		}
	}
}

// WithScreen sets the reported screen resolution.
func WithScreen(w, h int) Option {
	return func(c *Config) {
		if w > 0 && h > 0 {
			c.ScreenW, c.ScreenH = w, h
		}
	}
}

// WithGaze replaces the synthetic gaze generator.
func WithGaze(g Generator) Option {
	return func(c *Config) {
		if g != nil {
			c.Gaze = g
		}
	}
}

// WithScript serves the given positions in order and then repeats the last.
func WithScript(positions ...model.Position) Option {
	return WithGaze(func(n int64) model.Position {
		if len(positions) == 0 {
			return model.Missing
		}
		if n >= int64(len(positions)) {
			n = int64(len(positions)) - 1
		}
		return positions[n]
	})
}

// WithVerbose logs every request.
func WithVerbose(v bool) Option {
	return func(c *Config) { c.Verbose = v }
}
