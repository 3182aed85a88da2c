package session

import (
	"time"

	"github.com/okian/gazetrack/internal/domain/calibration"
	"github.com/okian/gazetrack/internal/domain/detect"
	"github.com/okian/gazetrack/internal/tracker"
	"github.com/okian/gazetrack/pkg/clock"
	"github.com/okian/gazetrack/pkg/logger"
)

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithDevice sets the tracker. It is required.
func WithDevice(d tracker.Device) Option {
	return func(s *Session) { s.device = d }
}

// WithClock sets the experiment clock.
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogFile sets the data log path. Without it samples and messages are
// not written anywhere.
func WithLogFile(path string) Option {
	return func(s *Session) { s.logPath = path }
}

// WithQueueSize sets the capacity of the producer/consumer queue.
func WithQueueSize(size int) Option {
	return func(s *Session) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeWindow sets how many recent device timestamps are remembered.
func WithDedupeWindow(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.dedupeWindow = n
		}
	}
}

// WithGeometry sets the display geometry. A zero resolution or sample rate
// is taken from the device when it opens.
func WithGeometry(g calibration.Geometry) Option {
	return func(s *Session) { s.geometry = g }
}

// WithSettings sets the event detection settings. Settings.Policy is
// replaced at Start by the device default unless WithFixationPolicy is given.
func WithSettings(st calibration.Settings) Option {
	return func(s *Session) { s.settings = st }
}

// WithFixationPolicy overrides the device's default fixation policy.
func WithFixationPolicy(p detect.FixationPolicy) Option {
	return func(s *Session) {
		s.policy = p
		s.policySet = true
	}
}

// WithNoise seeds the detector noise until a calibration measures it.
func WithNoise(x, y float64) Option {
	return func(s *Session) {
		if x >= 0 && y >= 0 {
			s.noiseX, s.noiseY = x, y
		}
	}
}

// WithDisplay sets the display used for calibration targets.
func WithDisplay(d calibration.Display) Option {
	return func(s *Session) { s.display = d }
}

// WithKeyboard sets the keyboard used to abort calibration and drift checks.
func WithKeyboard(k calibration.Keyboard) Option {
	return func(s *Session) { s.keyboard = k }
}

// WithPointDwell sets how long each calibration target is shown.
func WithPointDwell(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pointDwell = d
		}
	}
}

// WithNoiseSamples sets how many samples the post-calibration noise
// measurement collects.
func WithNoiseSamples(n int) Option {
	return func(s *Session) {
		if n > 1 {
			s.noiseSamples = n
		}
	}
}

// WithLogger sets a custom logger for the session.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}
