// Package config defines process configuration and its loading.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and GAZE_ environment variables.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"

	"github.com/okian/gazetrack/internal/domain/detect"
	"github.com/okian/gazetrack/internal/tracker"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Tracker names the device kind: eyetribe, dummy, eyelink, smi, tobii.
	Tracker string `koanf:"tracker"`

	// Host and Port locate a network tracker.
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// QueueSize bounds the producer/consumer hand-off queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeWindow is how many recent device timestamps are remembered.
	DedupeWindow int `koanf:"dedupe_window"`

	// LogFile is the data log path. Empty disables the data log.
	LogFile string `koanf:"log_file"`

	// Display geometry.
	ScreenResW        int     `koanf:"screen_res_w"`
	ScreenResH        int     `koanf:"screen_res_h"`
	ScreenWidthCm     float64 `koanf:"screen_width_cm"`
	ViewingDistanceCm float64 `koanf:"viewing_distance_cm"`

	// SampleRate is used by trackers that do not report their own.
	SampleRate int `koanf:"sample_rate"`

	// Event detection, in degrees of visual angle.
	SaccadeVelocityThreshold     float64 `koanf:"saccade_velocity_threshold"`
	SaccadeAccelerationThreshold float64 `koanf:"saccade_acceleration_threshold"`
	FixationThreshold            float64 `koanf:"fixation_threshold"`
	WeightFactor                 float64 `koanf:"weight_factor"`

	// FixationPolicy overrides the tracker's default policy when set:
	// euclidean or per_axis.
	FixationPolicy string `koanf:"fixation_policy"`

	// NoiseX and NoiseY seed the detector until a calibration measures them.
	NoiseX float64 `koanf:"noise_x"`
	NoiseY float64 `koanf:"noise_y"`

	// Device proxy timing.
	GraceMS       int `koanf:"grace_ms"`
	MaxWaitMS     int `koanf:"max_wait_ms"`
	DialTimeoutMS int `koanf:"dial_timeout_ms"`

	// MetricsRefreshMS is how often the session gauges are refreshed.
	MetricsRefreshMS int `koanf:"metrics_refresh_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                     "info",
		LogFormat:                    "text",
		Addr:                         ":9080",
		Tracker:                      "eyetribe",
		Host:                         tracker.DefaultHost,
		Port:                         tracker.DefaultPort,
		QueueSize:                    64,
		DedupeWindow:                 64,
		ScreenResW:                   tracker.DefaultScreenW,
		ScreenResH:                   tracker.DefaultScreenH,
		ScreenWidthCm:                39.9,
		ViewingDistanceCm:            57,
		SampleRate:                   tracker.DefaultSampleRate,
		SaccadeVelocityThreshold:     35,
		SaccadeAccelerationThreshold: 9500,
		FixationThreshold:            1.5,
		WeightFactor:                 10,
		GraceMS:                      5,
		MaxWaitMS:                    500,
		DialTimeoutMS:                3000,
		MetricsRefreshMS:             5000,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if _, err := tracker.ParseKind(c.Tracker); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.FixationPolicy != "" {
		if _, err := detect.ParseFixationPolicy(c.FixationPolicy); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	switch {
	case c.ScreenResW <= 0 || c.ScreenResH <= 0:
		return fmt.Errorf("%w: screen resolution %dx%d", ErrInvalidConfig, c.ScreenResW, c.ScreenResH)
	case c.ScreenWidthCm <= 0:
		return fmt.Errorf("%w: screen width %.1fcm", ErrInvalidConfig, c.ScreenWidthCm)
	case c.ViewingDistanceCm <= 0:
		return fmt.Errorf("%w: viewing distance %.1fcm", ErrInvalidConfig, c.ViewingDistanceCm)
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue size %d", ErrInvalidConfig, c.QueueSize)
	case c.MetricsRefreshMS <= 0:
		return fmt.Errorf("%w: metrics refresh %dms", ErrInvalidConfig, c.MetricsRefreshMS)
	case c.NoiseX < 0 || c.NoiseY < 0:
		return fmt.Errorf("%w: negative noise", ErrInvalidConfig)
	}
	return nil
}
