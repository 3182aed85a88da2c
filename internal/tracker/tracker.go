// Package tracker exposes eye trackers behind one capability interface. The
// concrete implementation is chosen once, by Kind, in New.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/gazetrack/internal/domain/detect"
	"github.com/okian/gazetrack/internal/domain/model"
)

// Info describes an opened device.
type Info struct {
	SampleRateHz      int
	HeartbeatInterval time.Duration // zero disables heartbeats
	ScreenW           int
	ScreenH           int
	BlinkFlag         bool // the device reports blinks itself
	FixationPolicy    detect.FixationPolicy
}

// SampleInterval is the time between two device samples.
func (i Info) SampleInterval() time.Duration {
	if i.SampleRateHz <= 0 {
		return 0
	}
	return time.Second / time.Duration(i.SampleRateHz)
}

// Device is a gaze tracker.
type Device interface {
	Kind() Kind
	// Open connects and configures the device.
	Open(ctx context.Context) (Info, error)
	// Poll returns the device's current sample, or ErrNoSample.
	Poll(ctx context.Context) (model.Sample, error)
	// Heartbeat keeps the device session alive.
	Heartbeat(ctx context.Context) error
	// Calibrating reports whether the device is running a calibration.
	Calibrating() bool
	Close() error
}

// Calibrator is implemented by devices that run their own calibration.
type Calibrator interface {
	StartCalibration(ctx context.Context, points int) error
	PointStart(ctx context.Context, p model.Position) error
	// PointEnd finishes the current point. The result is non-nil after the
	// last point.
	PointEnd(ctx context.Context) (*model.CalibrationResult, error)
	AbortCalibration(ctx context.Context) error
	ClearCalibration(ctx context.Context) error
}

// AsCalibrator returns the calibration capability of d, looking through
// wrappers that expose Unwrap.
func AsCalibrator(d Device) (Calibrator, bool) {
	for d != nil {
		if c, ok := d.(Calibrator); ok {
			return c, true
		}
		u, ok := d.(interface{ Unwrap() Device })
		if !ok {
			return nil, false
		}
		d = u.Unwrap()
	}
	return nil, false
}

// New builds the device for kind.
func New(kind Kind, opts ...Option) (Device, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	switch kind {
	case EyeTribe:
		return newEyeTribe(cfg), nil
	case Dummy:
		return newDummy(cfg), nil
	case EyeLink, SMI, Tobii:
		if cfg.binding == nil {
			return nil, fmt.Errorf("%w: %s requires a vendor binding", ErrUnsupported, kind)
		}
		return &bound{Device: cfg.binding, kind: kind}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupported, kind)
}

// bound adapts a caller supplied vendor binding.
type bound struct {
	Device
	kind Kind
}

func (b *bound) Kind() Kind { return b.kind }

// Unwrap returns the vendor binding.
func (b *bound) Unwrap() Device { return b.Device }
