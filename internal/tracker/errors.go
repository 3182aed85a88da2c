package tracker

import "errors"

var (
	// ErrUnsupported is returned at construction for a tracker that cannot
	// be used. It is fatal and never retried.
	ErrUnsupported = errors.New("unsupported tracker")
	// ErrNoSample means the device had no sample to give. Callers skip it.
	ErrNoSample = errors.New("no sample available")
	// ErrNotOpen is returned when a device is used before Open.
	ErrNotOpen = errors.New("tracker not open")
	// ErrHeartbeat is returned when the device rejected a heartbeat.
	ErrHeartbeat = errors.New("heartbeat rejected")
	// ErrCalibration is returned when the device rejected a calibration call.
	ErrCalibration = errors.New("calibration request rejected")
)
