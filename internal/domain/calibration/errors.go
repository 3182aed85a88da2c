package calibration

import "errors"

// ErrInvalidGeometry is returned when the display geometry cannot produce
// pixel thresholds.
var ErrInvalidGeometry = errors.New("invalid display geometry")
