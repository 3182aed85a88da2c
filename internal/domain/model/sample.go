// Package model contains domain models passed between layers.
package model

import "math"

// Position is a point on the display in pixels.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Missing is the sentinel returned when no gaze position is available.
var Missing = Position{X: -1, Y: -1} //nolint:gochecknoglobals // sentinel value

// IsMissing reports whether p carries no usable gaze data.
func (p Position) IsMissing() bool {
	return p == Missing || math.IsNaN(p.X) || math.IsNaN(p.Y)
}

// IsZero reports whether p is the origin, which devices use for "no data".
func (p Position) IsZero() bool {
	return p.X == 0 && p.Y == 0
}

// Sub returns p - q.
func (p Position) Sub(q Position) (dx, dy float64) {
	return p.X - q.X, p.Y - q.Y
}

// Distance is the Euclidean distance between p and q.
func (p Position) Distance(q Position) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Eye holds the per-eye part of a sample.
type Eye struct {
	Raw         Position `json:"raw"`
	Avg         Position `json:"avg"`
	PupilCenter Position `json:"pcenter"`
	PupilSize   float64  `json:"psize"`
}

// Sample is one immutable gaze reading from a tracker.
type Sample struct {
	Timestamp string   // device clock, used for de-duplication
	Time      int64    // experiment clock in ms when polled
	Fix       bool     // device-reported fixation flag
	State     int      // opaque tracker state bitmask
	Raw       Position // raw gaze
	Avg       Position // smoothed gaze
	PupilSize float64
	Left      Eye
	Right     Eye

	// Blink is only meaningful for devices that expose a binary blink flag.
	Blink bool
}

// Gaze returns the smoothed gaze position, or Missing when the device
// reported no data.
func (s Sample) Gaze() Position {
	if s.Avg.IsZero() || s.Avg.IsMissing() {
		return Missing
	}
	return s.Avg
}
