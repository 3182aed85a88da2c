// Package types contains the JSON shapes exposed over HTTP.
package types

import "github.com/okian/gazetrack/internal/domain/model"

// Point is a JSON position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EyeView is the per-eye part of a SampleView.
type EyeView struct {
	Raw       Point   `json:"raw"`
	Avg       Point   `json:"avg"`
	Pupil     Point   `json:"pcenter"`
	PupilSize float64 `json:"psize"`
}

// SampleView is the wire representation of a published sample.
type SampleView struct {
	Seq       uint64  `json:"seq"`
	Timestamp string  `json:"timestamp"`
	Time      int64   `json:"time"`
	Fix       bool    `json:"fix"`
	State     int     `json:"state"`
	Gaze      Point   `json:"gaze"`
	Raw       Point   `json:"raw"`
	PupilSize float64 `json:"psize"`
	Left      EyeView `json:"lefteye"`
	Right     EyeView `json:"righteye"`
	Blink     bool    `json:"blink"`
}

func point(p model.Position) Point { return Point{X: p.X, Y: p.Y} }

func eye(e model.Eye) EyeView {
	return EyeView{Raw: point(e.Raw), Avg: point(e.Avg), Pupil: point(e.PupilCenter), PupilSize: e.PupilSize}
}

// FromSample converts a sample and its publication sequence number.
func FromSample(seq uint64, s model.Sample) SampleView {
	return SampleView{
		Seq:       seq,
		Timestamp: s.Timestamp,
		Time:      s.Time,
		Fix:       s.Fix,
		State:     s.State,
		Gaze:      point(s.Gaze()),
		Raw:       point(s.Raw),
		PupilSize: s.PupilSize,
		Left:      eye(s.Left),
		Right:     eye(s.Right),
		Blink:     s.Blink,
	}
}
