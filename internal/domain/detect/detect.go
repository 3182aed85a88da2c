// Package detect classifies a stream of gaze positions into saccade,
// fixation and blink events. Every Wait method blocks the calling goroutine
// until the event occurs or ctx is done.
package detect

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/gazetrack/internal/domain/model"
	"github.com/okian/gazetrack/pkg/metrics"
)

// Reading is one published sample as seen by the detector.
type Reading struct {
	Seq   uint64
	Time  int64
	Pos   model.Position
	Blink bool
}

// Source delivers readings newer than afterSeq, blocking until one exists.
type Source interface {
	Next(ctx context.Context, afterSeq uint64) (Reading, error)
}

// Detector runs the detection algorithms against a Source. A Detector is
// meant for one caller goroutine.
type Detector struct {
	src Source
	th  Thresholds
	seq uint64
}

// New creates a Detector.
func New(src Source, th Thresholds) *Detector {
	return &Detector{src: src, th: th}
}

// Thresholds returns the thresholds in use.
func (d *Detector) Thresholds() Thresholds { return d.th }

// next returns the next reading after the last one consumed.
func (d *Detector) next(ctx context.Context) (Reading, error) {
	r, err := d.src.Next(ctx, d.seq)
	if err != nil {
		return Reading{}, err
	}
	d.seq = r.Seq
	return r, nil
}

// nextValid skips readings without a usable position.
func (d *Detector) nextValid(ctx context.Context) (Reading, error) {
	for {
		r, err := d.next(ctx)
		if err != nil {
			return Reading{}, err
		}
		if !r.Pos.IsMissing() && !r.Blink {
			return r, nil
		}
	}
}

// motion carries the state saccade-end detection continues from.
type motion struct {
	pos   model.Position
	speed float64
}

// WaitForSaccadeStart blocks until gaze speed or acceleration exceeds its
// threshold. StartPos is the last position before the movement.
func (d *Detector) WaitForSaccadeStart(ctx context.Context) (model.EventRecord, error) {
	ev, _, err := d.saccadeStart(ctx)
	if err != nil {
		return model.EventRecord{}, err
	}
	metrics.RecordEventDetected(ev.Kind.String())
	return ev, nil
}

func (d *Detector) saccadeStart(ctx context.Context) (model.EventRecord, motion, error) {
	r, err := d.nextValid(ctx)
	if err != nil {
		return model.EventRecord{}, motion{}, err
	}
	prev, prevSpeed := r.Pos, 0.0

	for {
		r, err := d.nextValid(ctx)
		if err != nil {
			return model.EventRecord{}, motion{}, err
		}
		dx, dy := r.Pos.Sub(prev)
		if d.th.weighted(dx, dy) {
			speed := math.Hypot(dx, dy)
			accel := speed - prevSpeed
			if speed > d.th.SpeedPx || accel > d.th.AccelPx {
				ev := model.EventRecord{Kind: model.SaccadeStart, Time: r.Time, StartPos: prev}
				return ev, motion{pos: r.Pos, speed: speed}, nil
			}
			prevSpeed = speed
		}
		prev = r.Pos
	}
}

// WaitForSaccadeEnd waits for a saccade to start and then for it to
// decelerate below threshold.
func (d *Detector) WaitForSaccadeEnd(ctx context.Context) (model.EventRecord, error) {
	start, m, err := d.saccadeStart(ctx)
	if err != nil {
		return model.EventRecord{}, err
	}
	prev, prevSpeed := m.pos, m.speed

	for {
		r, err := d.nextValid(ctx)
		if err != nil {
			return model.EventRecord{}, err
		}
		speed := prev.Distance(r.Pos)
		accel := speed - prevSpeed
		if speed < d.th.SpeedPx && accel > -d.th.AccelPx && accel < 0 {
			end := r.Pos
			ev := model.EventRecord{Kind: model.SaccadeEnd, Time: r.Time, StartPos: start.StartPos, EndPos: &end}
			metrics.RecordEventDetected(ev.Kind.String())
			return ev, nil
		}
		prev, prevSpeed = r.Pos, speed
	}
}

// WaitForFixationStart blocks until a run of consecutive samples fits
// inside the fixation box and returns the position of the last one.
func (d *Detector) WaitForFixationStart(ctx context.Context) (model.EventRecord, error) {
	ev, err := d.fixationStart(ctx)
	if err != nil {
		return model.EventRecord{}, err
	}
	metrics.RecordEventDetected(ev.Kind.String())
	return ev, nil
}

func (d *Detector) fixationStart(ctx context.Context) (model.EventRecord, error) {
	n := d.th.run()
	window := make([]model.Position, 0, n)
	for {
		r, err := d.nextValid(ctx)
		if err != nil {
			return model.EventRecord{}, err
		}
		if len(window) == n {
			copy(window, window[1:])
			window = window[:n-1]
		}
		window = append(window, r.Pos)
		if len(window) == n && d.th.within(window) {
			return model.EventRecord{Kind: model.FixationStart, Time: r.Time, StartPos: r.Pos}, nil
		}
	}
}

// WaitForFixationEnd waits for a fixation and then for gaze to leave it.
func (d *Detector) WaitForFixationEnd(ctx context.Context) (model.EventRecord, error) {
	start, err := d.fixationStart(ctx)
	if err != nil {
		return model.EventRecord{}, err
	}
	fix := start.StartPos

	for {
		r, err := d.nextValid(ctx)
		if err != nil {
			return model.EventRecord{}, err
		}
		dx, dy := r.Pos.Sub(fix)
		if d.th.weighted(dx, dy) && d.th.beyond(dx, dy) {
			end := r.Pos
			ev := model.EventRecord{Kind: model.FixationEnd, Time: r.Time, StartPos: fix, EndPos: &end}
			metrics.RecordEventDetected(ev.Kind.String())
			return ev, nil
		}
	}
}

// WaitForBlinkStart blocks until a reading is flagged as a blink. StartPos
// is the last valid position before the blink, or Missing.
func (d *Detector) WaitForBlinkStart(ctx context.Context) (model.EventRecord, error) {
	ev, err := d.blinkStart(ctx)
	if err != nil {
		return model.EventRecord{}, err
	}
	metrics.RecordEventDetected(ev.Kind.String())
	return ev, nil
}

func (d *Detector) blinkStart(ctx context.Context) (model.EventRecord, error) {
	last := model.Missing
	for {
		r, err := d.next(ctx)
		if err != nil {
			return model.EventRecord{}, err
		}
		if r.Blink {
			return model.EventRecord{Kind: model.BlinkStart, Time: r.Time, StartPos: last}, nil
		}
		if !r.Pos.IsMissing() {
			last = r.Pos
		}
	}
}

// WaitForBlinkEnd waits for a blink and then for the blink flag to clear.
// EndPos is the first valid position after the blink.
func (d *Detector) WaitForBlinkEnd(ctx context.Context) (model.EventRecord, error) {
	start, err := d.blinkStart(ctx)
	if err != nil {
		return model.EventRecord{}, err
	}
	for {
		r, err := d.next(ctx)
		if err != nil {
			return model.EventRecord{}, err
		}
		if r.Blink || r.Pos.IsMissing() {
			continue
		}
		end := r.Pos
		ev := model.EventRecord{Kind: model.BlinkEnd, Time: r.Time, StartPos: start.StartPos, EndPos: &end}
		metrics.RecordEventDetected(ev.Kind.String())
		return ev, nil
	}
}

// WaitForEvent dispatches to the matching Wait method.
func (d *Detector) WaitForEvent(ctx context.Context, kind model.EventKind) (model.EventRecord, error) {
	switch kind {
	case model.SaccadeStart:
		return d.WaitForSaccadeStart(ctx)
	case model.SaccadeEnd:
		return d.WaitForSaccadeEnd(ctx)
	case model.FixationStart:
		return d.WaitForFixationStart(ctx)
	case model.FixationEnd:
		return d.WaitForFixationEnd(ctx)
	case model.BlinkStart:
		return d.WaitForBlinkStart(ctx)
	case model.BlinkEnd:
		return d.WaitForBlinkEnd(ctx)
	}
	return model.EventRecord{}, fmt.Errorf("%w: %v", ErrUnknownEvent, kind)
}
